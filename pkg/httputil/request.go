package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes a 422 response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteValidationError(w, err.Error())
		return false
	}
	return true
}

// ParsePathID extracts a UUID path parameter
func ParsePathID(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return "", fmt.Errorf("invalid id for %s: %s", key, str)
	}
	return id.String(), nil
}

// ParsePathIDOrError extracts a UUID path parameter. A malformed ID cannot
// reference an existing row, so it is reported as 404.
func ParsePathIDOrError(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	id, err := ParsePathID(r, key)
	if err != nil {
		WriteNotFoundError(w, err.Error())
		return "", false
	}
	return id, true
}

// IsUUID reports whether s parses as a UUID
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// Validator is a function that validates a value and returns an error message if invalid
type Validator func() (bool, string)

// ValidateAll runs multiple validators and writes the first error
func ValidateAll(w http.ResponseWriter, validators ...Validator) bool {
	for _, validator := range validators {
		if valid, errMsg := validator(); !valid {
			WriteValidationError(w, errMsg)
			return false
		}
	}
	return true
}

// Required fails when value is empty
func Required(value, fieldName string) Validator {
	return func() (bool, string) {
		return value != "", fmt.Sprintf("%s is required", fieldName)
	}
}

// NonNegative fails when value is below zero
func NonNegative(value int, fieldName string) Validator {
	return func() (bool, string) {
		return value >= 0, fmt.Sprintf("%s must not be negative", fieldName)
	}
}

// MaxLength fails when value is longer than max runes
func MaxLength(value string, max int, fieldName string) Validator {
	return func() (bool, string) {
		return len([]rune(value)) <= max, fmt.Sprintf("%s must be at most %d characters", fieldName, max)
	}
}
