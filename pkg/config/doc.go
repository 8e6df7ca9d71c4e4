// Package config loads application configuration.
//
// # Sources
//
// Values are resolved in order, later sources winning:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML file, passed with -config or CLUBHUB_CONFIG_FILE
//  3. CLUBHUB_* environment variables
//
// # Environment
//
// Server settings:
//
//	CLUBHUB_HOST="0.0.0.0"
//	CLUBHUB_PORT="8080"
//	CLUBHUB_HEALTH_PORT="9090"
//	CLUBHUB_READ_TIMEOUT="15s"
//
// Storage settings:
//
//	CLUBHUB_DATABASE_URL="postgres://localhost/clubhub?sslmode=disable"
//	CLUBHUB_DATABASE_MAX_CONNS="20"
//	CLUBHUB_REDIS_URL="redis://localhost:6379/0"  # empty: in-memory cache
//	CLUBHUB_CACHE_TTL="5m"
//	CLUBHUB_STORAGE_BACKEND="filesystem"  # filesystem, s3
//	CLUBHUB_STORAGE_ROOT="./data/images"
//	CLUBHUB_S3_BUCKET="clubhub-images"
//	CLUBHUB_S3_ENDPOINT="http://minio:9000"
//	CLUBHUB_MAX_IMAGE_BYTES="2097152"
//	CLUBHUB_AUDIT_RETENTION="4320h"
//
// Auth settings:
//
//	CLUBHUB_JWT_SECRET="<at least 32 bytes>"  # required
//	CLUBHUB_JWT_ACCESS_TTL="60m"
//	CLUBHUB_JWT_REFRESH_TTL="336h"
//	CLUBHUB_CORS_ALLOWED_ORIGINS="http://localhost:5173,http://localhost:3000"
//	CLUBHUB_RATE_LIMIT_REQUESTS="20"
//
// Observability settings:
//
//	CLUBHUB_LOG_LEVEL="info"  # debug, info, warn, error
//	CLUBHUB_LOG_FORMAT="json" # json, text
//	CLUBHUB_STATS_SCHEDULE="@every 1m"
//	CLUBHUB_OTEL_ENABLED="true"
//	CLUBHUB_OTEL_ENDPOINT="otel-collector:4317"
//
// # YAML
//
//	server:
//	  port: "8080"
//	auth:
//	  jwt_secret: "..."
//	  access_ttl: 1h
//	cache:
//	  ttl: 5m
package config
