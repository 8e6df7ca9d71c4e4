// Package auth provides credentials and identity for clubhub.
//
// # Overview
//
// The package covers the pieces a request needs before any authorization
// decision is made: canonical roles, the authenticated Principal, bcrypt
// password hashing and JWT access/refresh tokens with a revocation list.
//
// # Roles
//
// A user carries one global role and, per club, one pivot role:
//
//	admin         - global administrator
//	student       - default global role, and the pivot role of a pending join request
//	member        - approved club member
//	admin-member  - club administrator
//
// ParseRole accepts any casing and the common separators and always returns
// the canonical constant.
//
// # Tokens
//
//	tm := auth.NewTokenManager(auth.TokenConfig{
//		Secret:     cfg.Auth.JWTSecret,
//		Issuer:     "clubhub",
//		AccessTTL:  time.Hour,
//		RefreshTTL: 14 * 24 * time.Hour,
//	}, auth.NewRedisRevocationStore(redisClient))
//
//	pair, err := tm.IssuePair(user.ID)
//	claims, err := tm.Validate(ctx, pair.AccessToken, auth.TokenTypeAccess)
//
// Logout and refresh revoke the presented token by its jti until the moment it
// would have expired. Redis backs the revocation list in production; an
// in-process store, unbounded by count and pruned as tokens expire, is used
// when Redis is not configured.
package auth
