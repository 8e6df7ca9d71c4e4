// Package cli provides the clubhub-admin command-line interface for operators.
//
// # Overview
//
// Commands share the server's configuration (file, then CLUBHUB_* environment)
// and talk to the same PostgreSQL database and Redis instance.
//
// # Commands
//
// migrate: Apply pending schema migrations
//
//	clubhub-admin migrate --timeout 5m
//
// create-admin: Create a global administrator, or promote and reset the
// password of an existing account with that email
//
//	CLUBHUB_ADMIN_PASSWORD=... clubhub-admin create-admin \
//		--name "Ops" \
//		--email ops@example.edu
//
// cache clear: Drop every cached club and event list. Only meaningful when the
// servers share a Redis cache.
//
//	clubhub-admin cache clear
//
// stats: Print entity and pending request counts
//
//	clubhub-admin stats
//
// audit prune: Delete audit events older than --older-than, which defaults
// to the configured retention
//
//	clubhub-admin audit prune --older-than 2160h
//
// audit export: Write the audit trail as json, csv or ndjson
//
//	clubhub-admin audit export --format csv --since 720h > audit.csv
//
// config: Validate and print the effective configuration with secrets redacted
//
//	clubhub-admin -config /etc/clubhub.yaml config
//
// # Related Packages
//
//   - pkg/config: Configuration loading
//   - pkg/storage/postgres: Connections and migrations
//   - pkg/cache: Shared list cache
//   - pkg/audit: Audit trail retention and export
package cli
