// Package storage keeps uploaded club, event and profile images.
//
// # Backends
//
// BlobStore has two implementations:
//
//   - FileSystemStore writes below a root directory; suitable for a single
//     instance or a shared volume
//   - S3Store writes to an S3 bucket or an S3-compatible service such as MinIO
//
// Open selects one from Config.Backend.
//
// # Images
//
// Images sits in front of a BlobStore. Upload sniffs the content, accepts only
// JPEG, PNG and GIF up to Config.MaxImageBytes, and stores the data under
// "<folder>/<uuid>.<ext>". The returned key is what the club, event or user
// row keeps in its image column and what GET /images/{key} serves.
//
// # Related Packages
//
//   - pkg/storage/postgres: Relational storage, migrations and Redis connections
package storage
