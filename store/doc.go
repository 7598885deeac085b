// Package store provides durable key/value backends for the access and refresh
// credentials held by a goAuthClient session manager.
//
// # Backends
//
//   - [MemoryStore]: process-local map, for tests and short-lived tools.
//   - [FileStore]: one JSON document on disk, replaced atomically.
//   - [RedisStore]: Redis via go-redis, MULTI/EXEC for pair writes.
//   - [PostgresStore]: a single table via pgx, one transaction per pair write.
//
// Every backend implements Get/Set/Delete plus SetMany/DeleteMany, which write
// or remove several keys as one operation from the caller's perspective.
//
// # What this package must NOT do
//
//   - Decode, validate, or log credential values.
//   - Import goAuthClient (the manager consumes these types through interfaces).
package store
