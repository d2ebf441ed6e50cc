// Package index persists metadata derived from CDX results as opaque
// key/value pairs in SQLite.
//
// Every pair belongs to a collection. Values written through the typed
// helpers are CBOR with core deterministic encoding, so equal records always
// have equal bytes and a conflicting write can be detected by comparing
// blobs. Writes never overwrite: the first value stored for a key wins.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - 5-second busy timeout for lock contention
//   - schema version tracked in PRAGMA user_version
package index
