// Package digest implements the SHA-1 content digests that identify archived
// snapshots.
//
// The Wayback Machine CDX index reports a digest for each capture. Almost all
// of them are Base32-encoded SHA-1 values (32 characters), but real index data
// also contains strings in unknown encodings. Sha1 is the strict 20-byte
// value; Digest is the tolerant wrapper that keeps malformed text intact so it
// round-trips losslessly.
//
// Hashing goes through a Hasher, a resettable SHA-1 context. A Source hands out
// exclusive Hashers: Shared serializes callers behind one context, Pool keeps
// independent contexts for parallel use. Two concurrent computations never
// observe each other's partial state with either implementation.
package digest
