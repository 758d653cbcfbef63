// Package cachekit is a uniform cache storage layer over heterogeneous
// key-value backends. Every backend adapter implements Adapter with the same
// TTL, key prefixing, serialization and counter semantics.
//
// Adapters (see adapter/...):
//   - memory:       in-process map, no expiry.
//   - shm:          process-wide shared memory segment with native TTL.
//   - memcached:    Memcached via a pluggable client.
//   - redis:        single Redis server.
//   - rediscluster: Redis Cluster.
//   - stream:       filesystem, one file per key, sharded directories.
//   - weak:         weak references to objects (no serialization).
//
// Keys:
//
//	<prefix><key>   - every backend key; Keys() returns this form
//
// TTL:
//
//	DefaultTTL      - use the adapter lifetime (3600s unless configured)
//	Seconds(n)      - n seconds; n < 1 deletes the key instead of writing it
//	Interval(d)     - whole seconds of d; never deletes
//	SetForever      - no expiry
//
// Soft failures (missing key, expired entry, undecodable payload) are reported
// through return values, never through error. Errors are reserved for
// configuration problems, connection failures and backend faults.
package cachekit
