// Package store provides SQLite-backed storage for ProntoDB values.
//
// The store holds two tables:
//   - kv: one row per (project, namespace, key, context) with an optional
//     expiry
//   - sys_namespaces: the registry of TTL-enabled namespaces and their
//     default TTL
//
// # Identity
//
// A row is identified by the full 4-tuple. An absent context matches only
// rows whose context is NULL; "k" and "k__" are different rows. Queries
// compare contexts with IS so NULL compares equal to NULL.
//
// # Expiry
//
// Expiry is lazy. Get treats a row whose expires_at is at or before now as
// absent and deletes it on the spot. Listing queries skip expired rows but
// never delete them. There is no background sweep.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks up to the configured bound (5s default)
//   - Single pooled connection per Store
package store
