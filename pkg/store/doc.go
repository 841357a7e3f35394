// Package store holds the short-lived login request and user entities behind
// the polling API.
//
// # Overview
//
// Both entity kinds share one storage contract and differ only in when a read
// consumes the entry: a Request is readable while pending and consumed by the
// first read after completion; a User profile is consumed by its first read,
// full stop. The entity's Consumable method carries that policy so the
// backends stay generic.
//
// Two backends implement the contract:
//
//   - MemoryStore: an in-process map for single-instance deployments
//   - RedisStore: a Redis-backed store for multi-instance deployments
//
// The consume path is atomic in both: the memory backend runs under a mutex,
// and the Redis backend performs the conditional get-and-delete as a single
// server-side Lua script (or GETDEL for single-use entities). This is the
// core concurrency guarantee of the subsystem — of N concurrent readers of a
// completed entry, exactly one observes the payload.
//
// # Usage Example
//
//	requests := store.NewMemoryStore[*store.Request](5 * time.Minute)
//	defer requests.Close()
//
//	req := store.NewRequest(uuid.NewString(), "joe", false)
//	if err := requests.Put(ctx, req.ID, req); err != nil {
//		return err
//	}
package store
