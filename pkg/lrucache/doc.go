// Package lrucache provides a concurrent least-recently-used cache split into
// independently locked shards.
//
// # Eviction model
//
// Every shard keeps its own recency list and its own capacity. Inserting into
// a full shard evicts that shard's least recently used entry, so eviction is
// exact within a shard but only approximately LRU for the cache as a whole:
// an entry is never compared against entries living in other shards. The
// total capacity is ShardCount × PerShardCapacity.
//
// # Locking
//
// Get moves the entry it finds to the front of the recency list, so it takes
// the shard lock exclusively. Peek, Contains, Size and Empty only read and use
// the shared lock. Size sums shards one at a time and may be transiently
// inconsistent under concurrent writes.
//
// # Memoization
//
// GetOrSet computes a missing value once even when many goroutines miss the
// same key at the same time:
//
//	users := lrucache.MustNew[int, User](&lrucache.Config[int, User]{
//		ShardCount:       16,
//		PerShardCapacity: 256,
//	})
//	u, err := users.GetOrSet(id, func() (User, error) {
//		return db.LoadUser(ctx, id)
//	})
package lrucache
