// Package cache keeps slowly changing store reference data in Redis.
//
// The enrichment pipeline asks the remote platform for the category tree
// and attribute option tables on every run. With a cache configured those
// tables are fetched once per TTL and shared by every sync process talking
// to the same store.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	lookup := cache.NewLookup(cache.NewManager(redisClient), "store-42", 30*time.Minute)
//
//	var tree *platform.CategoryNode
//	ok, err := lookup.Load(ctx, "category-tree", &tree)
//	if !ok {
//		tree, _ = adapter.CategoryTree(ctx)
//		_ = lookup.Store(ctx, "category-tree", tree)
//	}
//
// Keys are namespaced by store so several stores can share one Redis.
//
// # Metrics
//
//   - storesync_cache_lookups_total{kind,result} - hit, miss or expired per table kind
//   - storesync_cache_entry_bytes{kind} - Encoded size of the last stored table
//   - storesync_cache_entry_age_seconds{kind} - Age of tables served from Redis
//   - storesync_cache_errors_total{operation} - get, set, delete, decode and encode failures
package cache
