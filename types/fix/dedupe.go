package fix

import (
	"fmt"

	"github.com/golang/groupcache/lru"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/roamtrack/tripd/params"
)

// NewDedupeLRUFunc returns a predicate that is true the first time it
// sees a fix and false on replays. Clients retry pushes; identical
// fixes must not be double-counted.
func NewDedupeLRUFunc() func(Annotated) bool {
	var dedupeCache = lru.New(params.DefaultBatchSize)
	return func(f Annotated) bool {
		hash, err := hashstructure.Hash(f.Fix, hashstructure.FormatV2, nil)
		if err != nil {
			return false
		}
		key := fmt.Sprintf("%d", hash)
		_, ok := dedupeCache.Get(key)
		if ok {
			return false
		}
		dedupeCache.Add(key, true)
		return true
	}
}
