package cache

import (
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/policy"
)

// events forwards engine notifications to Metrics and OnEvict.
// Calls arrive under the cache lock.
type events[K comparable, V any] struct {
	metrics Metrics
	onEvict func(k K, v V, reason EvictReason)
	log     logrus.FieldLogger
}

var _ policy.Listener[string, int] = (*events[string, int])(nil)

func (e *events[K, V]) Evicted(k K, v V, ok bool, reason policy.EvictReason) {
	e.metrics.Evict(reason)
	if reason == policy.EvictDiskFailure {
		e.log.WithFields(logrus.Fields{"key": k, "recovered": ok}).Warn("cache: entry dropped after disk failure")
	}
	if e.onEvict != nil {
		e.onEvict(k, v, reason)
	}
}

func (e *events[K, V]) Promoted(K) { e.metrics.Promote() }
func (e *events[K, V]) Demoted(K)  { e.metrics.Demote() }
