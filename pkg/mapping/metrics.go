package mapping

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestHistograms = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mapping_request_duration_seconds",
		Help:    "request durations for the mapping Store",
		Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	},
	[]string{"type", "operation"})

// StoreMetricsWrapper wraps any Store with metrics
type StoreMetricsWrapper struct {
	Store     Store
	storeType string
}

func NewStoreMetricsWrapper(store Store, storeType string) *StoreMetricsWrapper {
	return &StoreMetricsWrapper{Store: store, storeType: storeType}
}

func (s *StoreMetricsWrapper) wrapWithMetrics(op string, f func()) {
	start := time.Now()
	f()
	requestHistograms.WithLabelValues(s.storeType, op).Observe(time.Since(start).Seconds())
}

func (s *StoreMetricsWrapper) InsertMapping(ctx context.Context, m Mapping) (InsertOutcome, error) {
	var res InsertOutcome
	var err error

	s.wrapWithMetrics("InsertMapping", func() {
		res, err = s.Store.InsertMapping(ctx, m)
	})
	return res, err
}

func (s *StoreMetricsWrapper) InsertMappings(ctx context.Context, ms []Mapping) (int, error) {
	var res int
	var err error

	s.wrapWithMetrics("InsertMappings", func() {
		res, err = s.Store.InsertMappings(ctx, ms)
	})
	return res, err
}

func (s *StoreMetricsWrapper) GetMappingByLarge(ctx context.Context, pair RepoPair, largeCommit CommitID) (*Mapping, error) {
	var res *Mapping
	var err error

	s.wrapWithMetrics("GetMappingByLarge", func() {
		res, err = s.Store.GetMappingByLarge(ctx, pair, largeCommit)
	})
	return res, err
}

func (s *StoreMetricsWrapper) ListMappingsBySmall(ctx context.Context, pair RepoPair, smallCommit CommitID) ([]Mapping, error) {
	var res []Mapping
	var err error

	s.wrapWithMetrics("ListMappingsBySmall", func() {
		res, err = s.Store.ListMappingsBySmall(ctx, pair, smallCommit)
	})
	return res, err
}

func (s *StoreMetricsWrapper) InsertEquivalence(ctx context.Context, e Equivalence) (InsertOutcome, error) {
	var res InsertOutcome
	var err error

	s.wrapWithMetrics("InsertEquivalence", func() {
		res, err = s.Store.InsertEquivalence(ctx, e)
	})
	return res, err
}

func (s *StoreMetricsWrapper) GetEquivalenceByLarge(ctx context.Context, pair RepoPair, largeCommit CommitID) (*Equivalence, error) {
	var res *Equivalence
	var err error

	s.wrapWithMetrics("GetEquivalenceByLarge", func() {
		res, err = s.Store.GetEquivalenceByLarge(ctx, pair, largeCommit)
	})
	return res, err
}

func (s *StoreMetricsWrapper) ListEquivalencesBySmall(ctx context.Context, pair RepoPair, smallCommit CommitID) ([]Equivalence, error) {
	var res []Equivalence
	var err error

	s.wrapWithMetrics("ListEquivalencesBySmall", func() {
		res, err = s.Store.ListEquivalencesBySmall(ctx, pair, smallCommit)
	})
	return res, err
}

var _ Store = (*StoreMetricsWrapper)(nil)
