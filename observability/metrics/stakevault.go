package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type StakevaultMetrics struct {
	stakes       *prometheus.CounterVec
	unstakes     *prometheus.CounterVec
	claims       *prometheus.CounterVec
	claimsFailed *prometheus.CounterVec
	pointsSpent  prometheus.Counter
	poolSize     *prometheus.GaugeVec
}

var (
	stakevaultOnce     sync.Once
	stakevaultRegistry *StakevaultMetrics
)

// Stakevault returns the process-wide metrics registry for the vault node.
func Stakevault() *StakevaultMetrics {
	stakevaultOnce.Do(func() {
		stakevaultRegistry = &StakevaultMetrics{
			stakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stakevault_stakes_total",
				Help: "Count of successful stake operations by collection.",
			}, []string{"collection"}),
			unstakes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stakevault_unstakes_total",
				Help: "Count of successful unstake operations by collection.",
			}, []string{"collection"}),
			claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stakevault_claims_total",
				Help: "Count of committed claims by catalog entry.",
			}, []string{"catalog"}),
			claimsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stakevault_claims_failed_total",
				Help: "Count of rejected claims by failure reason.",
			}, []string{"reason"}),
			pointsSpent: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stakevault_points_spent_total",
				Help: "Cumulative points redeemed through committed claims.",
			}),
			poolSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "stakevault_pool_size",
				Help: "Remaining pool identifiers per catalog entry.",
			}, []string{"catalog"}),
		}
		prometheus.MustRegister(
			stakevaultRegistry.stakes,
			stakevaultRegistry.unstakes,
			stakevaultRegistry.claims,
			stakevaultRegistry.claimsFailed,
			stakevaultRegistry.pointsSpent,
			stakevaultRegistry.poolSize,
		)
	})
	return stakevaultRegistry
}

// ObserveStake counts a successful stake for a collection.
func (m *StakevaultMetrics) ObserveStake(collection string) {
	if m == nil {
		return
	}
	m.stakes.WithLabelValues(collection).Inc()
}

// ObserveUnstake counts a successful unstake for a collection.
func (m *StakevaultMetrics) ObserveUnstake(collection string) {
	if m == nil {
		return
	}
	m.unstakes.WithLabelValues(collection).Inc()
}

// ObserveClaim counts a committed claim against a catalog entry.
func (m *StakevaultMetrics) ObserveClaim(catalog string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(catalog).Inc()
}

// ObserveClaimFailure counts a rejected claim by reason label.
func (m *StakevaultMetrics) ObserveClaimFailure(reason string) {
	if m == nil {
		return
	}
	m.claimsFailed.WithLabelValues(reason).Inc()
}

// AddPointsSpent accumulates redeemed points.
func (m *StakevaultMetrics) AddPointsSpent(points float64) {
	if m == nil || points <= 0 {
		return
	}
	m.pointsSpent.Add(points)
}

// SetPoolSize records the remaining pool size for a catalog entry.
func (m *StakevaultMetrics) SetPoolSize(catalog string, size float64) {
	if m == nil {
		return
	}
	m.poolSize.WithLabelValues(catalog).Set(size)
}
