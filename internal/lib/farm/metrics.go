package farm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	promTotalStaked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "staked_total",
	}, []string{"token"})
	promTotalFunding = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "funding_total",
	}, []string{"token"})
	promOpenPositions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "open_positions",
	}, []string{"token"})
	promBoostedStaked = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "boosted_staked_total",
	})
	promBoostedFunding = promauto.NewGauge(prometheus.GaugeOpts{
		Subsystem: "farm",
		Name:      "boosted_funding_total",
	})
)

// ReportMetrics refreshes the gauges for one token from current ledger state.
func (f *TokenFarm) ReportMetrics(token string) {
	staked, _ := f.TotalStaked(token).Float64()
	funding, _ := f.TotalFunding(token).Float64()
	promTotalStaked.WithLabelValues(token).Set(staked)
	promTotalFunding.WithLabelValues(token).Set(funding)
	promOpenPositions.WithLabelValues(token).Set(float64(f.OpenPositions(token)))
}

// ReportMetrics refreshes the boosted farm gauges.
func (f *BoostedFarm) ReportMetrics() {
	staked, _ := f.TotalStaked().Float64()
	funding, _ := f.TotalFunding().Float64()
	promBoostedStaked.Set(staked)
	promBoostedFunding.Set(funding)
}
