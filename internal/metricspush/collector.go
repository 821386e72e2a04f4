package metricspush

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

// Gauges describes the inventory state that is pushed on every tick.
type Gauges struct {
	hostsByAccount *prometheus.GaugeVec
	hostsTotal     prometheus.Gauge
	memoryBytes    prometheus.Gauge
	pushFailures   prometheus.Counter
}

func NewGauges(registry *prometheus.Registry, cfgLabels prometheus.Labels) *Gauges {
	g := &Gauges{
		hostsByAccount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "inventory_hosts",
			Help:        "Stored hosts per account.",
			ConstLabels: cfgLabels,
		}, []string{"account"}),
		hostsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "inventory_hosts_total",
			Help:        "Stored hosts across all accounts.",
			ConstLabels: cfgLabels,
		}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "inventory_process_memory_bytes",
			Help:        "Memory obtained from the OS by the process.",
			ConstLabels: cfgLabels,
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "inventory_metrics_push_failures_total",
			Help:        "Failed pushes of the inventory registry.",
			ConstLabels: cfgLabels,
		}),
	}
	registry.MustRegister(g.hostsByAccount, g.hostsTotal, g.memoryBytes, g.pushFailures)
	return g
}

// SetHosts replaces the per account series so deleted accounts disappear.
func (g *Gauges) SetHosts(byAccount map[string]int64) {
	g.hostsByAccount.Reset()
	var total int64
	for account, count := range byAccount {
		g.hostsByAccount.WithLabelValues(account).Set(float64(count))
		total += count
	}
	g.hostsTotal.Set(float64(total))
}

func (g *Gauges) updateSystem() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	g.memoryBytes.Set(float64(m.Sys))
}
