package forwarding

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"lpm-router/internal/routing"
)

// collector implements prometheus.Collector, reading forwarder counters on each scrape.
type collector struct {
	fwd *Forwarder

	packetsTotal      *prometheus.Desc
	portPacketsTotal  *prometheus.Desc
	routes            *prometheus.Desc
	cacheLookupsTotal *prometheus.Desc
}

// NewCollector 创建转发前端的Prometheus采集器
func NewCollector(f *Forwarder) prometheus.Collector {
	return &collector{
		fwd: f,

		packetsTotal: prometheus.NewDesc(
			"lpm_router_packets_total",
			"Total packets handled by the forwarder.",
			[]string{"result"}, nil,
		),
		portPacketsTotal: prometheus.NewDesc(
			"lpm_router_port_packets_total",
			"Packets pushed to each output port.",
			[]string{"port"}, nil,
		),
		routes: prometheus.NewDesc(
			"lpm_router_routes",
			"Live routes in the routing table.",
			nil, nil,
		),
		cacheLookupsTotal: prometheus.NewDesc(
			"lpm_router_cache_lookups_total",
			"Lookup cache hits and misses.",
			[]string{"result"}, nil,
		),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.packetsTotal
	ch <- c.portPacketsTotal
	ch <- c.routes
	ch <- c.cacheLookupsTotal
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.fwd.GetStats()

	ch <- prometheus.MustNewConstMetric(c.packetsTotal, prometheus.CounterValue,
		float64(stats.Forwarded), "forwarded")
	ch <- prometheus.MustNewConstMetric(c.packetsTotal, prometheus.CounterValue,
		float64(stats.NoRoute), "no_route")
	ch <- prometheus.MustNewConstMetric(c.packetsTotal, prometheus.CounterValue,
		float64(stats.BadPort), "bad_port")

	for i, n := range stats.PortPackets {
		ch <- prometheus.MustNewConstMetric(c.portPacketsTotal, prometheus.CounterValue,
			float64(n), strconv.Itoa(i))
	}

	table := c.fwd.Table()
	ch <- prometheus.MustNewConstMetric(c.routes, prometheus.GaugeValue, float64(table.Size()))

	if r, ok := table.(routing.CacheReporter); ok {
		cs := r.CacheStats()
		ch <- prometheus.MustNewConstMetric(c.cacheLookupsTotal, prometheus.CounterValue,
			float64(cs.Hits), "hit")
		ch <- prometheus.MustNewConstMetric(c.cacheLookupsTotal, prometheus.CounterValue,
			float64(cs.Misses), "miss")
	}
}
