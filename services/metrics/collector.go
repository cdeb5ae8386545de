// Package metrics exports the statistics of running flows in the prometheus format.
package metrics

import (
	"github.com/influxdata/kflow"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kflow"

var nodeLabels = []string{"flow", "node", "kind"}

var (
	recordsInDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "node", "records_in_total"),
		"Number of records received by the node.",
		nodeLabels, nil,
	)
	recordsOutDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "node", "records_out_total"),
		"Number of records emitted by the node.",
		nodeLabels, nil,
	)
	errorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "node", "errors_total"),
		"Number of errors reported by the node.",
		nodeLabels, nil,
	)
	rateDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "node", "records_per_second"),
		"Most recent throughput sample of the node.",
		nodeLabels, nil,
	)
	flowsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "flows"),
		"Number of running flows.",
		nil, nil,
	)
	uptimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "uptime_seconds"),
		"Time since the process started.",
		nil, nil,
	)
)

// StatsFunc returns the registered statistics.
type StatsFunc func() []kflow.StatsData

// Collector reads node statistics at scrape time.
type Collector struct {
	stats StatsFunc
}

// NewCollector returns a Collector over stats, kflow.GetStatsData if nil.
func NewCollector(stats StatsFunc) *Collector {
	if stats == nil {
		stats = kflow.GetStatsData
	}
	return &Collector{stats: stats}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- recordsInDesc
	ch <- recordsOutDesc
	ch <- errorsDesc
	ch <- rateDesc
	ch <- flowsDesc
	ch <- uptimeDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(flowsDesc, prometheus.GaugeValue, float64(kflow.NumFlowsVar.IntValue()))
	ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, kflow.Uptime().Seconds())

	for _, s := range c.stats() {
		if s.Name != "nodes" {
			continue
		}
		labels := []string{s.Tags["flow"], s.Tags["node"], s.Tags["kind"]}
		collect := func(desc *prometheus.Desc, t prometheus.ValueType, key string) {
			v, ok := value(s.Values[key])
			if !ok {
				return
			}
			ch <- prometheus.MustNewConstMetric(desc, t, v, labels...)
		}
		collect(recordsInDesc, prometheus.CounterValue, "records_in")
		collect(recordsOutDesc, prometheus.CounterValue, "records_out")
		collect(errorsDesc, prometheus.CounterValue, "errors")
		collect(rateDesc, prometheus.GaugeValue, "records_per_sec")
	}
}

func value(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
