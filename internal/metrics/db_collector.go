package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is a point-in-time view of a database connection pool.
type PoolStats struct {
	Total    int32
	Idle     int32
	Acquired int32
	Max      int32

	Acquires      int64
	EmptyAcquires int64
	AcquireWait   time.Duration
}

// PoolStatFunc reads the current pool statistics. It keeps this package free
// of the driver import.
type PoolStatFunc func() PoolStats

// poolCollector exposes PoolStats, read on every scrape.
type poolCollector struct {
	stat PoolStatFunc

	conns         *prometheus.Desc
	maxConns      *prometheus.Desc
	acquires      *prometheus.Desc
	emptyAcquires *prometheus.Desc
	acquireWait   *prometheus.Desc
}

func newPoolCollector(stat PoolStatFunc) *poolCollector {
	return &poolCollector{
		stat: stat,
		conns: prometheus.NewDesc("venuedesk_db_pool_conns",
			"Connections in the DB pool by state.", []string{"state"}, nil),
		maxConns: prometheus.NewDesc("venuedesk_db_pool_max_conns",
			"Configured maximum size of the DB pool.", nil, nil),
		acquires: prometheus.NewDesc("venuedesk_db_pool_acquires_total",
			"Connections acquired from the DB pool.", nil, nil),
		emptyAcquires: prometheus.NewDesc("venuedesk_db_pool_empty_acquires_total",
			"Acquires that had to wait because the pool was empty.", nil, nil),
		acquireWait: prometheus.NewDesc("venuedesk_db_pool_acquire_wait_seconds_total",
			"Time spent waiting for DB pool connections.", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.conns
	ch <- c.maxConns
	ch <- c.acquires
	ch <- c.emptyAcquires
	ch <- c.acquireWait
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stat()
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.Total), "total")
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.Idle), "idle")
	ch <- prometheus.MustNewConstMetric(c.conns, prometheus.GaugeValue, float64(s.Acquired), "acquired")
	ch <- prometheus.MustNewConstMetric(c.maxConns, prometheus.GaugeValue, float64(s.Max))
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.Acquires))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquires, prometheus.CounterValue, float64(s.EmptyAcquires))
	ch <- prometheus.MustNewConstMetric(c.acquireWait, prometheus.CounterValue, s.AcquireWait.Seconds())
}
