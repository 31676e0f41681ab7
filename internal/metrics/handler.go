package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON body of the admin metrics endpoint.
type Summary struct {
	Mode      string        `json:"mode"`
	HTTP      httpSummary   `json:"http"`
	Store     storeSummary  `json:"store"`
	Policy    policySummary `json:"policy"`
	RateLimit rateLimitInfo `json:"rateLimit"`
	Auth      authInfo      `json:"auth"`
	DB        dbInfo        `json:"db"`
	Server    serverInfo    `json:"server"`
}

type httpSummary struct {
	TotalRequests float64            `json:"totalRequests"`
	ErrorRate     float64            `json:"errorRate"`
	BySurface     map[string]float64 `json:"bySurface"`
	P50Latency    float64            `json:"p50Latency"`
	P95Latency    float64            `json:"p95Latency"`
	P99Latency    float64            `json:"p99Latency"`
}

type storeSummary struct {
	TotalOps      float64            `json:"totalOps"`
	Errors        float64            `json:"errors"`
	ByOp          map[string]float64 `json:"byOp"`
	ActiveWatches float64            `json:"activeWatches"`
	P50Latency    float64            `json:"p50Latency"`
	P95Latency    float64            `json:"p95Latency"`
}

type policySummary struct {
	Allowed float64            `json:"allowed"`
	Denied  float64            `json:"denied"`
	Denials map[string]float64 `json:"denialsByKind"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type authInfo struct {
	Failures  float64 `json:"failures"`
	Successes float64 `json:"successes"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
	MaxConns      float64 `json:"maxConns"`
}

// Handler serves Snapshot as JSON.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.Snapshot()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Snapshot gathers the registry into a Summary.
func (m *Metrics) Snapshot() (*Summary, error) {
	gathered, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	f := make(families, len(gathered))
	for _, mf := range gathered {
		f[mf.GetName()] = mf
	}

	const (
		httpTotal    = "venuedesk_http_requests_total"
		httpDuration = "venuedesk_http_request_duration_seconds"
		storeTotal   = "venuedesk_store_operations_total"
		storeDur     = "venuedesk_store_operation_duration_seconds"
		policyTotal  = "venuedesk_policy_decisions_total"
		startTime    = "venuedesk_server_start_time_seconds"
	)

	requests := f.sum(httpTotal, nil)
	var errorRate float64
	if requests > 0 {
		failed := f.sum(httpTotal, func(l labels) bool { return strings.HasPrefix(l["status_code"], "4") || strings.HasPrefix(l["status_code"], "5") })
		errorRate = failed / requests
	}
	started := f.gauge(startTime, nil)

	return &Summary{
		Mode: "live",
		HTTP: httpSummary{
			TotalRequests: requests,
			ErrorRate:     errorRate,
			BySurface:     f.sumBy(httpTotal, "surface", nil),
			P50Latency:    f.quantile(httpDuration, 0.50),
			P95Latency:    f.quantile(httpDuration, 0.95),
			P99Latency:    f.quantile(httpDuration, 0.99),
		},
		Store: storeSummary{
			TotalOps:      f.sum(storeTotal, nil),
			Errors:        f.sum(storeTotal, labelIs("result", "error")),
			ByOp:          f.sumBy(storeTotal, "op", nil),
			ActiveWatches: f.gauge("venuedesk_store_active_watches", nil),
			P50Latency:    f.quantile(storeDur, 0.50),
			P95Latency:    f.quantile(storeDur, 0.95),
		},
		Policy: policySummary{
			Allowed: f.sum(policyTotal, labelIs("decision", "allow")),
			Denied:  f.sum(policyTotal, labelIs("decision", "deny")),
			Denials: f.sumBy(policyTotal, "kind", labelIs("decision", "deny")),
		},
		RateLimit: rateLimitInfo{
			Rejections: f.sum("venuedesk_ratelimit_rejections_total", nil),
		},
		Auth: authInfo{
			Failures:  f.sum("venuedesk_auth_failures_total", nil),
			Successes: f.sum("venuedesk_auth_successes_total", nil),
		},
		DB: dbInfo{
			TotalConns:    f.gauge("venuedesk_db_pool_conns", labelIs("state", "total")),
			IdleConns:     f.gauge("venuedesk_db_pool_conns", labelIs("state", "idle")),
			AcquiredConns: f.gauge("venuedesk_db_pool_conns", labelIs("state", "acquired")),
			MaxConns:      f.gauge("venuedesk_db_pool_max_conns", nil),
		},
		Server: serverInfo{
			StartTime:     started,
			UptimeSeconds: float64(time.Now().Unix()) - started,
		},
	}, nil
}

// families indexes gathered metric families by name.
type families map[string]*dto.MetricFamily

type labels map[string]string

func labelsOf(m *dto.Metric) labels {
	l := make(labels, len(m.GetLabel()))
	for _, p := range m.GetLabel() {
		l[p.GetName()] = p.GetValue()
	}
	return l
}

func labelIs(name, value string) func(labels) bool {
	return func(l labels) bool { return l[name] == value }
}

// each calls fn for every series of name accepted by match (nil accepts all).
func (f families) each(name string, match func(labels) bool, fn func(*dto.Metric, labels)) {
	for _, m := range f[name].GetMetric() {
		l := labelsOf(m)
		if match == nil || match(l) {
			fn(m, l)
		}
	}
}

func (f families) sum(name string, match func(labels) bool) float64 {
	var total float64
	f.each(name, match, func(m *dto.Metric, _ labels) {
		total += m.GetCounter().GetValue()
	})
	return total
}

func (f families) sumBy(name, label string, match func(labels) bool) map[string]float64 {
	out := map[string]float64{}
	f.each(name, match, func(m *dto.Metric, l labels) {
		out[l[label]] += m.GetCounter().GetValue()
	})
	return out
}

// gauge returns the first matching gauge value.
func (f families) gauge(name string, match func(labels) bool) float64 {
	var v float64
	found := false
	f.each(name, match, func(m *dto.Metric, _ labels) {
		if !found {
			v, found = m.GetGauge().GetValue(), true
		}
	})
	return v
}

// quantile estimates q across every series of a histogram family by linear
// interpolation inside the bucket holding the rank.
func (f families) quantile(name string, q float64) float64 {
	cumulative := map[float64]uint64{}
	var count uint64
	f.each(name, nil, func(m *dto.Metric, _ labels) {
		h := m.GetHistogram()
		count += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			if !math.IsInf(b.GetUpperBound(), 1) {
				cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
			}
		}
	})
	if count == 0 || len(cumulative) == 0 {
		return 0
	}

	bounds := make([]float64, 0, len(cumulative))
	for ub := range cumulative {
		bounds = append(bounds, ub)
	}
	sort.Float64s(bounds)

	rank := q * float64(count)
	lower, below := 0.0, uint64(0)
	for _, ub := range bounds {
		c := cumulative[ub]
		if float64(c) >= rank {
			if c == below {
				return ub
			}
			return lower + (rank-float64(below))/float64(c-below)*(ub-lower)
		}
		lower, below = ub, c
	}
	// rank falls in the +Inf bucket
	return bounds[len(bounds)-1]
}
