// Package telemetry collects the generator's operational metrics and serves
// them in Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Metric names exposed on /metrics.
const (
	MetricDatasetsGenerated = "kpiforge_datasets_generated_total"
	MetricRowsGenerated     = "kpiforge_rows_generated_total"
	MetricHTTPRequests      = "kpiforge_http_requests_total"
	MetricGenerationSeconds = "kpiforge_generation_duration_seconds"
	MetricRegistryDatasets  = "kpiforge_registry_datasets"
)

var metricHelp = map[string]string{
	MetricDatasetsGenerated: "Total datasets generated.",
	MetricRowsGenerated:     "Total weekly records generated across all datasets.",
	MetricHTTPRequests:      "Total HTTP requests by method, route, and status.",
	MetricGenerationSeconds: "Time spent generating one dataset, in seconds.",
	MetricRegistryDatasets:  "Datasets currently held in the in-memory registry.",
}

// generationBuckets are the histogram boundaries for generation latency.
var generationBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// ---------------------------------------------------------------------------
// Counter store
// ---------------------------------------------------------------------------

type counterStore struct {
	mu       sync.RWMutex
	counters map[string]int64
}

func newCounterStore() *counterStore {
	return &counterStore{counters: make(map[string]int64)}
}

func (s *counterStore) add(key string, delta int64) {
	s.mu.Lock()
	s.counters[key] += delta
	s.mu.Unlock()
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters[key]
}

func (s *counterStore) snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// Gauge store
// ---------------------------------------------------------------------------

type gaugeStore struct {
	mu     sync.RWMutex
	gauges map[string]int64
}

func newGaugeStore() *gaugeStore {
	return &gaugeStore{gauges: make(map[string]int64)}
}

func (s *gaugeStore) set(name string, val int64) {
	s.mu.Lock()
	s.gauges[name] = val
	s.mu.Unlock()
}

func (s *gaugeStore) get(name string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gauges[name]
}

// ---------------------------------------------------------------------------
// Histogram
// ---------------------------------------------------------------------------

// histogram is a thread-safe histogram with fixed bucket boundaries. Counts
// are stored non-cumulative; cumulative counts are computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits, updated via CAS
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			break
		}
	}
	h.mu.Unlock()
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]int64, len(h.bucketCounts))
	var running int64
	for i, c := range h.bucketCounts {
		running += c
		out[i] = running
	}
	return out
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(addr, old, next) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry aggregates all process metrics. The zero value is not usable;
// construct with New.
type Registry struct {
	counters *counterStore // flat counters, keyed by metric name
	http     *counterStore // http requests, keyed method|route|status
	gauges   *gaugeStore
	genHist  *histogram
}

func New() *Registry {
	return &Registry{
		counters: newCounterStore(),
		http:     newCounterStore(),
		gauges:   newGaugeStore(),
		genHist:  newHistogram(generationBuckets),
	}
}

// DatasetGenerated records one completed generation run.
func (r *Registry) DatasetGenerated(rows int, d time.Duration) {
	r.counters.add(MetricDatasetsGenerated, 1)
	r.counters.add(MetricRowsGenerated, int64(rows))
	r.genHist.Observe(d.Seconds())
}

// HTTPRequest records one served request.
func (r *Registry) HTTPRequest(method, route string, status int) {
	r.http.add(httpKey(method, route, status), 1)
}

// SetRegistryDatasets reports how many datasets the server currently holds.
func (r *Registry) SetRegistryDatasets(n int) {
	r.gauges.set(MetricRegistryDatasets, int64(n))
}

// Counter returns the current value of a flat counter.
func (r *Registry) Counter(name string) int64 {
	return r.counters.get(name)
}

// HTTPRequests returns the count for one method/route/status combination.
func (r *Registry) HTTPRequests(method, route string, status int) int64 {
	return r.http.get(httpKey(method, route, status))
}

// GenerationObservations returns how many generation runs have been timed.
func (r *Registry) GenerationObservations() int64 {
	return r.genHist.Count()
}

func httpKey(method, route string, status int) string {
	return fmt.Sprintf("%s|%s|%d", method, route, status)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// Middleware counts every served request by method, route pattern, and
// status code.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			r.HTTPRequest(c.Request().Method, route, status)
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Exposition
// ---------------------------------------------------------------------------

// Gather renders the registry as Prometheus metric families, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	var families []*dto.MetricFamily

	for _, name := range []string{MetricDatasetsGenerated, MetricRowsGenerated} {
		families = append(families, &dto.MetricFamily{
			Name: proto.String(name),
			Help: proto.String(metricHelp[name]),
			Type: dto.MetricType_COUNTER.Enum(),
			Metric: []*dto.Metric{{
				Counter: &dto.Counter{Value: proto.Float64(float64(r.counters.get(name)))},
			}},
		})
	}

	if mf := r.httpFamily(); mf != nil {
		families = append(families, mf)
	}

	families = append(families, &dto.MetricFamily{
		Name: proto.String(MetricRegistryDatasets),
		Help: proto.String(metricHelp[MetricRegistryDatasets]),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Gauge: &dto.Gauge{Value: proto.Float64(float64(r.gauges.get(MetricRegistryDatasets)))},
		}},
	})

	families = append(families, r.generationFamily())

	sort.Slice(families, func(i, j int) bool {
		return families[i].GetName() < families[j].GetName()
	})
	return families
}

func (r *Registry) httpFamily() *dto.MetricFamily {
	snap := r.http.snapshot()
	if len(snap) == 0 {
		return nil
	}

	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	metrics := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		parts := strings.SplitN(k, "|", 3)
		if len(parts) != 3 {
			continue
		}
		metrics = append(metrics, &dto.Metric{
			Label: []*dto.LabelPair{
				{Name: proto.String("method"), Value: proto.String(parts[0])},
				{Name: proto.String("route"), Value: proto.String(parts[1])},
				{Name: proto.String("status"), Value: proto.String(parts[2])},
			},
			Counter: &dto.Counter{Value: proto.Float64(float64(snap[k]))},
		})
	}

	return &dto.MetricFamily{
		Name:   proto.String(MetricHTTPRequests),
		Help:   proto.String(metricHelp[MetricHTTPRequests]),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: metrics,
	}
}

func (r *Registry) generationFamily() *dto.MetricFamily {
	cumulative := r.genHist.cumulativeBuckets()
	buckets := make([]*dto.Bucket, len(generationBuckets))
	for i, bound := range generationBuckets {
		buckets[i] = &dto.Bucket{
			UpperBound:      proto.Float64(bound),
			CumulativeCount: proto.Uint64(uint64(cumulative[i])),
		}
	}

	return &dto.MetricFamily{
		Name: proto.String(MetricGenerationSeconds),
		Help: proto.String(metricHelp[MetricGenerationSeconds]),
		Type: dto.MetricType_HISTOGRAM.Enum(),
		Metric: []*dto.Metric{{
			Histogram: &dto.Histogram{
				SampleCount: proto.Uint64(uint64(r.genHist.Count())),
				SampleSum:   proto.Float64(r.genHist.Sum()),
				Bucket:      buckets,
			},
		}},
	}
}

// Handler serves the registry at /metrics in text exposition format.
func (r *Registry) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		format := expfmt.NewFormat(expfmt.TypeTextPlain)
		c.Response().Header().Set(echo.HeaderContentType, string(format))
		c.Response().WriteHeader(200)

		enc := expfmt.NewEncoder(c.Response(), format)
		for _, mf := range r.Gather() {
			if err := enc.Encode(mf); err != nil {
				return err
			}
		}
		return nil
	}
}
