package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	httpRequests     *prometheus.CounterVec
	treeBuilds       *prometheus.CounterVec
	severedLinks     prometheus.Counter
	selectionChanges *prometheus.CounterVec
	upstreamErrors   *prometheus.CounterVec
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "method", "status"}),
		treeBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unit_tree_builds_total",
			Help: "Unit trees built, by whether a search query was applied.",
		}, []string{"filtered"}),
		severedLinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "unit_tree_severed_links_total",
			Help: "Parent links cut because they closed a cycle.",
		}),
		selectionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "unit_selection_changes_total",
			Help: "Selected unit changes by action.",
		}, []string{"action"}),
		upstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_errors_total",
			Help: "Failed calls to the remote API by endpoint.",
		}, []string{"endpoint"}),
	}

	registerer.MustRegister(
		m.httpRequests,
		m.treeBuilds,
		m.severedLinks,
		m.selectionChanges,
		m.upstreamErrors,
	)

	return m
}

func (m *Metrics) TreeBuilt(filtered bool, severed int) {
	if m == nil {
		return
	}

	m.treeBuilds.WithLabelValues(strconv.FormatBool(filtered)).Inc()
	if severed > 0 {
		m.severedLinks.Add(float64(severed))
	}
}

// SelectionChanged records "set" or "clear".
func (m *Metrics) SelectionChanged(action string) {
	if m == nil {
		return
	}

	m.selectionChanges.WithLabelValues(action).Inc()
}

func (m *Metrics) UpstreamFailed(endpoint string) {
	if m == nil {
		return
	}

	m.upstreamErrors.WithLabelValues(endpoint).Inc()
}

const unmatchedRoute = "unmatched"

// Middleware counts requests by route pattern so path parameters do not blow
// up label cardinality. Requests that never reach a route share one label.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if m == nil {
			return
		}

		path := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		m.httpRequests.WithLabelValues(path, r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
