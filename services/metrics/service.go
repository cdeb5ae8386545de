package metrics

import (
	"fmt"

	"github.com/influxdata/kflow/services/httpd"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsPath = "/metrics"

type Diagnostic interface {
	Error(msg string, err error)
}

type Service struct {
	registry *prometheus.Registry
	routes   []httpd.Route

	HTTPDService interface {
		AddRoutes([]httpd.Route) error
		DelRoutes([]httpd.Route)
	}
	// Stats overrides the source of node statistics.
	Stats StatsFunc

	diag Diagnostic
}

func NewService(d Diagnostic) *Service {
	return &Service{
		registry: prometheus.NewRegistry(),
		diag:     d,
	}
}

func (s *Service) Open() error {
	for _, c := range []prometheus.Collector{
		NewCollector(s.Stats),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := s.registry.Register(c); err != nil {
			return errors.Wrap(err, "failed to register collector")
		}
	}

	h := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		ErrorLog:      errorLogger{s.diag},
		ErrorHandling: promhttp.ContinueOnError,
	})
	s.routes = []httpd.Route{{
		Name:        "metrics",
		Method:      "GET",
		Pattern:     metricsPath,
		HandlerFunc: h.ServeHTTP,
		NoJSON:      true,
		NoGzip:      true,
		Raw:         true,
	}}
	return s.HTTPDService.AddRoutes(s.routes)
}

func (s *Service) Close() error {
	if s.HTTPDService != nil {
		s.HTTPDService.DelRoutes(s.routes)
	}
	return nil
}

// Registry is the registry served on /metrics.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

type errorLogger struct {
	d Diagnostic
}

func (l errorLogger) Println(v ...interface{}) {
	l.d.Error("failed to serve metrics", errors.New(fmt.Sprint(v...)))
}
