// Package diagnostic implements the diagnostic interfaces of kflow and its
// services on top of a zap logger.
package diagnostic

import (
	"os"

	"github.com/influxdata/kflow/services/logging"
	"go.uber.org/zap"
)

// Service hands out handlers that share a root logger.
type Service struct {
	root *zap.Logger
}

// NewService returns a Service logging to root.
// A nil root discards everything.
func NewService(root *zap.Logger) *Service {
	if root == nil {
		root = zap.NewNop()
	}
	return &Service{
		root: root,
	}
}

// BootstrapMainHandler returns a handler logging to stderr,
// used until the configured logging service is open.
func BootstrapMainHandler() *CmdHandler {
	ls := logging.NewService(logging.NewConfig(), os.Stdout, os.Stderr)
	// The default configuration writes to stderr and does not fail to open.
	_ = ls.Open()
	return NewService(ls.Root()).NewCmdHandler()
}

func (s *Service) Logger() *zap.Logger {
	return s.root
}

func (s *Service) NewKflowHandler() *KflowHandler {
	return &KflowHandler{
		l: s.root.With(zap.String("service", "kflow")),
	}
}

func (s *Service) NewStorageHandler() *StorageHandler {
	return &StorageHandler{
		l: s.root.With(zap.String("service", "storage")),
	}
}

func (s *Service) NewHTTPDHandler() *HTTPDHandler {
	return &HTTPDHandler{
		l: s.root.With(zap.String("service", "http")),
	}
}

func (s *Service) NewKafkaHandler() *KafkaHandler {
	return &KafkaHandler{
		l: s.root.With(zap.String("service", "kafka")),
	}
}

func (s *Service) NewMQTTHandler() *MQTTHandler {
	return &MQTTHandler{
		l: s.root.With(zap.String("service", "mqtt")),
	}
}

func (s *Service) NewServerHandler() *ServerHandler {
	return &ServerHandler{
		l: s.root.With(zap.String("source", "srv")),
	}
}

func (s *Service) NewCmdHandler() *CmdHandler {
	return &CmdHandler{
		l: s.root.With(zap.String("service", "run")),
	}
}

func (s *Service) NewRuleSetsHandler() *RuleSetsHandler {
	return &RuleSetsHandler{
		l: s.root.With(zap.String("service", "rulesets")),
	}
}

func (s *Service) NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{
		l: s.root.With(zap.String("service", "metrics")),
	}
}
