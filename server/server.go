// Provides a server type for starting and configuring a kflow server.
package server

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/influxdata/kflow"
	"github.com/influxdata/kflow/keyvalue"
	"github.com/influxdata/kflow/services/diagnostic"
	"github.com/influxdata/kflow/services/httpd"
	"github.com/influxdata/kflow/services/kafka"
	"github.com/influxdata/kflow/services/logging"
	"github.com/influxdata/kflow/services/metrics"
	"github.com/influxdata/kflow/services/mqtt"
	"github.com/influxdata/kflow/services/rulesets"
	"github.com/influxdata/kflow/services/storage"
	"github.com/pkg/errors"
)

const serverIDFilename = "server.id"

// BuildInfo represents the build details for the server code.
type BuildInfo struct {
	Version string
	Commit  string
	Branch  string
}

type Diagnostic interface {
	Error(msg string, err error, ctx ...keyvalue.T)
	Info(msg string, ctx ...keyvalue.T)
	Debug(msg string, ctx ...keyvalue.T)
}

// Service represents a service attached to the server.
type Service interface {
	Open() error
	Close() error
}

// Server represents a container for the storage and services of kflow.
// It is built using a Config and it manages the startup and shutdown of all
// services in the proper order.
type Server struct {
	dataDir  string
	hostname string

	config *Config

	err chan error

	HTTPDService    *httpd.Service
	StorageService  *storage.Service
	RuleSetsService *rulesets.Service
	MetricsService  *metrics.Service
	KafkaService    *kafka.Service
	MQTTService     *mqtt.Service

	// List of services in startup order
	Services []Service
	// Map of service name to index in Services list
	ServicesByName map[string]int

	BuildInfo BuildInfo
	ServerID  uuid.UUID

	LogService  logging.Interface
	DiagService *diagnostic.Service
	Diag        Diagnostic
}

// New returns a new instance of Server built from a config.
func New(c *Config, buildInfo BuildInfo, logService logging.Interface) (*Server, error) {
	err := c.Validate()
	if err != nil {
		return nil, fmt.Errorf("%s. To generate a valid configuration file run `kflowd config > kflow.generated.conf`.", err)
	}
	d := diagnostic.NewService(logService.Root())
	s := &Server{
		config:         c,
		BuildInfo:      buildInfo,
		dataDir:        c.DataDir,
		hostname:       c.Hostname,
		err:            make(chan error),
		LogService:     logService,
		DiagService:    d,
		Diag:           d.NewServerHandler(),
		ServicesByName: make(map[string]int),
	}
	s.Diag.Info("kflow hostname", keyvalue.T{Key: "hostname", Value: s.hostname})

	// Setup IDs
	if err := s.setupIDs(); err != nil {
		return nil, err
	}

	// Set published vars
	kflow.ServerIDVar.Set(s.ServerID.String())
	kflow.HostVar.Set(s.hostname)
	kflow.VersionVar.Set(s.BuildInfo.Version)
	s.Diag.Info("server ID", keyvalue.T{Key: "server_id", Value: s.ServerID.String()})

	if err := s.initHTTPDService(); err != nil {
		return nil, errors.Wrap(err, "httpd service")
	}
	s.appendStorageService()
	s.appendKafkaService()
	s.appendMQTTService()
	s.appendRuleSetsService()
	s.appendMetricsService()

	// Append HTTPD Service last so that the API is not listening till everything else succeeded.
	s.appendHTTPDService()

	return s, nil
}

func (s *Server) AppendService(name string, srv Service) {
	if _, ok := s.ServicesByName[name]; ok {
		// Should be unreachable code
		panic("cannot append service twice")
	}
	i := len(s.Services)
	s.Services = append(s.Services, srv)
	s.ServicesByName[name] = i
}

func (s *Server) initHTTPDService() error {
	srv, err := httpd.NewService(s.config.HTTP, s.hostname, s.DiagService.NewHTTPDHandler())
	if err != nil {
		return err
	}
	srv.Handler.Version = s.BuildInfo.Version
	s.HTTPDService = srv
	return nil
}

func (s *Server) appendHTTPDService() {
	s.AppendService("httpd", s.HTTPDService)
}

func (s *Server) appendStorageService() {
	srv := storage.NewService(s.config.Storage, s.DiagService.NewStorageHandler())
	s.StorageService = srv
	s.AppendService("storage", srv)
}

func (s *Server) appendKafkaService() {
	srv := kafka.NewService(s.config.Kafka, s.DiagService.NewKafkaHandler())
	s.KafkaService = srv
	s.AppendService("kafka", srv)
}

func (s *Server) appendMQTTService() {
	srv := mqtt.NewService(s.config.MQTT, s.DiagService.NewMQTTHandler())
	s.MQTTService = srv
	s.AppendService("mqtt", srv)
}

func (s *Server) appendRuleSetsService() {
	srv := rulesets.NewService(s.DiagService.NewRuleSetsHandler())
	srv.StorageService = s.StorageService
	srv.HTTPDService = s.HTTPDService
	srv.FlowDiagnostic = s.DiagService.NewKflowHandler()
	srv.Lookup = s.config.Lookup
	srv.KafkaService = s.KafkaService
	srv.MQTTService = s.MQTTService
	s.RuleSetsService = srv
	s.AppendService("rulesets", srv)
}

func (s *Server) appendMetricsService() {
	srv := metrics.NewService(s.DiagService.NewMetricsHandler())
	srv.HTTPDService = s.HTTPDService
	s.MetricsService = srv
	s.AppendService("metrics", srv)
}

// Err returns an error channel that multiplexes all out of band errors received from all services.
func (s *Server) Err() <-chan error { return s.err }

// Open opens all the services and stores the configured rule sets.
func (s *Server) Open() error {
	if err := s.startServices(); err != nil {
		s.Close()
		return err
	}
	if err := s.loadRuleSets(); err != nil {
		s.Close()
		return err
	}

	go s.watchServices()

	return nil
}

func (s *Server) startServices() error {
	for _, service := range s.Services {
		s.Diag.Debug("opening service", keyvalue.T{Key: "service", Value: fmt.Sprintf("%T", service)})
		if err := service.Open(); err != nil {
			return fmt.Errorf("open service %T: %s", service, err)
		}
		s.Diag.Debug("opened service", keyvalue.T{Key: "service", Value: fmt.Sprintf("%T", service)})
	}
	return nil
}

// loadRuleSets stores the rule sets of the configuration, replacing any
// stored set of the same name.
func (s *Server) loadRuleSets() error {
	sets, err := s.config.RuleSets()
	if err != nil {
		return errors.Wrap(err, "failed to load configured rule sets")
	}
	for _, rs := range sets {
		if err := s.RuleSetsService.Load(rs); err != nil {
			return errors.Wrapf(err, "failed to store rule set %q", rs.ID)
		}
	}
	return nil
}

// watchServices waits for a service to report an error.
func (s *Server) watchServices() {
	var err error
	select {
	case err = <-s.HTTPDService.Err():
	}
	s.err <- err
}

// Close shuts down the HTTP API and then the other services in reverse order.
func (s *Server) Close() error {
	// Stop accepting requests first.
	if err := s.HTTPDService.Close(); err != nil {
		s.Diag.Error("error closing httpd service", err)
	}

	for i := len(s.Services) - 1; i >= 0; i-- {
		service := s.Services[i]
		if service == Service(s.HTTPDService) {
			continue
		}
		s.Diag.Debug("closing service", keyvalue.T{Key: "service", Value: fmt.Sprintf("%T", service)})
		if err := service.Close(); err != nil {
			s.Diag.Error("error closing service", err, keyvalue.T{Key: "service", Value: fmt.Sprintf("%T", service)})
		}
		s.Diag.Debug("closed service", keyvalue.T{Key: "service", Value: fmt.Sprintf("%T", service)})
	}
	return nil
}

func (s *Server) setupIDs() error {
	// Create the data dir if not exists
	if f, err := os.Stat(s.dataDir); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(s.dataDir, 0755); err != nil {
				return errors.Wrapf(err, "data_dir %q does not exist, failed to create it", s.dataDir)
			}
		} else {
			return errors.Wrapf(err, "failed to stat data dir %q", s.dataDir)
		}
	} else if !f.IsDir() {
		return fmt.Errorf("path data_dir %s exists and is not a directory", s.dataDir)
	}

	serverIDPath := filepath.Join(s.dataDir, serverIDFilename)
	serverID, err := s.readID(serverIDPath)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	if serverID == uuid.Nil {
		serverID = uuid.New()
		if err := s.writeID(serverIDPath, serverID); err != nil {
			return errors.Wrap(err, "failed to save server ID")
		}
	}
	s.ServerID = serverID
	return nil
}

func (s *Server) readID(file string) (uuid.UUID, error) {
	b, err := ioutil.ReadFile(file)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(strings.TrimSpace(string(b)))
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "invalid ID in %q", file)
	}
	return id, nil
}

func (s *Server) writeID(file string, id uuid.UUID) error {
	return ioutil.WriteFile(file, []byte(id.String()), 0644)
}
