package mqtt

import (
	"sync"

	"github.com/influxdata/kflow/keyvalue"
	"github.com/pkg/errors"
)

type Diagnostic interface {
	WithContext(ctx ...keyvalue.T) Diagnostic
	Error(msg string, err error)
	Connected(broker string)
}

// Service holds the broker connection shared by the mqtt sinks.
type Service struct {
	mu     sync.Mutex
	c      Config
	client Client
	diag   Diagnostic

	NewClient ClientCreator
}

func NewService(c Config, d Diagnostic) *Service {
	return &Service{
		c:         c,
		diag:      d,
		NewClient: NewClient,
	}
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.c.Enabled {
		return nil
	}
	return s.connect()
}

func (s *Service) connect() error {
	cli, err := s.NewClient(s.c)
	if err != nil {
		return errors.Wrap(err, "failed to create mqtt client")
	}
	if err := cli.Connect(); err != nil {
		return errors.Wrapf(err, "failed to connect to mqtt broker %q", s.c.URL)
	}
	s.client = cli
	s.diag.Connected(s.c.URL)
	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnect()
	return nil
}

func (s *Service) disconnect() {
	if s.client != nil {
		s.client.Disconnect()
		s.client = nil
	}
}

// Update applies a new configuration, reconnecting to the broker.
func (s *Service) Update(newConfig []interface{}) error {
	if l := len(newConfig); l != 1 {
		return errors.Errorf("expected only one new config object, got %d", l)
	}
	c, ok := newConfig[0].(Config)
	if !ok {
		return errors.Errorf("expected config object to be of type %T, got %T", c, newConfig[0])
	}
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = c
	s.disconnect()
	if !c.Enabled {
		return nil
	}
	return s.connect()
}

func (s *Service) publish(topic string, qos QoSLevel, retained bool, message []byte) error {
	s.mu.Lock()
	cli := s.client
	s.mu.Unlock()
	if cli == nil {
		return errors.New("mqtt is not connected")
	}
	return cli.Publish(topic, qos, retained, message)
}

// NewSink returns a sink publishing to topic with the configured QoS.
// An empty topic uses the configured default.
func (s *Service) NewSink(topic string) (*Sink, error) {
	s.mu.Lock()
	c := s.c
	s.mu.Unlock()
	if !c.Enabled {
		return nil, errors.New("mqtt is not enabled")
	}
	if topic == "" {
		topic = c.Topic
	}
	return &Sink{
		publish:  s.publish,
		topic:    topic,
		qos:      c.QoS,
		retained: c.Retained,
		diag:     s.diag.WithContext(keyvalue.T{Key: "topic", Value: topic}),
	}, nil
}
