package kafka

import (
	"sync"

	"github.com/Shopify/sarama"
	"github.com/influxdata/kflow/keyvalue"
	"github.com/pkg/errors"
)

type Diagnostic interface {
	WithContext(ctx ...keyvalue.T) Diagnostic
	InsecureSkipVerify()
	Error(msg string, err error)
}

// ProducerFactory creates the producer used by a Service.
type ProducerFactory func(brokers []string, cfg *sarama.Config) (sarama.SyncProducer, error)

// Service owns the producer shared by the kafka sinks.
// The producer is created on first use.
type Service struct {
	mu       sync.Mutex
	c        Config
	producer sarama.SyncProducer
	diag     Diagnostic

	NewProducer ProducerFactory
}

func NewService(c Config, d Diagnostic) *Service {
	return &Service{
		c:           c,
		diag:        d,
		NewProducer: sarama.NewSyncProducer,
	}
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c.Enabled && s.c.UseSSL && s.c.InsecureSkipVerify {
		s.diag.InsecureSkipVerify()
	}
	return nil
}

func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeProducer()
}

func (s *Service) closeProducer() error {
	if s.producer == nil {
		return nil
	}
	err := s.producer.Close()
	s.producer = nil
	return err
}

// Update applies a new configuration.
// The current producer is closed if the connection settings changed.
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
	old := s.c
	s.c = c
	if connectionChanged(old, c) || !c.Enabled {
		if err := s.closeProducer(); err != nil {
			s.diag.Error("failed to close producer", err)
		}
	}
	return nil
}

func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c
}

func (s *Service) syncProducer() (sarama.SyncProducer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.c.Enabled {
		return nil, errors.New("kafka is not enabled")
	}
	if s.producer != nil {
		return s.producer, nil
	}
	cfg, err := s.c.producerConfig()
	if err != nil {
		return nil, errors.Wrap(err, "invalid kafka config")
	}
	p, err := s.NewProducer(s.c.Brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create kafka producer")
	}
	s.producer = p
	return p, nil
}

// NewSink returns a sink writing to topic.
// Empty topic and keyAttribute fall back to the configured values.
func (s *Service) NewSink(topic, keyAttribute string) (*Sink, error) {
	p, err := s.syncProducer()
	if err != nil {
		return nil, err
	}
	c := s.Config()
	if topic == "" {
		topic = c.Topic
	}
	if keyAttribute == "" {
		keyAttribute = c.KeyAttribute
	}
	return NewSink(p, topic, keyAttribute, s.diag.WithContext(keyvalue.T{Key: "topic", Value: topic})), nil
}
