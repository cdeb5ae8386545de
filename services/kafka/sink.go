package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/influxdata/kflow/models"
	"github.com/pkg/errors"
)

// Sink publishes each record as a JSON object keyed by attribute name.
type Sink struct {
	producer     sarama.SyncProducer
	topic        string
	keyAttribute string
	diag         Diagnostic

	schema *models.Schema
	key    int
}

func NewSink(p sarama.SyncProducer, topic, keyAttribute string, d Diagnostic) *Sink {
	return &Sink{
		producer:     p,
		topic:        topic,
		keyAttribute: keyAttribute,
		diag:         d,
		key:          -1,
	}
}

func (s *Sink) WriteFormat(schema *models.Schema) error {
	s.schema = schema
	s.key = -1
	if s.keyAttribute == "" {
		return nil
	}
	i, ok := schema.Index(s.keyAttribute)
	if !ok {
		return fmt.Errorf("key attribute %q does not exist", s.keyAttribute)
	}
	s.key = i
	return nil
}

func (s *Sink) WriteRecord(r models.Record) error {
	if s.schema == nil {
		return errors.New("record written before format")
	}
	value, err := json.Marshal(r.Fields(s.schema))
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(value),
	}
	if s.key >= 0 && s.key < len(r) && r[s.key] != nil {
		msg.Key = sarama.StringEncoder(fmt.Sprint(r[s.key]))
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		s.diag.Error("failed to send message", err)
		return errors.Wrapf(err, "failed to write to topic %q", s.topic)
	}
	return nil
}

func (s *Sink) Flush() error {
	return nil
}
