package mqtt

import (
	"encoding/json"

	"github.com/influxdata/kflow/models"
	"github.com/pkg/errors"
)

// Sink publishes each record as a JSON object keyed by attribute name.
type Sink struct {
	publish  func(topic string, qos QoSLevel, retained bool, message []byte) error
	topic    string
	qos      QoSLevel
	retained bool
	diag     Diagnostic

	schema *models.Schema
}

func (s *Sink) WriteFormat(schema *models.Schema) error {
	s.schema = schema
	return nil
}

func (s *Sink) WriteRecord(r models.Record) error {
	if s.schema == nil {
		return errors.New("record written before format")
	}
	msg, err := json.Marshal(r.Fields(s.schema))
	if err != nil {
		return errors.Wrap(err, "failed to marshal record")
	}
	if err := s.publish(s.topic, s.qos, s.retained, msg); err != nil {
		s.diag.Error("failed to publish message", err)
		return errors.Wrapf(err, "failed to publish to %q", s.topic)
	}
	return nil
}

func (s *Sink) Flush() error {
	return nil
}
