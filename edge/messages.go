package edge

import (
	"fmt"

	"github.com/influxdata/kflow/models"
)

// MessageType represents the concrete type of a message.
type MessageType int

const (
	Format MessageType = iota
	Record
	EndOfStream
)

func (m MessageType) String() string {
	switch m {
	case Format:
		return "format"
	case Record:
		return "record"
	case EndOfStream:
		return "end_of_stream"
	default:
		return fmt.Sprintf("unknown message type %d", int(m))
	}
}

// Message is a message sent along an edge.
type Message interface {
	// Type returns the type of the message.
	Type() MessageType
}

// FormatMessage announces the schema of the records that follow it.
type FormatMessage struct {
	Schema *models.Schema
	// NotificationOnly is set when no records will follow,
	// receivers may use it to prepare for the structure without data.
	NotificationOnly bool
}

func NewFormatMessage(s *models.Schema) FormatMessage {
	return FormatMessage{Schema: s}
}

func (FormatMessage) Type() MessageType {
	return Format
}

// RecordMessage carries a single record of the most recently announced schema.
type RecordMessage struct {
	Record models.Record
}

func NewRecordMessage(r models.Record) RecordMessage {
	return RecordMessage{Record: r}
}

func (RecordMessage) Type() MessageType {
	return Record
}

// EndOfStreamMessage marks the end of a record stream.
type EndOfStreamMessage struct{}

func NewEndOfStreamMessage() EndOfStreamMessage {
	return EndOfStreamMessage{}
}

func (EndOfStreamMessage) Type() MessageType {
	return EndOfStream
}
