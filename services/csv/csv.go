// Package csv reads and writes record streams as CSV with a header row.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/influxdata/kflow/models"
	"github.com/pkg/errors"
)

// MissingValue is written for missing values and read back as missing.
const MissingValue = "?"

// ParseError reports a row or cell of the input that cannot be read.
type ParseError struct {
	// Line is the 1-based input line of the row or cell.
	Line int
	// Column names the attribute of a bad cell, it is empty when the row itself is malformed.
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column == "" {
		// encoding/csv errors carry their own position.
		return e.Err.Error()
	}
	return fmt.Sprintf("line %d column %q: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader is a kflow.RecordReader over CSV data.
// Columns named in numeric hold float64 values, all other columns are strings.
type Reader struct {
	r      *csv.Reader
	schema *models.Schema
}

// NewReader reads the header row of r.
func NewReader(r io.Reader, numeric ...string) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("missing header row")
	} else if err != nil {
		return nil, errors.Wrap(err, "reading header")
	}

	isNumeric := make(map[string]bool, len(numeric))
	for _, n := range numeric {
		isNumeric[n] = true
	}
	attrs := make([]models.Attribute, len(header))
	for i, name := range header {
		attrs[i] = models.Attribute{Name: name, Type: models.String}
		if isNumeric[name] {
			attrs[i].Type = models.Numeric
			delete(isNumeric, name)
		}
	}
	for name := range isNumeric {
		return nil, fmt.Errorf("numeric column %q not in header", name)
	}
	schema, err := models.NewSchema(attrs...)
	if err != nil {
		return nil, err
	}
	return &Reader{
		r:      cr,
		schema: schema,
	}, nil
}

func (r *Reader) Schema() *models.Schema {
	return r.schema
}

// Next returns the next row as a record, or io.EOF.
func (r *Reader) Next() (models.Record, error) {
	row, err := r.r.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return nil, &ParseError{Line: perr.Line, Err: err}
		}
		return nil, err
	}
	rec := make(models.Record, len(row))
	for i, cell := range row {
		if cell == MissingValue {
			continue
		}
		if r.schema.Attribute(i).Type != models.Numeric {
			rec[i] = cell
			continue
		}
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			line, _ := r.r.FieldPos(i)
			return nil, &ParseError{Line: line, Column: r.schema.Attribute(i).Name, Err: err}
		}
		rec[i] = v
	}
	return rec, nil
}

// Writer is a kflow.RecordWriter writing CSV.
type Writer struct {
	w *csv.Writer

	row []string
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w: csv.NewWriter(w),
	}
}

// WriteFormat writes a header row.
func (w *Writer) WriteFormat(s *models.Schema) error {
	w.row = make([]string, s.Len())
	return w.w.Write(s.Names())
}

func (w *Writer) WriteRecord(r models.Record) error {
	if len(r) != len(w.row) {
		return fmt.Errorf("record has %d values, header has %d columns", len(r), len(w.row))
	}
	for i, v := range r {
		w.row[i] = formatValue(v)
	}
	return w.w.Write(w.row)
}

func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}

func formatValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return MissingValue
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
