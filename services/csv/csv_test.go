package csv_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/influxdata/kflow/models"
	"github.com/influxdata/kflow/services/csv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	data := "id,msg,score\n1,hello,2.5\n2,?,\n3,\"a,b\",?\n"
	r, err := csv.NewReader(strings.NewReader(data), "id", "score")
	require.NoError(t, err)

	s := r.Schema()
	assert.Equal(t, []string{"id", "msg", "score"}, s.Names())
	assert.Equal(t, models.Numeric, s.Attribute(0).Type)
	assert.Equal(t, models.String, s.Attribute(1).Type)

	var got []models.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}
	assert.Equal(t, []models.Record{
		{1.0, "hello", 2.5},
		{2.0, nil, nil},
		{3.0, "a,b", nil},
	}, got)
}

func TestReader_Errors(t *testing.T) {
	_, err := csv.NewReader(strings.NewReader(""))
	assert.Error(t, err)

	_, err = csv.NewReader(strings.NewReader("a,b\n"), "c")
	assert.EqualError(t, err, `numeric column "c" not in header`)

	r, err := csv.NewReader(strings.NewReader("n\nx\n"), "n")
	require.NoError(t, err)
	_, err = r.Next()
	assert.Error(t, err)

	r, err = csv.NewReader(strings.NewReader("a,b\n1\n"))
	require.NoError(t, err)
	_, err = r.Next()
	assert.Error(t, err, "short rows are rejected")
}

func TestReader_ParseError(t *testing.T) {
	r, err := csv.NewReader(strings.NewReader("id,n\n1,2\n2,x\n"), "n")
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	var perr *csv.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, "n", perr.Column)
	assert.True(t, strings.HasPrefix(err.Error(), `line 3 column "n": `), err.Error())

	r, err = csv.NewReader(strings.NewReader("a\nok\nx\"y\n"))
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "", perr.Column)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, 1, strings.Count(err.Error(), "line"), "line reported once: %s", err)
}

func TestWriter(t *testing.T) {
	s, err := models.NewSchema(
		models.Attribute{Name: "id", Type: models.Numeric},
		models.Attribute{Name: "msg"},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.WriteFormat(s))
	require.NoError(t, w.WriteRecord(models.Record{1.0, "x, y"}))
	require.NoError(t, w.WriteRecord(models.Record{0.25, nil}))
	assert.Error(t, w.WriteRecord(models.Record{1.0}))
	require.NoError(t, w.Flush())

	assert.Equal(t, "id,msg\n1,\"x, y\"\n0.25,?\n", buf.String())
}
