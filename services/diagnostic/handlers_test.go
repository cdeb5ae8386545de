package diagnostic_test

import (
	"errors"
	"testing"

	"github.com/influxdata/kflow/edge"
	"github.com/influxdata/kflow/keyvalue"
	"github.com/influxdata/kflow/services/diagnostic"
	"github.com/influxdata/kflow/services/logging/loggingtest"
	"github.com/influxdata/kflow/throughput"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestKflowHandler_Context(t *testing.T) {
	ls := loggingtest.New()
	s := diagnostic.NewService(ls.Root())

	fd := s.NewKflowHandler().WithFlowContext("ingest", "run-1")
	fd.StartingFlow()
	nd := fd.WithNodeContext("replace")
	nd.Error("bad record", errors.New("boom"), keyvalue.T{Key: "record", Value: "7"})
	nd.Finished(throughput.Summary{Records: 1000, Rate: 2500})

	entries := ls.Logs().AllUntimed()
	require.Len(t, entries, 3)

	assert.Equal(t, "starting flow", entries[0].Message)
	assert.Equal(t, map[string]interface{}{
		"service": "kflow",
		"flow":    "ingest",
		"run":     "run-1",
	}, entries[0].ContextMap())

	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	ctx := entries[1].ContextMap()
	assert.Equal(t, "replace", ctx["node"])
	assert.Equal(t, "boom", ctx["error"])
	assert.Equal(t, "7", ctx["record"])

	assert.Equal(t, "Finished - 1,000 records @ 2,500 records/sec", entries[2].Message)
	assert.Equal(t, int64(1000), entries[2].ContextMap()["records"])
}

func TestKflowHandler_Edge(t *testing.T) {
	ls := loggingtest.New()
	s := diagnostic.NewService(ls.Root())

	ed := s.NewKflowHandler().WithFlowContext("f", "id").WithEdgeContext("src", "sink")
	ed.Collect(edge.Record)
	ed.ClosingEdge(3, 2)

	entries := ls.Logs().AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "record", entries[0].ContextMap()["message_type"])
	assert.Equal(t, "src", entries[1].ContextMap()["parent"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["collected"])
	assert.Equal(t, int64(2), entries[1].ContextMap()["emitted"])
}

func TestHTTPDHandler_ServerErrorLogger(t *testing.T) {
	ls := loggingtest.New()
	s := diagnostic.NewService(ls.Root())

	l := s.NewHTTPDHandler().NewHTTPServerErrorLogger()
	l.Print("tls handshake error")

	entries := ls.Logs().FilterField(zapcoreString("service", "httpd_server_errors")).AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "tls handshake error")
}

func TestServerHandler_Levels(t *testing.T) {
	ls := loggingtest.New()
	require.NoError(t, ls.SetLevel("info"))
	s := diagnostic.NewService(ls.Root())

	h := s.NewServerHandler()
	h.Debug("hidden")
	h.Info("opened", keyvalue.T{Key: "path", Value: "/tmp"})

	entries := ls.Logs().AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, "opened", entries[0].Message)
	assert.Equal(t, "/tmp", entries[0].ContextMap()["path"])
}

func TestNewService_Nil(t *testing.T) {
	s := diagnostic.NewService(nil)
	// Must not panic.
	s.NewStorageHandler().OpenedStore("/tmp/kflow.db")
}

func zapcoreString(key, value string) zapcore.Field {
	return zapcore.Field{Key: key, Type: zapcore.StringType, String: value}
}
