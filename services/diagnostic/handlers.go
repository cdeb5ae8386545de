package diagnostic

import (
	"errors"
	"log"
	"runtime"
	"time"

	"github.com/influxdata/kflow"
	"github.com/influxdata/kflow/edge"
	"github.com/influxdata/kflow/keyvalue"
	"github.com/influxdata/kflow/services/kafka"
	"github.com/influxdata/kflow/services/mqtt"
	"github.com/influxdata/kflow/throughput"
	"go.uber.org/zap"
)

func Err(l *zap.Logger, msg string, err error, ctx []keyvalue.T) {
	if len(ctx) == 0 {
		l.Error(msg, zap.Error(err))
		return
	}

	if len(ctx) == 1 {
		el := ctx[0]
		l.Error(msg, zap.Error(err), zap.String(el.Key, el.Value))
		return
	}

	// Use the allocation version for any length
	fields := make([]zap.Field, len(ctx)+1) // +1 for error
	fields[0] = zap.Error(err)
	for i := 1; i < len(fields); i++ {
		kv := ctx[i-1]
		fields[i] = zap.String(kv.Key, kv.Value)
	}

	l.Error(msg, fields...)
}

func Info(l *zap.Logger, msg string, ctx []keyvalue.T) {
	l.Info(msg, logFieldsFromContext(ctx)...)
}

func Debug(l *zap.Logger, msg string, ctx []keyvalue.T) {
	l.Debug(msg, logFieldsFromContext(ctx)...)
}

func logFieldsFromContext(ctx []keyvalue.T) []zap.Field {
	if len(ctx) == 0 {
		return nil
	}
	fields := make([]zap.Field, len(ctx))
	for i, kv := range ctx {
		fields[i] = zap.String(kv.Key, kv.Value)
	}

	return fields
}

// Kflow handler

type KflowHandler struct {
	l *zap.Logger
}

func (h *KflowHandler) WithFlowContext(flow, id string) kflow.FlowDiagnostic {
	return &KflowHandler{
		l: h.l.With(zap.String("flow", flow), zap.String("run", id)),
	}
}

func (h *KflowHandler) WithNodeContext(node string) kflow.NodeDiagnostic {
	return &KflowHandler{
		l: h.l.With(zap.String("node", node)),
	}
}

func (h *KflowHandler) WithEdgeContext(parent, child string) kflow.EdgeDiagnostic {
	return &KflowHandler{
		l: h.l.With(zap.String("parent", parent), zap.String("child", child)),
	}
}

func (h *KflowHandler) StartingFlow() {
	h.l.Info("starting flow")
}

func (h *KflowHandler) StoppedFlow() {
	h.l.Info("stopped flow")
}

func (h *KflowHandler) StoppedFlowWithError(err error) {
	h.l.Error("flow stopped with error", zap.Error(err))
}

func (h *KflowHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	Err(h.l, msg, err, ctx)
}

func (h *KflowHandler) Progress(s throughput.Sample) {
	h.l.Info(s.String(),
		zap.Int64("records", s.Records),
		zap.Float64("rate", s.Rate),
		zap.Float64("window_rate", s.WindowRate),
		zap.Bool("too_fast", s.TooFast),
	)
}

func (h *KflowHandler) Finished(s throughput.Summary) {
	h.l.Info(s.String(),
		zap.Int64("records", s.Records),
		zap.Float64("rate", s.Rate),
		zap.Bool("too_fast", s.TooFast),
	)
}

func (h *KflowHandler) ClosingEdge(collected int64, emitted int64) {
	h.l.Debug("closing edge", zap.Int64("collected", collected), zap.Int64("emitted", emitted))
}

func (h *KflowHandler) Collect(mtype edge.MessageType) {
	h.l.Debug("collected message", zap.Stringer("message_type", mtype))
}

func (h *KflowHandler) Emit(mtype edge.MessageType) {
	h.l.Debug("emitted message", zap.Stringer("message_type", mtype))
}

// Storage handler

type StorageHandler struct {
	l *zap.Logger
}

func (h *StorageHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *StorageHandler) OpenedStore(path string) {
	h.l.Info("opened store", zap.String("path", path))
}

func (h *StorageHandler) RebuildingIndexes(store string) {
	h.l.Info("rebuilding indexes", zap.String("store", store))
}

// HTTPD handler

type HTTPDHandler struct {
	l *zap.Logger
}

func (h *HTTPDHandler) NewHTTPServerErrorLogger() *log.Logger {
	s := &StaticLevelHandler{
		l:     h.l.With(zap.String("service", "httpd_server_errors")),
		level: llError,
	}

	return log.New(s, "", log.LstdFlags)
}

func (h *HTTPDHandler) StartingService() {
	h.l.Info("starting HTTP service")
}

func (h *HTTPDHandler) StoppedService() {
	h.l.Info("closed HTTP service")
}

func (h *HTTPDHandler) ShutdownTimeout() {
	h.l.Error("shutdown timedout, forcefully closing all remaining connections")
}

func (h *HTTPDHandler) ListeningOn(addr string, proto string) {
	h.l.Info("listening on", zap.String("addr", addr), zap.String("protocol", proto))
}

func (h *HTTPDHandler) HTTP(
	host string,
	start time.Time,
	method string,
	uri string,
	proto string,
	status int,
	referer string,
	userAgent string,
	reqID string,
	duration time.Duration,
) {
	h.l.Info("http request",
		zap.String("host", host),
		zap.Time("start", start),
		zap.String("method", method),
		zap.String("uri", uri),
		zap.String("protocol", proto),
		zap.Int("status", status),
		zap.String("referer", referer),
		zap.String("user-agent", userAgent),
		zap.String("request-id", reqID),
		zap.Duration("duration", duration),
	)
}

func (h *HTTPDHandler) RecoveryError(
	msg string,
	err string,
	host string,
	method string,
	uri string,
) {
	h.l.Error(
		msg,
		zap.String("err", err),
		zap.String("host", host),
		zap.String("method", method),
		zap.String("uri", uri),
	)
}

func (h *HTTPDHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// Kafka handler

type KafkaHandler struct {
	l *zap.Logger
}

func (h *KafkaHandler) WithContext(ctx ...keyvalue.T) kafka.Diagnostic {
	return &KafkaHandler{
		l: h.l.With(logFieldsFromContext(ctx)...),
	}
}

func (h *KafkaHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *KafkaHandler) InsecureSkipVerify() {
	h.l.Info("service is configured to skip ssl verification")
}

// MQTT handler

type MQTTHandler struct {
	l *zap.Logger
}

func (h *MQTTHandler) WithContext(ctx ...keyvalue.T) mqtt.Diagnostic {
	return &MQTTHandler{
		l: h.l.With(logFieldsFromContext(ctx)...),
	}
}

func (h *MQTTHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *MQTTHandler) Connected(broker string) {
	h.l.Info("connected to broker", zap.String("broker", broker))
}

// RuleSets handler

type RuleSetsHandler struct {
	l *zap.Logger
}

func (h *RuleSetsHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	Err(h.l, msg, err, ctx)
}

func (h *RuleSetsHandler) LoadedRuleSet(id, kind string, rules int) {
	h.l.Info("loaded rule set", zap.String("id", id), zap.String("kind", kind), zap.Int("rules", rules))
}

func (h *RuleSetsHandler) AppliedRuleSet(id string, records int64, d time.Duration) {
	h.l.Debug("applied rule set", zap.String("id", id), zap.Int64("records", records), zap.Duration("duration", d))
}

// Metrics handler

type MetricsHandler struct {
	l *zap.Logger
}

func (h *MetricsHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

// Server handler

type ServerHandler struct {
	l *zap.Logger
}

func (h *ServerHandler) Error(msg string, err error, ctx ...keyvalue.T) {
	Err(h.l, msg, err, ctx)
}

func (h *ServerHandler) Info(msg string, ctx ...keyvalue.T) {
	Info(h.l, msg, ctx)
}

func (h *ServerHandler) Debug(msg string, ctx ...keyvalue.T) {
	Debug(h.l, msg, ctx)
}

type logLevel int

const (
	llInvalid logLevel = iota
	llDebug
	llError
	llInfo
)

// StaticLevelHandler is an io.Writer logging every write at one level.
type StaticLevelHandler struct {
	l     *zap.Logger
	level logLevel
}

func (h *StaticLevelHandler) Write(buf []byte) (int, error) {
	switch h.level {
	case llDebug:
		h.l.Debug(string(buf))
	case llError:
		h.l.Error(string(buf))
	case llInfo:
		h.l.Info(string(buf))
	default:
		return 0, errors.New("invalid log level")
	}

	return len(buf), nil
}

// Cmd handler

type CmdHandler struct {
	l *zap.Logger
}

func (h *CmdHandler) Error(msg string, err error) {
	h.l.Error(msg, zap.Error(err))
}

func (h *CmdHandler) KflowStarting(version, branch, commit string) {
	h.l.Info("kflow starting", zap.String("version", version), zap.String("branch", branch), zap.String("commit", commit))
}

func (h *CmdHandler) GoVersion() {
	h.l.Info("go version", zap.String("version", runtime.Version()))
}

func (h *CmdHandler) Info(msg string) {
	h.l.Info(msg)
}
