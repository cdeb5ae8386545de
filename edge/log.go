package edge

// Diagnostic observes the messages passing through an edge.
type Diagnostic interface {
	Collect(mtype MessageType)
	Emit(mtype MessageType)
}

type logEdge struct {
	e    Edge
	diag Diagnostic
}

// NewLogEdge creates an edge that logs the type of all collected and emitted messages.
//
// The edge reports every message and is meant for debugging flows.
func NewLogEdge(d Diagnostic, e Edge) Edge {
	return &logEdge{
		e:    e,
		diag: d,
	}
}

func (e *logEdge) Collect(m Message) error {
	e.diag.Collect(m.Type())
	return e.e.Collect(m)
}

func (e *logEdge) Emit() (m Message, ok bool) {
	m, ok = e.e.Emit()
	if ok {
		e.diag.Emit(m.Type())
	}
	return
}

func (e *logEdge) Close() error {
	return e.e.Close()
}

func (e *logEdge) Abort() {
	e.e.Abort()
}
