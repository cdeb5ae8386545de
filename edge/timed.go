package edge

// Timer brackets a unit of work.
type Timer interface {
	Start()
	Stop()
}

type timedForwardReceiver struct {
	timer Timer
	r     ForwardReceiver
}

// NewTimedForwardReceiver creates a forward receiver which times the time spent in r.
// Only record handling is timed so that t sees one Start/Stop pair per record.
func NewTimedForwardReceiver(t Timer, r ForwardReceiver) ForwardReceiver {
	return &timedForwardReceiver{
		timer: t,
		r:     r,
	}
}

func (tr *timedForwardReceiver) Format(f FormatMessage) (Message, error) {
	return tr.r.Format(f)
}

func (tr *timedForwardReceiver) Record(r RecordMessage) (m Message, err error) {
	tr.timer.Start()
	m, err = tr.r.Record(r)
	tr.timer.Stop()
	return
}

func (tr *timedForwardReceiver) EndOfStream(e EndOfStreamMessage) (Message, error) {
	return tr.r.EndOfStream(e)
}

func (tr *timedForwardReceiver) Done() {
	tr.r.Done()
}
