package logic

import "time"

// Sink transmits a sequenced command and reports the outcome.
type Sink interface {
	Transmit(cmd OutboundCommand) (Outcome, error)
}

// Dispatcher throttles requests per source, assigns sequence numbers and
// forwards accepted commands to the sink.
type Dispatcher struct {
	sink        Sink
	activity    *Activity
	minInterval time.Duration
	bootTime    time.Time

	seq          uint16
	lastAccepted map[ChannelID]time.Time
	counts       OutcomeCounts
}

// NewDispatcher creates a dispatcher. bootTime anchors command timestamps.
func NewDispatcher(sink Sink, activity *Activity, minInterval time.Duration, bootTime time.Time) *Dispatcher {
	return &Dispatcher{
		sink:         sink,
		activity:     activity,
		minInterval:  minInterval,
		bootTime:     bootTime,
		lastAccepted: make(map[ChannelID]time.Time),
	}
}

// Dispatch handles one request. Throttled requests return OutcomeThrottled with
// a nil error and leave all state untouched. The sequence number only advances
// when the sink reports OutcomeSent.
func (d *Dispatcher) Dispatch(now time.Time, req Request) (Outcome, error) {
	if last, ok := d.lastAccepted[req.Source]; ok && now.Sub(last) < d.minInterval {
		d.counts.Add(OutcomeThrottled)
		return OutcomeThrottled, nil
	}

	d.lastAccepted[req.Source] = now
	if d.activity != nil {
		d.activity.Touch(now)
	}

	sinceBoot := now.Sub(d.bootTime)
	cmd := OutboundCommand{
		Name:      req.Cmd,
		Seq:       d.seq,
		Timestamp: sinceBoot.Milliseconds(),
	}
	if req.Extra != nil {
		cmd.Extra = req.Extra(sinceBoot)
	}

	outcome, err := d.sink.Transmit(cmd)
	if outcome == OutcomeSent {
		d.seq++
	}
	d.counts.Add(outcome)
	return outcome, err
}

// NextSeq returns the sequence number the next transmitted command will carry.
func (d *Dispatcher) NextSeq() uint16 {
	return d.seq
}

// Counts returns outcome counters since startup.
func (d *Dispatcher) Counts() OutcomeCounts {
	return d.counts
}
