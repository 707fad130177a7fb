package app

import "github.com/bft-labs/feedrelay/internal/domain"

// SeqState is the delivery state of a Sequencer.
type SeqState int

const (
	SeqIdle SeqState = iota
	SeqAwaitingFetch
	SeqReady
	SeqSending
)

// String returns a human-readable representation of the state.
func (s SeqState) String() string {
	switch s {
	case SeqIdle:
		return "Idle"
	case SeqAwaitingFetch:
		return "AwaitingFetch"
	case SeqReady:
		return "Ready"
	case SeqSending:
		return "Sending"
	default:
		return "Unknown"
	}
}

// Ticket identifies one item send. Its epoch ties it to the batch it was
// taken from, so a confirmation that outlives its batch changes nothing.
type Ticket struct {
	Epoch uint64
	Index int
}

// StepKind tells the caller what a request turned into.
type StepKind int

const (
	// StepNone means nothing to do: the batch is exhausted.
	StepNone StepKind = iota
	// StepParked means a send or fetch is in flight; the request is served
	// when it resolves.
	StepParked
	// StepFetch means the caller must fetch generation Step.Gen.
	StepFetch
	// StepWrapped means the cursor reached the end and was reset to 0.
	StepWrapped
	// StepSend means the caller must send Step.Item under Step.Ticket.
	StepSend
)

// Step is the outcome of Sequencer.RequestNext.
type Step struct {
	Kind   StepKind
	Gen    uint64
	Item   domain.NewsItem
	Ticket Ticket
}

// Sequencer is the delivery cursor over the active item batch. It is not
// safe for concurrent use; the Relay owns it on its event goroutine.
//
// The cursor only moves inside Confirm, never when a send is issued. At most
// one item is in flight; requests arriving meanwhile are parked and served
// once it resolves.
type Sequencer struct {
	items     []domain.NewsItem
	current   int
	exhausted bool
	epoch     uint64

	gen      uint64
	fetching bool

	sending  bool
	inflight Ticket
	pending  bool
}

// NewSequencer creates an idle sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// State returns the current delivery state.
func (s *Sequencer) State() SeqState {
	switch {
	case s.sending:
		return SeqSending
	case s.fetching:
		return SeqAwaitingFetch
	case len(s.items) > 0:
		return SeqReady
	default:
		return SeqIdle
	}
}

// Current returns the cursor position.
func (s *Sequencer) Current() int { return s.current }

// Len returns the size of the active batch.
func (s *Sequencer) Len() int { return len(s.items) }

// Exhausted reports whether the cursor wrapped on the active batch.
func (s *Sequencer) Exhausted() bool { return s.exhausted }

// Pending reports whether a request is parked.
func (s *Sequencer) Pending() bool { return s.pending }

// RequestNext handles a "send next item" request.
func (s *Sequencer) RequestNext() Step {
	if s.sending || s.fetching {
		s.pending = true
		return Step{Kind: StepParked}
	}
	if len(s.items) == 0 {
		return Step{Kind: StepFetch, Gen: s.BeginFetch(true)}
	}
	if s.exhausted {
		return Step{Kind: StepNone}
	}
	if s.current >= len(s.items) {
		s.current = 0
		s.exhausted = true
		return Step{Kind: StepWrapped}
	}

	s.sending = true
	s.inflight = Ticket{Epoch: s.epoch, Index: s.current}
	return Step{Kind: StepSend, Item: s.items[s.current], Ticket: s.inflight}
}

// Confirm records the outcome of the send identified by t. A successful send
// advances the cursor by one; a failed one leaves it for the next request.
// It reports whether the cursor moved and whether a parked request should
// now be served.
func (s *Sequencer) Confirm(t Ticket, err error) (advanced, serve bool) {
	if !s.sending || t != s.inflight {
		return false, false
	}
	s.sending = false
	if t.Epoch == s.epoch && err == nil && s.current < len(s.items) {
		s.current++
		advanced = true
	}
	return advanced, s.takePending()
}

// BeginFetch starts a new fetch generation, superseding any fetch still in
// flight. With autoSend the first item is sent once the batch arrives.
func (s *Sequencer) BeginFetch(autoSend bool) uint64 {
	s.gen++
	s.fetching = true
	if autoSend {
		s.pending = true
	}
	return s.gen
}

// CompleteFetch installs feed as the active batch if gen is the newest
// generation. It reports whether the batch was accepted, and whether a parked
// request should now be served.
func (s *Sequencer) CompleteFetch(gen uint64, feed domain.Feed) (accepted, serve bool) {
	if !s.fetching || gen != s.gen {
		return false, false
	}
	s.fetching = false
	s.items = feed.Items
	s.current = 0
	s.exhausted = false
	s.epoch++
	if len(s.items) == 0 {
		s.pending = false
		return true, false
	}
	return true, s.takePending()
}

// FailFetch ends generation gen without touching the active batch. A parked
// request is dropped; the next explicit request tries again.
func (s *Sequencer) FailFetch(gen uint64) bool {
	if !s.fetching || gen != s.gen {
		return false
	}
	s.fetching = false
	s.pending = false
	return true
}

// Article returns item i of the active batch.
func (s *Sequencer) Article(i int) (domain.NewsItem, bool) {
	if i < 0 || i >= len(s.items) {
		return domain.NewsItem{}, false
	}
	return s.items[i], true
}

// Reset drops the batch and any parked request. Fetches and sends still in
// flight become stale.
func (s *Sequencer) Reset() {
	s.items = nil
	s.current = 0
	s.exhausted = false
	s.epoch++
	s.gen++
	s.fetching = false
	s.pending = false
}

func (s *Sequencer) takePending() bool {
	if !s.pending || s.sending || s.fetching {
		return false
	}
	s.pending = false
	return true
}
