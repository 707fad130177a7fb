package app

// FeedWalker paces the feed-name listing: a count message first, then one
// name per confirmed send. Each listing is a run; confirmations and ticks
// from an older run are ignored, so a new request restarts the walk.
type FeedWalker struct {
	run    uint64
	names  []string
	next   int
	active bool
}

// Start begins a new run over names and returns its id.
func (w *FeedWalker) Start(names []string) uint64 {
	w.run++
	w.names = names
	w.next = 0
	w.active = true
	return w.run
}

// Current reports whether run is the live walk.
func (w *FeedWalker) Current(run uint64) bool {
	return w.active && run == w.run
}

// Next returns the name to send for run and its position, or false when the
// walk is over or stale.
func (w *FeedWalker) Next(run uint64) (string, int, bool) {
	if !w.Current(run) || w.next >= len(w.names) {
		return "", 0, false
	}
	return w.names[w.next], w.next, true
}

// Confirm records the outcome of the send at position i of run. It reports
// whether more names remain to be sent. A failure halts the walk.
func (w *FeedWalker) Confirm(run uint64, i int, err error) bool {
	if !w.Current(run) || i != w.next {
		return false
	}
	if err != nil {
		w.active = false
		return false
	}
	w.next++
	if w.next >= len(w.names) {
		w.active = false
		return false
	}
	return true
}

// Halt stops the live walk.
func (w *FeedWalker) Halt() {
	w.active = false
}

// Sent returns the number of names confirmed in the live or last run.
func (w *FeedWalker) Sent() int { return w.next }
