package feedrelay

import "github.com/bft-labs/feedrelay/internal/app"

// State is the lifecycle state of a FeedRelay.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

func convertState(s app.State) State {
	switch s {
	case app.StateStopped:
		return StateStopped
	case app.StateStarting:
		return StateStarting
	case app.StateRunning:
		return StateRunning
	case app.StateStopping:
		return StateStopping
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateStopped
	}
}

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// FeedLoadedEvent reports a downloaded and parsed feed.
type FeedLoadedEvent struct {
	URL string

	// Items is the number of accepted items, possibly zero.
	Items int

	// Strategy names the parser that produced the items.
	Strategy string
}

// FetchErrorEvent reports a failed feed download.
type FetchErrorEvent struct {
	URL   string
	Error error
}

// ItemSentEvent reports a headline the device acknowledged.
type ItemSentEvent struct {
	Index int
	Title string
}

// SendErrorEvent reports a message the device did not acknowledge.
type SendErrorEvent struct {
	// Kind is the message kind, e.g. "item", "article" or "feed_name".
	Kind  string
	Error error
}

// EventHandler receives relay notifications.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnFeedLoaded(event FeedLoadedEvent)
	OnFetchError(event FetchErrorEvent)
	OnItemSent(event ItemSentEvent)
	OnSendError(event SendErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only some events.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnFeedLoaded(FeedLoadedEvent)   {}
func (BaseEventHandler) OnFetchError(FetchErrorEvent)   {}
func (BaseEventHandler) OnItemSent(ItemSentEvent)       {}
func (BaseEventHandler) OnSendError(SendErrorEvent)     {}

// eventEmitterWrapper adapts EventHandler to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}

func (e *eventEmitterWrapper) OnFeedLoaded(url string, items int, strategy string) {
	if e.handler == nil {
		return
	}
	e.handler.OnFeedLoaded(FeedLoadedEvent{URL: url, Items: items, Strategy: strategy})
}

func (e *eventEmitterWrapper) OnFetchError(url string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnFetchError(FetchErrorEvent{URL: url, Error: err})
}

func (e *eventEmitterWrapper) OnItemSent(index int, title string) {
	if e.handler == nil {
		return
	}
	e.handler.OnItemSent(ItemSentEvent{Index: index, Title: title})
}

func (e *eventEmitterWrapper) OnSendError(kind string, err error) {
	if e.handler == nil {
		return
	}
	e.handler.OnSendError(SendErrorEvent{Kind: kind, Error: err})
}
