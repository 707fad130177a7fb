package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/feedrelay/internal/domain"
	"github.com/bft-labs/feedrelay/internal/feed"
	"github.com/bft-labs/feedrelay/internal/ports"
	"github.com/bft-labs/feedrelay/internal/registry"
	"github.com/bft-labs/feedrelay/pkg/log"
)

// Default relay configuration values.
const (
	DefaultFeedSendInterval = 50 * time.Millisecond
	DefaultFetchTimeout     = 30 * time.Second
	DefaultQueueSize        = 256
)

// RelayConfig contains configuration for the relay loop.
type RelayConfig struct {
	// FeedSendInterval is the pause between two feed names; 0 sends at once
	FeedSendInterval time.Duration

	// FetchTimeout bounds one feed download
	FetchTimeout time.Duration

	// ConfigPageURL is logged when the device opens its settings
	ConfigPageURL string

	QueueSize int
}

// RelayEventEmitter is notified of delivery milestones.
type RelayEventEmitter interface {
	OnFeedLoaded(url string, items int, strategy string)
	OnFetchError(url string, err error)
	OnItemSent(index int, title string)
	OnSendError(kind string, err error)
}

// Session is the pipeline state of one relay. Only the relay goroutine
// touches it.
type Session struct {
	Prefs        domain.Preferences
	Registry     *registry.Registry
	Selected     int
	ChannelTitle string
	Seq          *Sequencer
	Walker       FeedWalker
}

// FeedURL returns the URL to read: the preference override when set,
// else the selected registry entry.
func (s *Session) FeedURL() string {
	if s.Prefs.FeedURL != "" {
		return s.Prefs.FeedURL
	}
	return s.Registry.Resolve(s.Selected)
}

// Relay serves device requests from one event loop. Inbound events, send
// confirmations, fetch completions and timers are all queued and handled on
// the goroutine running Run, so the session needs no locking.
type Relay struct {
	config  RelayConfig
	link    ports.Link
	fetcher ports.FeedFetcher
	store   ports.PreferencesStore
	parser  *feed.Parser
	logger  log.Logger
	emitter RelayEventEmitter

	events  chan any
	done    chan struct{}
	session *Session
	ctx     context.Context

	runAsync  func(func())
	afterFunc func(time.Duration, func())
}

type sendKind int

const (
	sendItem sendKind = iota
	sendArticle
	sendChannelTitle
	sendFeedsCount
	sendFeedName
	sendConfigOpened
	sendConfigReceived
)

func (k sendKind) String() string {
	switch k {
	case sendItem:
		return "item"
	case sendArticle:
		return "article"
	case sendChannelTitle:
		return "channel_title"
	case sendFeedsCount:
		return "feeds_count"
	case sendFeedName:
		return "feed_name"
	case sendConfigOpened:
		return "config_opened"
	case sendConfigReceived:
		return "config_received"
	default:
		return "unknown"
	}
}

type sendResult struct {
	kind   sendKind
	ticket Ticket
	run    uint64
	index  int
	title  string
	err    error
}

type fetchDone struct {
	gen    uint64
	url    string
	result feed.Result
	err    error
}

type walkTick struct {
	run uint64
}

type reloadRequest struct{}

// NewRelay creates a relay. store and emitter may be nil.
func NewRelay(
	config RelayConfig,
	link ports.Link,
	fetcher ports.FeedFetcher,
	store ports.PreferencesStore,
	parser *feed.Parser,
	logger log.Logger,
	emitter RelayEventEmitter,
) *Relay {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	if config.FeedSendInterval < 0 {
		config.FeedSendInterval = 0
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if parser == nil {
		parser = feed.NewParser(logger)
	}
	return &Relay{
		config:  config,
		link:    link,
		fetcher: fetcher,
		store:   store,
		parser:  parser,
		logger:  logger,
		emitter: emitter,
		events:  make(chan any, config.QueueSize),
		done:    make(chan struct{}),
		session: &Session{
			Registry: registry.New(nil),
			Seq:      NewSequencer(),
		},
		ctx:      context.Background(),
		runAsync: func(fn func()) { go fn() },
		afterFunc: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
	}
}

// Dispatch queues an inbound device event. It implements ports.Dispatcher.
func (r *Relay) Dispatch(ev domain.Event) {
	r.post(ev)
}

// Reload queues a reload of the preferences. The batch is dropped and the
// effective feed is fetched again.
func (r *Relay) Reload() {
	r.post(reloadRequest{})
}

// Run processes events until ctx is canceled.
func (r *Relay) Run(ctx context.Context) error {
	r.ctx = ctx
	defer close(r.done)

	r.loadPrefs()
	r.logger.Info("relay started",
		log.Int("feeds", r.session.Registry.Len()),
		log.String("feed_url", r.session.FeedURL()))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return ctx.Err()
		case ev := <-r.events:
			r.handle(ev)
		}
	}
}

// post queues ev without blocking past the end of Run.
func (r *Relay) post(ev any) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

// drain handles queued events on the calling goroutine until the queue is
// empty.
func (r *Relay) drain() {
	for {
		select {
		case ev := <-r.events:
			r.handle(ev)
		default:
			return
		}
	}
}

func (r *Relay) handle(ev any) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("event handler panicked",
				log.String("event", fmt.Sprintf("%T", ev)),
				log.Any("panic", p))
		}
	}()

	switch e := ev.(type) {
	case domain.Event:
		r.handleInbound(e)
	case sendResult:
		r.handleSendResult(e)
	case fetchDone:
		r.handleFetchDone(e)
	case walkTick:
		r.sendNextFeedName(e.run)
	case reloadRequest:
		r.handleReload()
	default:
		r.logger.Warn("unknown event", log.String("event", fmt.Sprintf("%T", ev)))
	}
}

func (r *Relay) handleInbound(ev domain.Event) {
	r.logger.Debug("inbound event", log.String("kind", ev.Kind.String()))
	switch ev.Kind {
	case domain.EventReady:
		r.loadPrefs()
		r.startFeedWalk()
		r.prefetch()
	case domain.EventMessage:
		r.handleMessage(ev.Fields)
	case domain.EventConfigOpened:
		r.logger.Info("configuration page opened", log.String("url", r.config.ConfigPageURL))
		r.send(domain.Fields{}.Set(domain.KeyConfigOpened, 1), sendResult{kind: sendConfigOpened})
	case domain.EventConfigClosed:
		r.handleConfigClosed(ev.Response)
	}
}

// handleMessage applies one device message. Feed selection, feed listing and
// article requests are exclusive; a news request and a feed URL may share a
// message.
func (r *Relay) handleMessage(fields domain.Fields) {
	if v, ok := Lookup(fields, domain.KeySelectFeed); ok {
		r.selectFeed(v)
		return
	}
	if _, ok := Lookup(fields, domain.KeyRequestFeeds); ok {
		r.startFeedWalk()
		return
	}
	if v, ok := Lookup(fields, domain.KeyRequestArticle); ok {
		r.sendArticle(v)
		return
	}
	if v, ok := Lookup(fields, domain.KeyRequestNews); ok && truthy(v) {
		r.requestNext()
	}
	if v, ok := Lookup(fields, domain.KeyNewsFeedURL); ok && truthy(v) {
		r.setFeedURL(v)
	}
}

func (r *Relay) selectFeed(v any) {
	idx, ok := toInt(v)
	if !ok {
		r.logger.Warn("invalid feed selection", log.Any("value", v))
		return
	}
	s := r.session
	s.Selected = idx
	if s.Prefs.FeedURL != "" {
		s.Prefs.FeedURL = ""
		r.savePrefs()
	}
	r.logger.Info("feed selected",
		log.Int("index", idx),
		log.String("name", s.Registry.Name(idx)),
		log.String("url", s.FeedURL()))

	s.Seq.Reset()
	r.fetch(s.Seq.BeginFetch(true))
}

func (r *Relay) setFeedURL(v any) {
	raw, ok := v.(string)
	if !ok {
		r.logger.Warn("invalid feed url", log.Any("value", v))
		return
	}
	u := strings.TrimSpace(raw)
	if err := checkFeedURL(u); err != nil {
		r.logger.Warn("invalid feed url", log.String("url", u), log.Err(err))
		return
	}
	s := r.session
	s.Prefs.FeedURL = u
	r.savePrefs()
	r.logger.Info("custom feed url received", log.String("url", u))

	s.Seq.Reset()
	r.fetch(s.Seq.BeginFetch(true))
}

func (r *Relay) requestNext() {
	seq := r.session.Seq
	step := seq.RequestNext()
	switch step.Kind {
	case StepFetch:
		r.fetch(step.Gen)
	case StepSend:
		r.logger.Debug("sending item",
			log.Int("index", step.Ticket.Index),
			log.String("title", step.Item.Title))
		r.send(domain.Fields{}.Set(domain.KeyNewsTitle, step.Item.Title), sendResult{
			kind:   sendItem,
			ticket: step.Ticket,
			title:  step.Item.Title,
		})
	case StepWrapped:
		r.logger.Info("all items sent", log.Int("items", seq.Len()))
	case StepParked:
		r.logger.Debug("request parked", log.String("state", seq.State().String()))
	case StepNone:
		r.logger.Debug("batch exhausted, request ignored")
	}
}

func (r *Relay) sendArticle(v any) {
	idx, ok := toInt(v)
	if !ok {
		r.logger.Warn("invalid article index", log.Any("value", v))
		return
	}
	item, ok := r.session.Seq.Article(idx)
	if !ok {
		r.logger.Warn("article index out of range",
			log.Int("index", idx),
			log.Int("items", r.session.Seq.Len()))
		return
	}
	article := item.Description
	if article == "" {
		article = domain.ArticlePlaceholder
	}
	r.logger.Debug("sending article", log.Int("index", idx), log.Int("chars", len([]rune(article))))
	r.send(domain.Fields{}.Set(domain.KeyNewsArticle, article), sendResult{kind: sendArticle, index: idx})
}

func (r *Relay) startFeedWalk() {
	sources := r.session.Registry.Sources()
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = src.Name
	}
	run := r.session.Walker.Start(names)
	r.send(domain.Fields{}.Set(domain.KeyFeedsCount, len(names)), sendResult{kind: sendFeedsCount, run: run})
}

func (r *Relay) sendNextFeedName(run uint64) {
	name, i, ok := r.session.Walker.Next(run)
	if !ok {
		return
	}
	r.send(domain.Fields{}.Set(domain.KeyFeedName, name), sendResult{kind: sendFeedName, run: run, index: i})
}

func (r *Relay) handleConfigClosed(response string) {
	update, ok, err := ParseConfigPayload(response)
	if err != nil {
		r.logger.Warn("configuration payload rejected", log.Err(err))
		return
	}
	if !ok {
		r.logger.Info("configuration cancelled")
		return
	}

	s := r.session
	s.Prefs = update.Apply(s.Prefs)
	r.savePrefs()
	if update.FeedsSet {
		s.Registry = registry.Load(s.Prefs)
	}
	r.logger.Info("configuration applied",
		log.Bool("feeds_changed", update.ChangesFeeds()),
		log.Int("feeds", s.Registry.Len()))

	if update.ChangesFeeds() {
		r.prefetch()
	}
	r.send(update.Reply(), sendResult{kind: sendConfigReceived})
}

// handleReload ignores a reload that finds the preferences the relay already
// holds, such as the relay's own save.
func (r *Relay) handleReload() {
	prev := r.session.Prefs
	if !r.loadPrefs() {
		return
	}
	if prev.Equal(r.session.Prefs) {
		r.logger.Debug("preferences unchanged, reload skipped")
		return
	}
	r.logger.Info("preferences reloaded")
	r.startFeedWalk()
	r.prefetch()
}

// prefetch replaces the batch with a fresh download of the effective feed
// without sending anything once it lands.
func (r *Relay) prefetch() {
	s := r.session
	s.Seq.Reset()
	r.fetch(s.Seq.BeginFetch(false))
}

// fetch downloads and parses the effective feed off the loop goroutine.
func (r *Relay) fetch(gen uint64) {
	url := r.session.FeedURL()
	ctx := r.ctx
	r.logger.Debug("fetching feed", log.String("url", url), log.Uint64("gen", gen))

	r.runAsync(func() {
		fctx, cancel := context.WithTimeout(ctx, r.config.FetchTimeout)
		defer cancel()

		done := fetchDone{gen: gen, url: url}
		defer func() {
			if p := recover(); p != nil {
				done.err = fmt.Errorf("%w: panic: %v", domain.ErrFetch, p)
				r.post(done)
			}
		}()
		raw, err := r.fetcher.Fetch(fctx, url)
		if err != nil {
			done.err = err
		} else {
			done.result = r.parser.Parse(raw)
		}
		r.post(done)
	})
}

func (r *Relay) handleFetchDone(e fetchDone) {
	s := r.session
	if e.err != nil {
		if !s.Seq.FailFetch(e.gen) {
			r.logger.Debug("stale fetch failure dropped", log.Uint64("gen", e.gen))
			return
		}
		r.logger.Warn("feed fetch failed", log.String("url", e.url), log.Err(e.err))
		if r.emitter != nil {
			r.emitter.OnFetchError(e.url, e.err)
		}
		return
	}

	f := e.result.Feed
	accepted, serve := s.Seq.CompleteFetch(e.gen, f)
	if !accepted {
		r.logger.Debug("stale fetch dropped", log.Uint64("gen", e.gen))
		return
	}
	r.logger.Info("feed loaded",
		log.String("url", e.url),
		log.Int("items", f.Len()),
		log.String("strategy", e.result.Strategy))
	if r.emitter != nil {
		r.emitter.OnFeedLoaded(e.url, f.Len(), e.result.Strategy)
	}

	s.ChannelTitle = f.ChannelTitle
	if f.ChannelTitle != "" {
		r.send(domain.Fields{}.Set(domain.KeyChannelTitle, f.ChannelTitle), sendResult{kind: sendChannelTitle})
	}
	if serve {
		r.requestNext()
	}
}

func (r *Relay) handleSendResult(res sendResult) {
	if res.err != nil {
		r.logger.Warn("send failed", log.String("kind", res.kind.String()), log.Err(res.err))
		if r.emitter != nil {
			r.emitter.OnSendError(res.kind.String(), res.err)
		}
	}

	switch res.kind {
	case sendItem:
		advanced, serve := r.session.Seq.Confirm(res.ticket, res.err)
		if advanced && r.emitter != nil {
			r.emitter.OnItemSent(res.ticket.Index, res.title)
		}
		if serve {
			r.requestNext()
		}
	case sendFeedsCount:
		if res.err != nil {
			if r.session.Walker.Current(res.run) {
				r.session.Walker.Halt()
			}
			return
		}
		r.sendNextFeedName(res.run)
	case sendFeedName:
		if r.session.Walker.Confirm(res.run, res.index, res.err) {
			r.scheduleFeedName(res.run)
		}
	case sendConfigReceived:
		if res.err == nil {
			r.startFeedWalk()
		}
	}
}

func (r *Relay) scheduleFeedName(run uint64) {
	if r.config.FeedSendInterval <= 0 {
		r.sendNextFeedName(run)
		return
	}
	r.afterFunc(r.config.FeedSendInterval, func() {
		r.post(walkTick{run: run})
	})
}

func (r *Relay) send(fields domain.Fields, res sendResult) {
	r.link.Send(r.ctx, fields, func(err error) {
		res.err = err
		r.post(res)
	})
}

func (r *Relay) loadPrefs() bool {
	if r.store == nil {
		return false
	}
	prefs, err := r.store.Load(r.ctx)
	if err != nil {
		r.logger.Warn("failed to load preferences", log.Err(err))
		return false
	}
	r.session.Prefs = prefs
	r.session.Registry = registry.Load(prefs)
	return true
}

func (r *Relay) savePrefs() {
	if r.store == nil {
		return
	}
	if err := r.store.Save(r.ctx, r.session.Prefs); err != nil {
		r.logger.Error("failed to save preferences", log.Err(err))
	}
}
