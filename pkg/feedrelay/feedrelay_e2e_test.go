package feedrelay_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/feedrelay/pkg/feedrelay"
)

// =============================================================================
// Test Utilities
// =============================================================================

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Test &amp; Co</title>
<item><title>Fish &amp; Chips</title><description>&lt;p&gt;Served hot.&lt;/p&gt;</description></item>
<item><title>Second story</title></item>
</channel></rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeed)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// stubTransport confirms every send and records it.
type stubTransport struct {
	mu   sync.Mutex
	sent []feedrelay.Fields
}

func (s *stubTransport) Send(_ context.Context, fields feedrelay.Fields, done func(error)) {
	s.mu.Lock()
	s.sent = append(s.sent, fields)
	s.mu.Unlock()
	go done(nil)
}

func (s *stubTransport) Run(ctx context.Context, _ feedrelay.Dispatcher) error {
	<-ctx.Done()
	return nil
}

func (s *stubTransport) Sent() []feedrelay.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]feedrelay.Fields, len(s.sent))
	copy(cp, s.sent)
	return cp
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	name      string
	mu        *sync.Mutex
	order     *[]string
	initError error
	cfg       feedrelay.PluginConfig
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(_ context.Context, cfg feedrelay.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initError != nil {
		return p.initError
	}
	p.cfg = cfg
	*p.order = append(*p.order, "init:"+p.name)
	return nil
}

func (p *trackingPlugin) Shutdown(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.order = append(*p.order, "shutdown:"+p.name)
	return nil
}

// panicPlugin panics during initialization.
type panicPlugin struct {
	feedrelay.BasePlugin
}

func (panicPlugin) Initialize(context.Context, feedrelay.PluginConfig) error {
	panic("intentional panic during initialization")
}

// eventTracker records relay events.
type eventTracker struct {
	feedrelay.BaseEventHandler
	mu     sync.Mutex
	states []feedrelay.StateChangeEvent
	loaded []feedrelay.FeedLoadedEvent
	items  []feedrelay.ItemSentEvent
}

func (e *eventTracker) OnStateChange(ev feedrelay.StateChangeEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, ev)
}

func (e *eventTracker) OnFeedLoaded(ev feedrelay.FeedLoadedEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = append(e.loaded, ev)
}

func (e *eventTracker) OnItemSent(ev feedrelay.ItemSentEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, ev)
}

func (e *eventTracker) snapshot() ([]feedrelay.StateChangeEvent, []feedrelay.FeedLoadedEvent, []feedrelay.ItemSentEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]feedrelay.StateChangeEvent(nil), e.states...),
		append([]feedrelay.FeedLoadedEvent(nil), e.loaded...),
		append([]feedrelay.ItemSentEvent(nil), e.items...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func writePrefs(t *testing.T, dir, feedURL string) {
	t.Helper()
	b, err := json.Marshal(map[string]string{"news_feed_url": feedURL})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "preferences.json"), b, 0o644); err != nil {
		t.Fatal(err)
	}
}

// =============================================================================
// Pipeline Tests
// =============================================================================

func TestFeedRelay_DeviceSession(t *testing.T) {
	srv := newFeedServer(t)
	dir := t.TempDir()
	writePrefs(t, dir, srv.URL)

	r, err := feedrelay.New(feedrelay.Config{
		LinkAddr:         "127.0.0.1:0",
		PrefsPath:        dir,
		FeedSendInterval: -1,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	defer r.Stop()

	waitFor(t, "link to bind", func() bool { return r.LinkAddr() != nil })

	conn, err := net.Dial("tcp", r.LinkAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	received := make(chan map[string]any, 32)
	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			var m struct {
				Type   string         `json:"type"`
				Seq    uint64         `json:"seq"`
				Fields map[string]any `json:"fields"`
			}
			if json.Unmarshal(sc.Bytes(), &m) != nil || m.Type != "send" {
				continue
			}
			fmt.Fprintf(conn, "{\"type\":\"ack\",\"seq\":%d}\n", m.Seq)
			received <- m.Fields
		}
	}()

	fmt.Fprint(conn, "{\"type\":\"ready\"}\n")
	fmt.Fprint(conn, "{\"type\":\"message\",\"fields\":{\"173\":1}}\n")

	var channel, title string
	timeout := time.After(5 * time.Second)
	for title == "" {
		select {
		case f := <-received:
			if v, ok := f["176"].(string); ok {
				channel = v
			}
			if v, ok := f["172"].(string); ok {
				title = v
			}
		case <-timeout:
			t.Fatal("no headline received")
		}
	}

	if title != "Fish & Chips" {
		t.Errorf("title = %q, want %q", title, "Fish & Chips")
	}
	if channel != "Test & Co" {
		t.Errorf("channel = %q, want %q", channel, "Test & Co")
	}

	fmt.Fprint(conn, "{\"type\":\"message\",\"fields\":{\"REQUEST_ARTICLE\":0}}\n")
	for {
		select {
		case f := <-received:
			if v, ok := f["181"].(string); ok {
				if v != "Served hot." {
					t.Errorf("article = %q, want %q", v, "Served hot.")
				}
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no article received")
		}
	}
}

func TestFeedRelay_Events(t *testing.T) {
	srv := newFeedServer(t)
	tracker := &eventTracker{}
	transport := &stubTransport{}

	r, err := feedrelay.New(feedrelay.Config{},
		feedrelay.WithTransport(transport),
		feedrelay.WithEventHandler(tracker),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	r.Dispatch(feedrelay.Event{
		Kind:     feedrelay.EventConfigClosed,
		Response: "%7B%22news_feed_url%22%3A%22" + srv.URL + "%22%7D",
	})
	waitFor(t, "feed load", func() bool {
		_, loaded, _ := tracker.snapshot()
		return len(loaded) == 1
	})

	r.Dispatch(feedrelay.Event{Kind: feedrelay.EventMessage, Fields: feedrelay.Fields{"REQUEST_NEWS": true}})
	waitFor(t, "item sent", func() bool {
		_, _, items := tracker.snapshot()
		return len(items) == 1
	})

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	states, loaded, items := tracker.snapshot()
	if loaded[0].URL != srv.URL || loaded[0].Items != 2 || loaded[0].Strategy != "xml" {
		t.Errorf("loaded = %+v", loaded[0])
	}
	if items[0].Index != 0 || items[0].Title != "Fish & Chips" {
		t.Errorf("item = %+v", items[0])
	}

	var path []feedrelay.State
	for _, s := range states {
		path = append(path, s.Current)
	}
	want := []feedrelay.State{feedrelay.StateStarting, feedrelay.StateRunning, feedrelay.StateStopping, feedrelay.StateStopped}
	if fmt.Sprint(path) != fmt.Sprint(want) {
		t.Errorf("states = %v, want %v", path, want)
	}
}

// =============================================================================
// Lifecycle and Plugin Tests
// =============================================================================

func TestFeedRelay_InvalidConfig(t *testing.T) {
	_, err := feedrelay.New(feedrelay.Config{LinkMode: "serial"})
	if !errors.Is(err, feedrelay.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
	_, err = feedrelay.New(feedrelay.Config{ConfigPageURL: "settings.html"})
	if !errors.Is(err, feedrelay.ErrInvalidConfig) {
		t.Errorf("New() error = %v, want ErrInvalidConfig", err)
	}
}

func TestFeedRelay_StartStop(t *testing.T) {
	r, err := feedrelay.New(feedrelay.Config{}, feedrelay.WithTransport(&stubTransport{}))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := r.Stop(); !errors.Is(err, feedrelay.ErrNotRunning) {
		t.Errorf("Stop() before Start = %v, want ErrNotRunning", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, feedrelay.ErrAlreadyRunning) {
		t.Errorf("second Start() = %v, want ErrAlreadyRunning", err)
	}
	if r.Status() != feedrelay.StateRunning {
		t.Errorf("Status = %v, want Running", r.Status())
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if r.Status() != feedrelay.StateStopped {
		t.Errorf("Status = %v, want Stopped", r.Status())
	}

	// restart builds a fresh relay
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() after restart failed: %v", err)
	}
}

func TestFeedRelay_LinkBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	r, err := feedrelay.New(feedrelay.Config{LinkAddr: ln.Addr().String()})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	waitFor(t, "crash", func() bool { return r.Status() == feedrelay.StateCrashed })
}

func TestPlugin_Order(t *testing.T) {
	var mu sync.Mutex
	var order []string
	p1 := &trackingPlugin{name: "p1", mu: &mu, order: &order}
	p2 := &trackingPlugin{name: "p2", mu: &mu, order: &order}
	dir := t.TempDir()

	r, err := feedrelay.New(feedrelay.Config{PrefsPath: dir},
		feedrelay.WithTransport(&stubTransport{}),
		feedrelay.WithPlugin(p1),
		feedrelay.WithPlugin(p2),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	want := []string{"init:p1", "init:p2", "shutdown:p2", "shutdown:p1"}
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", order, want)
	}
	if p1.cfg.PrefsPath != filepath.Join(dir, "preferences.json") {
		t.Errorf("PrefsPath = %q", p1.cfg.PrefsPath)
	}
	if p1.cfg.Reload == nil || p1.cfg.Logger == nil {
		t.Error("plugin config missing Reload or Logger")
	}
}

func TestPlugin_InitFailure(t *testing.T) {
	var mu sync.Mutex
	var order []string
	p1 := &trackingPlugin{name: "p1", mu: &mu, order: &order}
	p2 := &trackingPlugin{name: "p2", mu: &mu, order: &order, initError: errors.New("boom")}
	p3 := &trackingPlugin{name: "p3", mu: &mu, order: &order}

	r, err := feedrelay.New(feedrelay.Config{},
		feedrelay.WithTransport(&stubTransport{}),
		feedrelay.WithPlugin(p1),
		feedrelay.WithPlugin(p2),
		feedrelay.WithPlugin(p3),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail on plugin init error")
	}
	if fmt.Sprint(order) != fmt.Sprint([]string{"init:p1"}) {
		t.Errorf("order = %v, want only p1 initialized", order)
	}
	if r.Status() != feedrelay.StateCrashed {
		t.Errorf("Status = %v, want Crashed", r.Status())
	}
}

func TestPlugin_PanicOnInit(t *testing.T) {
	r, err := feedrelay.New(feedrelay.Config{},
		feedrelay.WithTransport(&stubTransport{}),
		feedrelay.WithPlugin(panicPlugin{}),
	)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail when a plugin panics")
	}
	if r.Status() != feedrelay.StateCrashed {
		t.Errorf("Status = %v, want Crashed", r.Status())
	}
}
