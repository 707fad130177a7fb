package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/feedrelay/internal/domain"
)

func TestFeedFetcher_Success(t *testing.T) {
	var gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte("<rss/>"))
	}))
	defer server.Close()

	f := NewFeedFetcher(server.Client(), "", nil)
	body, err := f.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(body) != "<rss/>" {
		t.Errorf("body = %q, want <rss/>", body)
	}
	if gotUA != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", gotUA, DefaultUserAgent)
	}
	if !strings.Contains(gotAccept, "application/rss+xml") {
		t.Errorf("Accept = %q", gotAccept)
	}
}

func TestFeedFetcher_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"no content", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := NewFeedFetcher(server.Client(), "ua", nil).Fetch(context.Background(), server.URL)
			if !errors.Is(err, domain.ErrFetch) {
				t.Fatalf("Fetch() error = %v, want ErrFetch", err)
			}
		})
	}
}

func TestFeedFetcher_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	f := NewFeedFetcher(server.Client(), "", nil)
	f.maxBytes = 32
	if _, err := f.Fetch(context.Background(), server.URL); !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("Fetch() error = %v, want ErrFetch", err)
	}

	f.maxBytes = 64
	if _, err := f.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("Fetch() at the limit error = %v", err)
	}
}

func TestFeedFetcher_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewFeedFetcher(server.Client(), "", nil).Fetch(ctx, server.URL)
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("Fetch() error = %v, want ErrFetch", err)
	}
}

func TestFeedFetcher_BadURL(t *testing.T) {
	_, err := NewFeedFetcher(http.DefaultClient, "", nil).Fetch(context.Background(), "://bad")
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("Fetch() error = %v, want ErrFetch", err)
	}
}
