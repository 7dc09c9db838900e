package upstream

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu       sync.Mutex
	payloads []string
	err      error
}

func (p *capturePublisher) Publish(_ string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, string(payload))
	return nil
}

func (p *capturePublisher) received() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.payloads))
	copy(out, p.payloads)
	return out
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestNewFetcherValidation(t *testing.T) {
	pub := &capturePublisher{}
	cases := map[string]struct {
		url, topic string
		publisher  Publisher
	}{
		"emptyURL":     {"", "sensor-data", pub},
		"emptyTopic":   {"http://x/stream", "", pub},
		"nilPublisher": {"http://x/stream", "sensor-data", nil},
	}
	for name, tc := range cases {
		if _, err := NewFetcher(tc.url, tc.topic, tc.publisher, nil); err == nil {
			t.Errorf("%s: NewFetcher accepted invalid arguments", name)
		}
	}
}

func TestFetcherForwardsEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q, want text/event-stream", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"Machine_ID\":\"M001\"}\n\n")
		fmt.Fprint(w, ": heartbeat\n\n")
		fmt.Fprint(w, "id: 7\nevent: reading\ndata: {\"Machine_ID\":\"M002\"}\n\n")
	}))
	defer server.Close()

	pub := &capturePublisher{}
	fetcher, err := NewFetcher(server.URL, "sensor-data", pub, quietLogger(), WithRetryDelay(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fetcher.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.received()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	got := pub.received()
	if len(got) < 2 {
		t.Fatalf("received %d events, want at least 2", len(got))
	}
	if got[0] != `{"Machine_ID":"M001"}` || got[1] != `{"Machine_ID":"M002"}` {
		t.Fatalf("unexpected payloads: %q", got[:2])
	}
	if fetcher.State() != StateDisconnected {
		t.Fatalf("state after shutdown = %s, want disconnected", fetcher.State())
	}
}

func TestFetcherReconnectsForever(t *testing.T) {
	var mu sync.Mutex
	connects := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		connects++
		n := connects
		mu.Unlock()
		if n < 3 {
			// Fail the first attempts; the fetcher must keep coming back.
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"Machine_ID\":\"M003\"}\n\n")
	}))
	defer server.Close()

	pub := &capturePublisher{}
	fetcher, err := NewFetcher(server.URL, "sensor-data", pub, quietLogger(), WithRetryDelay(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewFetcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		fetcher.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.received()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	mu.Lock()
	attempts := connects
	mu.Unlock()
	if attempts < 3 {
		t.Fatalf("connected %d times, want at least 3", attempts)
	}
	if len(pub.received()) == 0 {
		t.Fatal("no event forwarded after recovery")
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateStreaming:    "streaming",
		StateRetryWait:    "retry_wait",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
