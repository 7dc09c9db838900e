package upstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"maintenance-cloud/internal/observability/metrics"
)

// State is the fetcher connection state, readable for health reporting.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateRetryWait
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateRetryWait:
		return "retry_wait"
	default:
		return "disconnected"
	}
}

const defaultRetryDelay = 5 * time.Second

// Publisher forwards fetched events onto the message channel.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Fetcher consumes a server-sent event stream and republishes every event
// to the broker topic. It reconnects forever with a fixed delay; the stream
// source going away is an operational condition, not a fatal one.
type Fetcher struct {
	url        string
	topic      string
	publisher  Publisher
	logger     *log.Logger
	retryDelay time.Duration
	httpClient *http.Client

	state atomic.Int32
}

// Option customizes a fetcher.
type Option func(*Fetcher)

// WithRetryDelay overrides the reconnect delay.
func WithRetryDelay(delay time.Duration) Option {
	return func(f *Fetcher) {
		if delay > 0 {
			f.retryDelay = delay
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// NewFetcher constructs a fetcher for the given stream URL.
func NewFetcher(url, topic string, publisher Publisher, logger *log.Logger, opts ...Option) (*Fetcher, error) {
	if url == "" {
		return nil, errors.New("upstream: empty stream url")
	}
	if topic == "" {
		return nil, errors.New("upstream: empty publish topic")
	}
	if publisher == nil {
		return nil, errors.New("upstream: nil publisher")
	}
	if logger == nil {
		logger = log.Default()
	}
	f := &Fetcher{
		url:        url,
		topic:      topic,
		publisher:  publisher,
		logger:     logger,
		retryDelay: defaultRetryDelay,
		// No client timeout: the stream is long-lived by design and a
		// request deadline would sever it mid-flight.
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// State reports the current connection state.
func (f *Fetcher) State() State {
	return State(f.state.Load())
}

// Run streams until ctx is cancelled, reconnecting after every failure.
func (f *Fetcher) Run(ctx context.Context) {
	defer f.state.Store(int32(StateDisconnected))
	for {
		err := f.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		f.logger.Printf("upstream: stream ended: %v, retrying in %s", err, f.retryDelay)
		metrics.IncUpstreamReconnect()

		f.state.Store(int32(StateRetryWait))
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.retryDelay):
		}
	}
}

func (f *Fetcher) stream(ctx context.Context) error {
	f.state.Store(int32(StateConnecting))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect %s: %w", f.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connect %s: status %d", f.url, resp.StatusCode)
	}

	f.state.Store(int32(StateStreaming))
	f.logger.Printf("upstream: streaming from %s", f.url)

	var data []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			f.dispatch(data)
			data = data[:0]
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// Comment and field lines (id:, event:, retry:) are ignored.
	}
	f.dispatch(data)

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return errors.New("stream closed by server")
}

func (f *Fetcher) dispatch(data []string) {
	if len(data) == 0 {
		return
	}
	payload := strings.Join(data, "\n")
	metrics.IncUpstreamEvent()
	if err := f.publisher.Publish(f.topic, []byte(payload)); err != nil {
		f.logger.Printf("upstream: publish to %s failed: %v", f.topic, err)
	}
}
