// Package sseclient consumes a Chatwire event stream: it opens the stream,
// parses frames, filters heartbeats, and re-establishes the stream after
// errors until stopped.
package sseclient

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/wayli-app/chatwire/internal/realtime"
)

// State is the reconnector's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}

// DefaultRetryDelay is the fixed wait between reconnect attempts.
const DefaultRetryDelay = 3 * time.Second

// Config configures a stream client.
type Config struct {
	// URL is the stream endpoint, e.g. https://host/api/sse/notifications.
	URL string

	// Token is the access credential, sent as a query parameter because
	// this transport cannot carry custom headers in browsers.
	Token string

	// RetryDelay is the fixed delay before reconnecting. Zero selects the
	// default. Retries continue until Stop.
	RetryDelay time.Duration

	// OnEvent receives every non-heartbeat envelope. Heartbeats are
	// filtered here and never delivered upward.
	OnEvent func(realtime.Envelope)

	// HTTPClient optionally overrides the transport. It must not set a
	// total request timeout; streams are long-lived.
	HTTPClient *http.Client
}

// Client maintains at most one live stream at a time. A reconnect fully
// closes the previous stream before opening a new one.
type Client struct {
	cfg       Config
	state     atomic.Int32
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a stream client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("sseclient: URL is required")
	}
	if cfg.OnEvent == nil {
		return nil, fmt.Errorf("sseclient: OnEvent callback is required")
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		cfg:  cfg,
		done: make(chan struct{}),
	}, nil
}

// Start begins the connect loop. Calling Start more than once is a no-op.
func (c *Client) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		c.cancel = cancel
		go c.run(runCtx)
	})
}

// Stop terminates the state machine: the live stream closes and no further
// retries occur. Blocks until the run loop has exited.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
			<-c.done
		} else {
			close(c.done)
		}
	})
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// run is the Disconnected → Connecting → Open loop. Each iteration owns one
// stream; the previous response body is always closed before redialing.
func (c *Client) run(ctx context.Context) {
	defer close(c.done)
	defer c.setState(StateDisconnected)

	delay := backoff.NewConstantBackOff(c.cfg.RetryDelay)

	for {
		if ctx.Err() != nil {
			return
		}

		c.setState(StateConnecting)
		resp, err := c.dial(ctx)
		if err != nil {
			log.Debug().Err(err).Str("url", c.cfg.URL).Msg("Stream dial failed")
		} else {
			c.setState(StateOpen)
			c.consume(ctx, resp)
			_ = resp.Body.Close()
		}

		c.setState(StateDisconnected)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay.NextBackOff()):
		}
	}
}

// dial opens the stream request. Any non-200 response is an error.
func (c *Client) dial(ctx context.Context) (*http.Response, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse stream url: %w", err)
	}
	if c.cfg.Token != "" {
		q := u.Query()
		q.Set("token", c.cfg.Token)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}
	return resp, nil
}

// consume reads frames until the stream errors or the context ends.
// Heartbeat envelopes are filtered; malformed frames are dropped and the
// stream continues.
func (c *Client) consume(ctx context.Context, resp *http.Response) {
	scanner := bufio.NewScanner(resp.Body)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "data:") {
			// Successive data lines of one frame join with a newline.
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(line, "data:"))
			continue
		}
		if line != "" || data.Len() == 0 {
			continue
		}

		env, err := realtime.DecodeFrameData(data.String())
		data.Reset()
		if err != nil {
			log.Debug().Err(err).Msg("Dropping malformed frame")
			continue
		}
		if env.Type == realtime.EventPing {
			continue
		}
		c.cfg.OnEvent(env)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		log.Debug().Err(err).Msg("Stream read ended")
	}
}
