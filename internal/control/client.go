package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"fieldrec/internal/logging"
)

const (
	defaultConnectTimeout  = 2 * time.Second
	defaultRequestTimeout  = 3 * time.Second
	defaultDisableAttempts = 3
	defaultRetryDelay      = 500 * time.Millisecond
)

// ErrDisableExhausted reports that every disable attempt failed.
var ErrDisableExhausted = errors.New("transceiver disable attempts exhausted")

// ErrDisabled is returned by Start and SetRange once a disable has begun.
var ErrDisabled = errors.New("transceiver disabled for shutdown")

// Command is a single control-plane request.
type Command struct {
	Method  string
	Path    string
	Payload any
	// Timeout overrides the client's total request timeout when positive.
	Timeout time.Duration
}

// PowerPayload is the body of /transceiver/power requests.
type PowerPayload struct {
	PowerState string   `json:"power_state"`
	Range      *float64 `json:"range,omitempty"`
}

// StreamPayload is the body of /datastream requests.
type StreamPayload struct {
	StreamType string `json:"stream_type"`
}

// PowerOn builds the enable command for the given range in meters.
func PowerOn(rangeMeters float64) Command {
	return Command{Method: http.MethodPut, Path: "/transceiver/power", Payload: PowerPayload{PowerState: "on", Range: &rangeMeters}}
}

// PowerOff builds the disable command.
func PowerOff() Command {
	return Command{Method: http.MethodPut, Path: "/transceiver/power", Payload: PowerPayload{PowerState: "off"}}
}

// SelectRTSP builds the stream-mode command.
func SelectRTSP() Command {
	return Command{Method: http.MethodPut, Path: "/datastream", Payload: StreamPayload{StreamType: "rtsp"}}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("control %s %s: http %d", e.Method, e.URL, e.StatusCode)
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	ConnectTimeout  time.Duration
	RequestTimeout  time.Duration
	DisableAttempts int
	RetryDelay      time.Duration
}

// Client talks to one sensor control endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	attempts   int
	delay      time.Duration
	sleeper    func(time.Duration)
	logger     *slog.Logger

	// mu serializes requests so the head applies them in call order.
	mu       sync.Mutex
	disabled atomic.Bool
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleeper = sleeper
		}
	}
}

// NewClient constructs a control-plane client.
func NewClient(opts Options, logger *slog.Logger, extra ...Option) *Client {
	connect := opts.ConnectTimeout
	if connect <= 0 {
		connect = defaultConnectTimeout
	}
	total := opts.RequestTimeout
	if total <= 0 {
		total = defaultRequestTimeout
	}
	attempts := opts.DisableAttempts
	if attempts <= 0 {
		attempts = defaultDisableAttempts
	}
	delay := opts.RetryDelay
	if delay < 0 {
		delay = defaultRetryDelay
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		ResponseHeaderTimeout: total,
		DisableKeepAlives:     true,
	}
	client := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		httpClient: &http.Client{Timeout: total, Transport: transport},
		timeout:    total,
		attempts:   attempts,
		delay:      delay,
		sleeper:    time.Sleep,
		logger:     logging.NewComponentLogger(logger, "control"),
	}
	for _, opt := range extra {
		opt(client)
	}
	return client
}

// Send issues one request and reports transport or status failure.
// Concurrent calls are issued one at a time.
func (c *Client) Send(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(ctx, cmd)
}

// sendEnabling is Send for commands that may power the transceiver on. It
// refuses once DisableWithRetry has started, checking under the request lock
// so no enable can be ordered after a disable.
func (c *Client) sendEnabling(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled.Load() {
		return fmt.Errorf("control %s: %w", cmd.Path, ErrDisabled)
	}
	return c.send(ctx, cmd)
}

func (c *Client) send(ctx context.Context, cmd Command) error {
	body, err := json.Marshal(cmd.Payload)
	if err != nil {
		return fmt.Errorf("control %s: encode payload: %w", cmd.Path, err)
	}
	timeout := c.timeout
	if cmd.Timeout > 0 {
		timeout = cmd.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.baseURL + cmd.Path
	method := cmd.Method
	if method == "" {
		method = http.MethodPut
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("control %s %s: %w", method, url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("control %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, URL: url, StatusCode: resp.StatusCode}
	}
	return nil
}

// Start selects RTSP streaming and powers the transceiver on. Each step is
// attempted once; failures are logged and returned joined so recording can
// continue.
func (c *Client) Start(ctx context.Context, rangeMeters float64) error {
	var errs []error
	if err := c.sendEnabling(ctx, SelectRTSP()); err != nil {
		if errors.Is(err, ErrDisabled) {
			return err
		}
		logging.WarnWithContext(c.logger, "failed to set rtsp stream mode", "control_stream_mode_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the sonar head is powered and reachable"),
			logging.String(logging.FieldImpact, "stream may not deliver frames"),
		)
		errs = append(errs, err)
	}
	if err := c.SetRange(ctx, rangeMeters); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SetRange powers the transceiver on with the given range. After a disable
// has begun it sends nothing and returns ErrDisabled.
func (c *Client) SetRange(ctx context.Context, rangeMeters float64) error {
	if err := c.sendEnabling(ctx, PowerOn(rangeMeters)); err != nil {
		if errors.Is(err, ErrDisabled) {
			c.logger.Debug("range change refused; transceiver is being disabled", logging.Float64("range_m", rangeMeters))
			return err
		}
		logging.WarnWithContext(c.logger, "failed to enable transceiver", "control_enable_failed",
			logging.Error(err),
			logging.Float64("range_m", rangeMeters),
			logging.String(logging.FieldErrorHint, "check the sonar head is powered and reachable"),
			logging.String(logging.FieldImpact, "transceiver may be off or at the previous range"),
		)
		return err
	}
	c.logger.Info("transceiver enabled",
		logging.String(logging.FieldEventType, "control_enabled"),
		logging.Float64("range_m", rangeMeters),
	)
	return nil
}

// DisableWithRetry powers the transceiver off, retrying with a fixed delay.
// It ignores cancellation of ctx so it still runs after an interrupt, and it
// always returns after at most the configured number of attempts. Once called,
// later Start and SetRange calls are refused, and an enable already in flight
// completes before the first power-off is sent.
func (c *Client) DisableWithRetry(ctx context.Context) error {
	c.disabled.Store(true)
	ctx = context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		c.logger.Info("disabling transceiver",
			logging.String(logging.FieldEventType, "control_disable_attempt"),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", c.attempts),
		)
		lastErr = c.Send(ctx, PowerOff())
		if lastErr == nil {
			c.logger.Info("transceiver disabled",
				logging.String(logging.FieldEventType, "control_disabled"),
				logging.Int(logging.FieldAttempt, attempt),
			)
			return nil
		}
		c.logger.Debug("disable attempt failed", logging.Int(logging.FieldAttempt, attempt), logging.Error(lastErr))
		if attempt < c.attempts {
			c.sleeper(c.delay)
		}
	}
	logging.ErrorWithContext(c.logger, "failed to disable transceiver", "control_disable_exhausted",
		logging.Alert("critical"),
		logging.Error(lastErr),
		logging.Int("attempts", c.attempts),
		logging.String(logging.FieldErrorHint, "power the sonar head off manually"),
		logging.String(logging.FieldImpact, "transceiver may still be transmitting"),
	)
	return fmt.Errorf("%w: %w", ErrDisableExhausted, lastErr)
}
