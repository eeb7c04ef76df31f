// Package kokoro runs a single synthesis exchange against a Kokoro TTS server.
package kokoro

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/kokoroctl/pkg/errorsx"
	"github.com/harunnryd/kokoroctl/pkg/logging"
	"github.com/harunnryd/kokoroctl/pkg/metrics"
	"github.com/harunnryd/kokoroctl/pkg/redact"
	"github.com/harunnryd/kokoroctl/pkg/synth"
	"github.com/harunnryd/kokoroctl/pkg/transports"
	"github.com/harunnryd/kokoroctl/pkg/transports/tcp"
	"github.com/harunnryd/kokoroctl/pkg/transports/websocket"
)

const textPreviewRunes = 80

type Client struct {
	cfg       Config
	exchanger transports.Exchanger
	reader    synth.TextReader
	observer  metrics.Observer
	closers   []func() error
	logger    *slog.Logger
}

type Option func(*Client)

// WithExchanger replaces the transport selected by Config.Transport.
func WithExchanger(ex transports.Exchanger) Option {
	return func(c *Client) { c.exchanger = ex }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver sets the metrics observer; it overrides metrics.jsonl_path.
func WithObserver(o metrics.Observer) Option {
	return func(c *Client) { c.observer = o }
}

func WithTextReader(r synth.TextReader) Option {
	return func(c *Client) { c.reader = r }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{cfg: cfg, reader: synth.FileReader{}}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	if c.observer == nil {
		c.observer = metrics.NoopObserver{}
		if cfg.Metrics.JSONLPath != "" {
			obs, err := metrics.OpenJSONLFile(cfg.Metrics.JSONLPath)
			if err != nil {
				return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
			}
			c.observer = obs
			c.closers = append(c.closers, obs.Close)
		}
	}

	if c.exchanger == nil {
		ex, err := newExchanger(cfg, c.logger)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.exchanger = ex
	}
	c.logger = logging.NewComponentLogger(c.logger, "client")
	return c, nil
}

func newExchanger(cfg Config, logger *slog.Logger) (transports.Exchanger, error) {
	switch cfg.Transport {
	case TransportWebsocket:
		return websocket.New(websocket.Config{
			URL:              cfg.URL,
			ConnectTimeout:   cfg.ConnectTimeout,
			IOTimeout:        cfg.IOTimeout,
			MaxResponseBytes: cfg.MaxResponseBytes,
			Logger:           logger,
		}), nil
	case TransportTCP, "":
		framing, err := transports.ParseFraming(cfg.Framing)
		if err != nil {
			return nil, errorsx.Wrap(err, errorsx.ReasonConfig)
		}
		return tcp.New(tcp.Config{
			Host:             cfg.Host,
			Port:             cfg.Port,
			ConnectTimeout:   cfg.ConnectTimeout,
			IOTimeout:        cfg.IOTimeout,
			Framing:          framing,
			MaxResponseBytes: cfg.MaxResponseBytes,
			Logger:           logger,
		}), nil
	default:
		return nil, errorsx.New(errorsx.ReasonConfig, "unknown transport %q", cfg.Transport)
	}
}

// Target describes where requests go, for diagnostics.
func (c *Client) Target() string {
	if c.cfg.Transport == TransportWebsocket {
		return c.cfg.URL
	}
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// Synthesize builds the request, performs one exchange and interprets the
// reply. Caller-side failures return before any connection is attempted.
// A reply with success=false is a result, not an error.
func (c *Client) Synthesize(ctx context.Context, p synth.Params) (*synth.Result, error) {
	reqID := uuid.NewString()
	log := c.logger.With("request_id", reqID)

	req, err := synth.Build(p, c.reader)
	if err != nil {
		return nil, err
	}
	payload, err := synth.Encode(req)
	if err != nil {
		return nil, err
	}

	log.Info("sending request",
		"transport", c.exchanger.Name(),
		"target", c.Target(),
		"voice", req.Voice,
		"speed", req.Speed,
		"lang", req.Language,
		"upload_to_s3", req.UploadToS3,
		"text", redact.Preview(req.Text, textPreviewRunes),
		"bytes", len(payload),
	)

	start := time.Now()
	raw, err := c.exchanger.Exchange(ctx, payload)
	elapsed := time.Since(start)
	if err != nil {
		c.record(reqID, elapsed, len(payload), 0, errorsx.Reason(err))
		log.Warn("exchange failed", "reason", errorsx.Reason(err), "error", err)
		return nil, err
	}

	res, err := synth.Interpret(raw)
	if err != nil {
		c.record(reqID, elapsed, len(payload), len(raw), errorsx.Reason(err))
		log.Warn("undecodable reply", "bytes", len(raw), "error", err)
		return nil, err
	}
	c.record(reqID, elapsed, len(payload), len(raw), "ok")

	log.Info("reply received",
		"success", res.Succeeded(),
		"upload", res.Upload().String(),
		"elapsed_ms", metrics.Millis(elapsed),
	)
	return res, nil
}

func (c *Client) record(reqID string, elapsed time.Duration, sent, received int, outcome errorsx.ReasonCode) {
	tags := map[string]string{
		metrics.TagRequestID: reqID,
		metrics.TagTransport: c.exchanger.Name(),
		metrics.TagOutcome:   string(outcome),
	}
	if ex, ok := c.exchanger.(*tcp.Exchanger); ok {
		tags[metrics.TagFraming] = string(ex.Framing())
	}
	c.observer.RecordEvent(metrics.Event{
		Name:  metrics.EventExchange,
		Time:  time.Now(),
		Value: metrics.Millis(elapsed),
		Tags:  tags,
		Fields: map[string]any{
			"bytes_sent":     sent,
			"bytes_received": received,
		},
	})
}

// Close releases resources held by the client, such as a metrics file.
func (c *Client) Close() error {
	var first error
	for _, fn := range c.closers {
		if err := fn(); err != nil && first == nil {
			first = fmt.Errorf("close: %w", err)
		}
	}
	c.closers = nil
	return first
}
