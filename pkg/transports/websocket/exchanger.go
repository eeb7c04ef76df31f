// Package websocket exchanges one request/reply pair as websocket text messages.
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/harunnryd/kokoroctl/pkg/logging"
	"github.com/harunnryd/kokoroctl/pkg/transports"
)

type Config struct {
	URL              string
	ConnectTimeout   time.Duration
	IOTimeout        time.Duration
	MaxResponseBytes int
	Logger           *slog.Logger
}

type Exchanger struct {
	cfg    Config
	dialer websocket.Dialer
	logger *slog.Logger
}

func New(cfg Config) *Exchanger {
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = transports.DefaultMaxResponseBytes
	}
	return &Exchanger{
		cfg: cfg,
		dialer: websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		logger: logging.NewComponentLogger(cfg.Logger, "websocket_exchanger"),
	}
}

func (e *Exchanger) Name() string { return "websocket" }

func (e *Exchanger) Exchange(ctx context.Context, payload []byte) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	dialCtx := ctx
	if e.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, e.cfg.ConnectTimeout)
		defer cancel()
	}

	conn, resp, err := e.dialer.DialContext(dialCtx, e.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, transports.ConnectError(e.cfg.URL, err)
	}
	defer e.release(conn)
	e.logger.Debug("connected", "url", e.cfg.URL)

	stop := context.AfterFunc(ctx, func() {
		_ = conn.NetConn().SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	conn.SetReadLimit(int64(e.cfg.MaxResponseBytes))
	if e.cfg.IOTimeout > 0 {
		deadline := time.Now().Add(e.cfg.IOTimeout)
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, transports.IOError(ctx, "write request", err)
	}

	_, msg, err := conn.ReadMessage()
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return nil, transports.ErrEmptyResponse
	case errors.Is(err, websocket.ErrReadLimit):
		return nil, transports.ErrResponseTooLarge
	case err != nil:
		return nil, transports.IOError(ctx, "read reply", err)
	case len(msg) == 0:
		return nil, transports.ErrEmptyResponse
	}
	return msg, nil
}

func (e *Exchanger) release(conn *websocket.Conn) {
	closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second))
	if err := conn.Close(); err != nil {
		e.logger.Debug("close failed", "error", err)
	}
}

var _ transports.Exchanger = (*Exchanger)(nil)
