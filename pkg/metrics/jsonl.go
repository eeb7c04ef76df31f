package metrics

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// JSONLObserver writes one JSON object per event.
type JSONLObserver struct {
	mu     sync.Mutex
	logger *slog.Logger
	buf    *bufio.Writer
	file   *os.File
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	return &JSONLObserver{logger: slog.New(slog.NewJSONHandler(buf, nil)), buf: buf}
}

// OpenJSONLFile appends events to the file at path, creating parent directories.
func OpenJSONLFile(path string) (*JSONLObserver, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metrics dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open metrics file: %w", err)
	}
	o := NewJSONLObserver(f)
	o.file = f
	return o, nil
}

func (o *JSONLObserver) RecordEvent(ev Event) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logger.LogAttrs(context.Background(), slog.LevelInfo, "metrics", attrs...)
}

func (o *JSONLObserver) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf.Flush()
}

// Close flushes pending events and closes the backing file, if any.
func (o *JSONLObserver) Close() error {
	err := o.Flush()
	if o.file != nil {
		if cerr := o.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
