package tcp

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/kokoroctl/pkg/errorsx"
	"github.com/harunnryd/kokoroctl/pkg/transports"
)

const request = `{"text":"hello","voice":"af_heart","speed":1,"lang":"en-us","upload_to_s3":true}`

// serveOnce accepts a single connection and hands it to handle. The returned
// channel yields the bytes the handler reports as received.
func serveOnce(t *testing.T, handle func(conn net.Conn) []byte) (host string, port int, got <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		defer conn.Close()
		ch <- handle(conn)
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, ch
}

func readJSONRequest(conn net.Conn) []byte {
	var raw json.RawMessage
	if err := json.NewDecoder(conn).Decode(&raw); err != nil {
		return nil
	}
	return raw
}

func newExchanger(host string, port int, framing transports.Framing) *Exchanger {
	return New(Config{
		Host:           host,
		Port:           port,
		ConnectTimeout: time.Second,
		IOTimeout:      5 * time.Second,
		Framing:        framing,
	})
}

func TestExchangeJSONFramingReassemblesSplitReply(t *testing.T) {
	host, port, got := serveOnce(t, func(conn net.Conn) []byte {
		req := readJSONRequest(conn)
		_, _ = conn.Write([]byte(`{"success": true, "file`))
		time.Sleep(50 * time.Millisecond)
		_, _ = conn.Write([]byte(`name": "out.wav"}`))
		return req
	})

	resp, err := newExchanger(host, port, transports.FramingJSON).Exchange(context.Background(), []byte(request))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if string(resp) != `{"success": true, "filename": "out.wav"}` {
		t.Fatalf("unexpected reply %q", resp)
	}
	if string(<-got) != request {
		t.Fatalf("server did not receive the full request")
	}
}

func TestExchangeSingleReadFraming(t *testing.T) {
	host, port, _ := serveOnce(t, func(conn net.Conn) []byte {
		req := readJSONRequest(conn)
		_, _ = conn.Write([]byte(`{"success": false, "error": "voice not found"}`))
		return req
	})

	resp, err := newExchanger(host, port, transports.FramingSingle).Exchange(context.Background(), []byte(request))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !strings.Contains(string(resp), "voice not found") {
		t.Fatalf("unexpected reply %q", resp)
	}
}

func TestExchangeEOFFramingHalfCloses(t *testing.T) {
	host, port, got := serveOnce(t, func(conn net.Conn) []byte {
		req, _ := io.ReadAll(conn)
		_, _ = conn.Write([]byte(`{"success": true}`))
		return req
	})

	resp, err := newExchanger(host, port, transports.FramingEOF).Exchange(context.Background(), []byte(request))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if string(resp) != `{"success": true}` {
		t.Fatalf("unexpected reply %q", resp)
	}
	if string(<-got) != request {
		t.Fatalf("server did not read the request up to EOF")
	}
}

func TestExchangeLengthFraming(t *testing.T) {
	reply := []byte(`{"success": true, "file_size": 1024}`)
	host, port, got := serveOnce(t, func(conn net.Conn) []byte {
		var hdr [4]byte
		if _, err := io.ReadFull(conn, hdr[:]); err != nil {
			return nil
		}
		body := make([]byte, binary.BigEndian.Uint32(hdr[:]))
		if _, err := io.ReadFull(conn, body); err != nil {
			return nil
		}
		out := make([]byte, 4+len(reply))
		binary.BigEndian.PutUint32(out, uint32(len(reply)))
		copy(out[4:], reply)
		_, _ = conn.Write(out)
		return body
	})

	resp, err := newExchanger(host, port, transports.FramingLength).Exchange(context.Background(), []byte(request))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if string(resp) != string(reply) {
		t.Fatalf("unexpected reply %q", resp)
	}
	if string(<-got) != request {
		t.Fatalf("server did not receive the prefixed request")
	}
}

func TestExchangeEmptyResponse(t *testing.T) {
	for _, framing := range []transports.Framing{transports.FramingJSON, transports.FramingSingle, transports.FramingEOF, transports.FramingLength} {
		host, port, _ := serveOnce(t, func(conn net.Conn) []byte {
			if framing == transports.FramingEOF {
				_, _ = io.ReadAll(conn)
			} else {
				_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
				_, _ = conn.Read(make([]byte, 512))
			}
			return nil
		})

		_, err := newExchanger(host, port, framing).Exchange(context.Background(), []byte(request))
		if !errorsx.HasReason(err, errorsx.ReasonEmptyResponse) {
			t.Fatalf("%s: expected empty response, got %v", framing, err)
		}
	}
}

func TestExchangeConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	start := time.Now()
	_, err = newExchanger("127.0.0.1", port, transports.FramingJSON).Exchange(context.Background(), []byte(request))
	if !errorsx.HasReason(err, errorsx.ReasonConnectionFailed) {
		t.Fatalf("expected connection failure, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("connection failure took too long")
	}
}

func TestExchangeMalformedReplyIsReturned(t *testing.T) {
	host, port, _ := serveOnce(t, func(conn net.Conn) []byte {
		req := readJSONRequest(conn)
		_, _ = conn.Write([]byte("not json"))
		return req
	})

	resp, err := newExchanger(host, port, transports.FramingJSON).Exchange(context.Background(), []byte(request))
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if !strings.HasPrefix(string(resp), "no") {
		t.Fatalf("expected raw malformed bytes, got %q", resp)
	}
}

func TestExchangeReplyTooLarge(t *testing.T) {
	host, port, _ := serveOnce(t, func(conn net.Conn) []byte {
		_, _ = io.ReadAll(conn)
		_, _ = conn.Write([]byte(strings.Repeat("x", 100)))
		return nil
	})

	ex := New(Config{Host: host, Port: port, ConnectTimeout: time.Second, IOTimeout: 5 * time.Second, Framing: transports.FramingEOF, MaxResponseBytes: 16})
	_, err := ex.Exchange(context.Background(), []byte(request))
	if !errors.Is(err, transports.ErrResponseTooLarge) || !errorsx.HasReason(err, errorsx.ReasonTransport) {
		t.Fatalf("expected oversize transport error, got %v", err)
	}
}

func TestExchangeIOTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	host, port, _ := serveOnce(t, func(conn net.Conn) []byte {
		req := readJSONRequest(conn)
		<-release
		return req
	})

	ex := New(Config{Host: host, Port: port, ConnectTimeout: time.Second, IOTimeout: 100 * time.Millisecond})
	_, err := ex.Exchange(context.Background(), []byte(request))
	if !errorsx.HasReason(err, errorsx.ReasonTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestExchangeCancelUnblocksRead(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	host, port, _ := serveOnce(t, func(conn net.Conn) []byte {
		req := readJSONRequest(conn)
		<-release
		return req
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := newExchanger(host, port, transports.FramingJSON).Exchange(ctx, []byte(request))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if !errorsx.HasReason(err, errorsx.ReasonTransport) {
		t.Fatalf("expected transport reason, got %v", errorsx.Reason(err))
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("cancel did not unblock the read")
	}
}

func TestAddr(t *testing.T) {
	ex := New(Config{Host: "::1", Port: 9876})
	if ex.Addr() != "[::1]:9876" {
		t.Fatalf("unexpected addr %s", ex.Addr())
	}
	if ex.Name() != "tcp" || ex.Framing() != transports.FramingJSON {
		t.Fatalf("unexpected defaults")
	}
}
