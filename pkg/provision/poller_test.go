package provision

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfroyo/esinstall/pkg/engine"
)

// roundTripFunc lets tests script transport behavior per attempt.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func refused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
}

func respond(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func fastPoll() PollConfig {
	return PollConfig{Attempts: 30, Interval: time.Millisecond, Ticks: 300}
}

func scriptedClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	c := NewClient("localhost", 9200, zerolog.Nop())
	c.HTTP = &http.Client{Transport: rt}
	c.Poll = fastPoll()
	return c
}

func TestDefaultPollConfig(t *testing.T) {
	cfg := DefaultPollConfig()
	if cfg.Attempts != 30 || cfg.Interval != time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Total().String() != "30s" {
		t.Errorf("Total() = %s", cfg.Total())
	}
}

func TestWaitForReadyRetriesRefusedThenSucceeds(t *testing.T) {
	for _, n := range []int{0, 1, 5, 29} {
		var calls atomic.Int32
		c := scriptedClient(t, func(*http.Request) (*http.Response, error) {
			if int(calls.Add(1)) <= n {
				return nil, refused()
			}
			return respond(http.StatusOK), nil
		})

		if err := c.WaitForReady(context.Background(), ""); err != nil {
			t.Fatalf("n=%d: unexpected error: %v", n, err)
		}
		if got := int(calls.Load()); got != n+1 {
			t.Errorf("n=%d: made %d attempts, want %d", n, got, n+1)
		}
	}
}

func TestWaitForReadyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected method %s", r.Method)
		}
		if calls.Add(1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		// Any status below 500 means the node is up, even 401.
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("localhost", 9200, zerolog.Nop())
	c.BaseURL = srv.URL
	c.Poll = fastPoll()

	if err := c.WaitForReady(context.Background(), "bootstrap"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 4 {
		t.Errorf("made %d attempts, want 4", calls.Load())
	}
}

func TestWaitForReadyTimesOutAfterExactlyThirtyAttempts(t *testing.T) {
	var calls atomic.Int32
	c := scriptedClient(t, func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, refused()
	})

	err := c.WaitForReady(context.Background(), "")
	if err == nil {
		t.Fatal("expected timeout")
	}
	if calls.Load() != 30 {
		t.Errorf("made %d attempts, want 30", calls.Load())
	}
	if !engine.HasCode(err, engine.ErrCodeTimeout) {
		t.Errorf("expected TIMEOUT code, got %v", err)
	}
	if !strings.Contains(err.Error(), "not seen running after trying for") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestWaitForReadyTimeoutMessageUsesTotalWait(t *testing.T) {
	c := scriptedClient(t, func(*http.Request) (*http.Response, error) {
		return respond(http.StatusBadGateway), nil
	})
	c.Poll = PollConfig{Attempts: 3, Interval: 2 * time.Millisecond, Ticks: 30}

	err := c.WaitForReady(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "6ms") {
		t.Errorf("expected total wait in message, got %v", err)
	}
}

func TestWaitForReadyOtherTransportErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	c := scriptedClient(t, func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("tls: handshake failure")
	})

	err := c.WaitForReady(context.Background(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("made %d attempts, want 1", calls.Load())
	}
	if engine.HasCode(err, engine.ErrCodeTimeout) {
		t.Error("transport failure must not be reported as timeout")
	}
	if !engine.IsPermanent(err) {
		t.Errorf("expected permanent error, got %v", err)
	}
}

func TestWaitForReadySendsBasicAuth(t *testing.T) {
	var got string
	c := scriptedClient(t, func(r *http.Request) (*http.Response, error) {
		got = r.Header.Get("Authorization")
		return respond(http.StatusOK), nil
	})

	if err := c.WaitForReady(context.Background(), "changeme"); err != nil {
		t.Fatal(err)
	}
	if got != basicAuth("elastic", "changeme") {
		t.Errorf("Authorization = %q", got)
	}

	if err := c.WaitForReady(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("empty password must not send credentials, got %q", got)
	}
}

func TestWaitForReadyProgress(t *testing.T) {
	var calls atomic.Int32
	c := scriptedClient(t, func(*http.Request) (*http.Response, error) {
		if calls.Add(1) < 3 {
			return nil, refused()
		}
		return respond(http.StatusOK), nil
	})
	session := &recordingSession{}
	c = c.WithSession(session)

	if err := c.WaitForReady(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if session.ticks != 300 {
		t.Errorf("reported %d ticks, want the full 300", session.ticks)
	}
}

func TestWaitForReadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := scriptedClient(t, func(*http.Request) (*http.Response, error) {
		cancel()
		return nil, refused()
	})
	c.Poll.Interval = time.Second

	err := c.WaitForReady(ctx, "")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
	if engine.HasCode(err, engine.ErrCodeTimeout) {
		t.Error("cancellation reported as timeout")
	}
}

func TestWaitForReadyAgainstClosedPort(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	_ = l.Close()

	c := NewClient("127.0.0.1", port, zerolog.Nop())
	c.Poll = PollConfig{Attempts: 3, Interval: time.Millisecond}

	var attempts int
	c.Poll.OnAttempt = func(n, _ int, _ error) { attempts = n }

	err = c.WaitForReady(context.Background(), "")
	if !engine.HasCode(err, engine.ErrCodeTimeout) {
		t.Fatalf("expected TIMEOUT against a closed port, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

type recordingSession struct {
	ticks int
	logs  []string
}

func (s *recordingSession) Log(msg string)                 { s.logs = append(s.logs, msg) }
func (s *recordingSession) ActionStart(int, string, string) {}
func (s *recordingSession) Progress(ticks int, _ string)    { s.ticks += ticks }
