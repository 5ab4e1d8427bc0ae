package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// MockStream records writes and replays canned reads.
type MockStream struct {
	reads     [][]byte
	readIdx   int
	readErr   error
	writeN    int // forced write count when writeSet is true
	writeSet  bool
	writeErr  error
	written   bytes.Buffer
	readSizes []int
	closed    bool
}

func (m *MockStream) Read(p []byte) (int, error) {
	m.readSizes = append(m.readSizes, len(p))
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.readIdx >= len(m.reads) {
		return 0, nil
	}
	resp := m.reads[m.readIdx]
	m.readIdx++
	return copy(p, resp), nil
}

func (m *MockStream) Write(p []byte) (int, error) {
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	if m.writeSet {
		return m.writeN, nil
	}
	return m.written.Write(p)
}

func (m *MockStream) Close() error {
	m.closed = true
	return nil
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(d time.Duration) {
	s.calls = append(s.calls, d)
}

func TestChannelReadShort(t *testing.T) {
	stream := &MockStream{reads: [][]byte{{0x5F}}}
	rec := &sleepRecorder{}
	ch := NewChannel(stream, WithSleeper(rec.sleep))

	data, err := ch.Read(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(data, []byte{0x5F}) {
		t.Errorf("Read() = % X, want 5F", data)
	}
	if len(stream.readSizes) != 1 || stream.readSizes[0] != 5 {
		t.Errorf("underlying reads = %v, want exactly one read of 5", stream.readSizes)
	}
	if len(rec.calls) != 1 || rec.calls[0] != time.Millisecond {
		t.Errorf("sleeps = %v, want one 1ms delay before the read", rec.calls)
	}
}

func TestChannelReadTimeoutIsNotAnError(t *testing.T) {
	ch := NewChannel(&MockStream{}, WithDelay(0))

	data, err := ch.Read(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("Read() = % X, want empty", data)
	}
}

func TestChannelReadCopiesData(t *testing.T) {
	stream := &MockStream{reads: [][]byte{{0x01, 0x02}, {0x03, 0x04}}}
	ch := NewChannel(stream, WithDelay(0))

	first, _ := ch.Read(2)
	second, _ := ch.Read(2)

	if !bytes.Equal(first, []byte{0x01, 0x02}) {
		t.Errorf("first read was overwritten: % X", first)
	}
	if !bytes.Equal(second, []byte{0x03, 0x04}) {
		t.Errorf("second read = % X", second)
	}
}

func TestChannelReadError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "eof is a short read", err: io.EOF, wantErr: false},
		{name: "device gone", err: errors.New("device disconnected"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewChannel(&MockStream{readErr: tt.err}, WithDelay(0))

			_, err := ch.Read(1)
			if tt.wantErr {
				var readErr *ReadError
				if !errors.As(err, &readErr) {
					t.Fatalf("error = %v, want *ReadError", err)
				}
				if !errors.Is(err, tt.err) {
					t.Errorf("error does not wrap %v", tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestChannelWrite(t *testing.T) {
	stream := &MockStream{}
	rec := &sleepRecorder{}
	ch := NewChannel(stream, WithSleeper(rec.sleep), WithDelay(2*time.Millisecond))

	n, err := ch.Write([]byte{0xD7, 0x00})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("Write() = %d, want 2", n)
	}
	if !bytes.Equal(stream.written.Bytes(), []byte{0xD7, 0x00}) {
		t.Errorf("written = % X", stream.written.Bytes())
	}
	if len(rec.calls) != 1 || rec.calls[0] != 2*time.Millisecond {
		t.Errorf("sleeps = %v, want one 2ms delay after the write", rec.calls)
	}
}

func TestChannelWriteFailures(t *testing.T) {
	tests := []struct {
		name      string
		stream    *MockStream
		wantShort bool
	}{
		{
			name:   "zero bytes accepted",
			stream: &MockStream{writeSet: true, writeN: 0},
		},
		{
			name:   "negative count",
			stream: &MockStream{writeSet: true, writeN: -1},
		},
		{
			name:   "underlying error",
			stream: &MockStream{writeErr: errors.New("broken pipe")},
		},
		{
			name:      "short write",
			stream:    &MockStream{writeSet: true, writeN: 2},
			wantShort: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &sleepRecorder{}
			ch := NewChannel(tt.stream, WithSleeper(rec.sleep))

			_, err := ch.Write([]byte{0x00, 0x20, 0x00, 0x00})
			var writeErr *WriteError
			if !errors.As(err, &writeErr) {
				t.Fatalf("error = %v, want *WriteError", err)
			}
			if writeErr.Requested != 4 {
				t.Errorf("Requested = %d, want 4", writeErr.Requested)
			}
			if writeErr.Written < 0 {
				t.Errorf("Written = %d, must not be negative", writeErr.Written)
			}
			if writeErr.Short() != tt.wantShort {
				t.Errorf("Short() = %v, want %v", writeErr.Short(), tt.wantShort)
			}
			if len(rec.calls) != 0 {
				t.Errorf("failed write must not be paced, got sleeps %v", rec.calls)
			}
		})
	}
}

func TestChannelTrace(t *testing.T) {
	var logBuf bytes.Buffer
	logger := zerolog.New(&logBuf).Level(zerolog.DebugLevel)

	stream := &MockStream{reads: [][]byte{{0xFD}}}
	ch := NewChannel(stream, WithDelay(0), WithTraceLogger(logger))

	if err := ch.WriteByte(0xFD); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ch.Read(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := logBuf.String()
	if strings.Count(out, "channel exchange") != 2 {
		t.Errorf("expected two trace records, got: %s", out)
	}
	if !strings.Contains(out, `"op":"write"`) || !strings.Contains(out, `"op":"read"`) {
		t.Errorf("trace records missing op field: %s", out)
	}
	if !strings.Contains(out, `"hex":"FD"`) {
		t.Errorf("trace records missing hex dump: %s", out)
	}
}

func TestChannelClose(t *testing.T) {
	stream := &MockStream{}
	ch := NewChannel(stream)

	if err := ch.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stream.closed {
		t.Error("underlying stream not closed")
	}

	// Streams without Close are fine
	if err := NewChannel(&bytes.Buffer{}).Close(); err != nil {
		t.Errorf("Close() on non-closer = %v", err)
	}
}

func TestNewChannelNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewChannel(nil) did not panic")
		}
	}()
	NewChannel(nil)
}

func TestRetryOpen(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		attempts     int
		wantErr      bool
		wantAttempts int
	}{
		{name: "first try", failures: 0, attempts: 3, wantAttempts: 1},
		{name: "after retries", failures: 2, attempts: 3, wantAttempts: 3},
		{name: "exhausted", failures: 5, attempts: 3, wantErr: true, wantAttempts: 3},
		{name: "zero budget still tries once", failures: 0, attempts: 0, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryOpen(context.Background(), "/dev/ttyACM0", tt.attempts, time.Microsecond, func() error {
				calls++
				if calls <= tt.failures {
					return errors.New("no such file or directory")
				}
				return nil
			})

			if calls != tt.wantAttempts {
				t.Errorf("open called %d times, want %d", calls, tt.wantAttempts)
			}

			if tt.wantErr {
				var openErr *ChannelOpenError
				if !errors.As(err, &openErr) {
					t.Fatalf("error = %v, want *ChannelOpenError", err)
				}
				if openErr.Attempts != tt.attempts {
					t.Errorf("Attempts = %d, want %d", openErr.Attempts, tt.attempts)
				}
				if !strings.Contains(err.Error(), "/dev/ttyACM0") {
					t.Errorf("error should name the port: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRetryOpenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryOpen(ctx, "/dev/ttyACM0", 10, time.Second, func() error {
		calls++
		return errors.New("busy")
	})

	if calls != 0 {
		t.Errorf("open called %d times after cancellation", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestOpenConfigMode(t *testing.T) {
	cfg := DefaultOpenConfig("/dev/ttyACM0")
	mode := cfg.Mode()

	if mode.BaudRate != 115200 {
		t.Errorf("BaudRate = %d, want 115200", mode.BaudRate)
	}
	if mode.DataBits != 8 {
		t.Errorf("DataBits = %d, want 8", mode.DataBits)
	}

	cfg.BaudRate = 0
	if cfg.Mode().BaudRate != 115200 {
		t.Error("zero baud rate should fall back to the default")
	}
}
