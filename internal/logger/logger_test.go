package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, Warn)
	defer SetOutput(&bytes.Buffer{}, Info)

	Infof("hidden %d", 1)
	Warnf("shown %d", 2)
	Errorf("also shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") || !strings.Contains(out, "[ERROR] also shown") {
		t.Fatalf("missing expected lines: %q", out)
	}
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "relay.log")
	if err := Init(true, "debug", path, false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Debugf("to file")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[DEBUG] to file") {
		t.Fatalf("unexpected log file content: %q", data)
	}
}

func TestDisabledLoggerIsSilent(t *testing.T) {
	if err := Init(false, "debug", "", true); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Errorf("nothing")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": Debug, "WARNING": Warn, "error": Error, "": Info, "bogus": Info}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

type closeTrackingWriter struct {
	mu             sync.Mutex
	closed         bool
	writesAfterEnd atomic.Int64
}

func (w *closeTrackingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.writesAfterEnd.Add(1)
	}
	return len(p), nil
}

func (w *closeTrackingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestReinitDoesNotCloseFileUnderWriters(t *testing.T) {
	defer SetOutput(&bytes.Buffer{}, Info)

	var writers []*closeTrackingWriter
	install := func() {
		w := &closeTrackingWriter{}
		writers = append(writers, w)
		swap(&Logger{level: Debug, logger: log.New(w, "", 0), enabled: true, closer: w})
	}
	install()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					Infof("concurrent line")
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		install()
	}
	close(stop)
	wg.Wait()

	for i, w := range writers {
		if n := w.writesAfterEnd.Load(); n != 0 {
			t.Fatalf("writer %d received %d writes after it was closed", i, n)
		}
	}
}
