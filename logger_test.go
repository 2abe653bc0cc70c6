package gfx

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// captureLog installs a text logger at level for the duration of the test.
func captureLog(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

func TestLoggerSilentByDefault(t *testing.T) {
	SetLogger(nil)
	for name, l := range map[string]*slog.Logger{
		"root":  Logger(),
		"with":  Logger().With("backend", "hal"),
		"group": Logger().WithGroup("replay"),
	} {
		if l == nil {
			t.Fatalf("%s: nil logger", name)
		}
		if l.Enabled(context.Background(), slog.LevelError) {
			t.Errorf("%s: enabled at error, want silent", name)
		}
	}
}

func TestLoggerBackendEvents(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		setup func(t *testing.T)
		cfg   Config
		want  []string
		skip  []string
	}{
		{
			name:  "explicit",
			level: slog.LevelInfo,
			setup: func(t *testing.T) { registerFake(t, "logged", nil) },
			cfg:   Config{Backend: "logged"},
			want:  []string{"level=INFO", `msg="gfx: backend opened"`, "backend=logged"},
		},
		{
			name:  "auto fallback at debug",
			level: slog.LevelDebug,
			setup: func(t *testing.T) {
				registerFake(t, "a-broken", errors.New("no adapter"))
				registerFake(t, "b-ok", nil)
			},
			cfg: Config{Backend: BackendAuto},
			want: []string{
				`msg="gfx: backend unavailable"`, "backend=a-broken", `err="no adapter"`,
				"backend=b-ok",
			},
		},
		{
			name:  "auto fallback at info",
			level: slog.LevelInfo,
			setup: func(t *testing.T) {
				registerFake(t, "a-broken", errors.New("no adapter"))
				registerFake(t, "b-ok", nil)
			},
			cfg:  Config{Backend: BackendAuto},
			want: []string{"backend=b-ok"},
			skip: []string{"a-broken"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)
			buf := captureLog(t, tt.level)
			if _, err := OpenBackend(tt.cfg); err != nil {
				t.Fatal(err)
			}
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("log = %q, missing %q", out, w)
				}
			}
			for _, s := range tt.skip {
				if strings.Contains(out, s) {
					t.Errorf("log = %q, should not mention %q", out, s)
				}
			}
		})
	}
}

func TestLoggerUnknownConfigKey(t *testing.T) {
	buf := captureLog(t, slog.LevelWarn)
	if _, err := ParseConfig([]byte("backend = \"trace\"\nsurprise = 1\n")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "key=surprise") {
		t.Errorf("log = %q, want a warning naming the key", out)
	}
}

func TestSetLoggerNilSilencesEvents(t *testing.T) {
	registerFake(t, "quiet", nil)
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	SetLogger(nil)
	t.Cleanup(func() { SetLogger(nil) })

	if _, err := OpenBackend(Config{Backend: "quiet"}); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("log = %q after SetLogger(nil), want nothing", buf.String())
	}
}

func TestLoggerSwapWhileOpening(t *testing.T) {
	registerFake(t, "swapped", nil)
	t.Cleanup(func() { SetLogger(nil) })

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				if _, err := OpenBackend(Config{Backend: "swapped"}); err != nil {
					t.Error(err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := range 50 {
				if (i+j)%2 == 0 {
					SetLogger(slog.New(slog.DiscardHandler))
				} else {
					SetLogger(nil)
				}
			}
		}()
	}
	wg.Wait()
}
