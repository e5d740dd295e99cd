package watch

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newTestLogger(verbose, jsonOut bool) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(LoggerConfig{Writer: &buf, Verbose: verbose, JSON: jsonOut}), &buf
}

func TestLogger_Text(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		emit    func(*Logger)
		want    []string
		absent  []string
	}{
		{
			name: "ready",
			emit: func(l *Logger) { l.Ready(3, "src") },
			want: []string{"morphir: watching 3 files in src", "morphir: ready"},
		},
		{
			name:   "file changed hidden unless verbose",
			emit:   func(l *Logger) { l.FileChanged("Main.elm", ChangeModified) },
			absent: []string{"Main.elm"},
		},
		{
			name:    "file changed verbose",
			verbose: true,
			emit:    func(l *Logger) { l.FileChanged("Main.elm", ChangeDeleted) },
			want:    []string{"- Main.elm"},
		},
		{
			name: "rebuilding one",
			emit: func(l *Logger) { l.Rebuilding([]string{"Main.elm"}) },
			want: []string{"Main.elm changed, rebuilding..."},
		},
		{
			name: "rebuilding many",
			emit: func(l *Logger) { l.Rebuilding([]string{"A.elm", "B.elm"}) },
			want: []string{"2 files changed, rebuilding..."},
		},
		{
			name: "built",
			emit: func(l *Logger) { l.Built("incremental build, 1 updated") },
			want: []string{"✓ incremental build, 1 updated"},
		},
		{
			name: "error",
			emit: func(l *Logger) { l.Error(errors.New("engine went away")) },
			want: []string{"✗ error: engine went away"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, buf := newTestLogger(tt.verbose, false)
			tt.emit(l)
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output %q missing %q", out, w)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(out, a) {
					t.Errorf("output %q should not contain %q", out, a)
				}
			}
		})
	}
}

func TestLogger_NoColorWhenNotTTY(t *testing.T) {
	l, buf := newTestLogger(false, false)
	l.Built("done")
	if strings.Contains(buf.String(), "\033[") {
		t.Errorf("unexpected ANSI escape in %q", buf.String())
	}
}

func TestLogger_ShutdownStats(t *testing.T) {
	l, buf := newTestLogger(false, false)
	l.Built("a")
	l.Built("b")
	l.Error(errors.New("boom"))
	l.Shutdown()

	stats := l.Stats()
	if stats.BuildCount != 2 || stats.ErrorCount != 1 {
		t.Errorf("Stats() = %+v, want 2 builds and 1 error", stats)
	}
	if !strings.Contains(buf.String(), "shutting down (2 builds, 1 errors)") {
		t.Errorf("unexpected shutdown output %q", buf.String())
	}
}

func TestLogger_JSON(t *testing.T) {
	l, buf := newTestLogger(false, true)
	l.Ready(2, "src")
	l.FileChanged("Main.elm", ChangeAdded)
	l.Rebuilding([]string{"Main.elm"})
	l.Built("ok")
	l.Error(errors.New("bad"))
	l.Shutdown()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	wantEvents := []string{"ready", "file_changed", "rebuilding", "built", "error", "shutdown"}
	if len(lines) != len(wantEvents) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(wantEvents), buf.String())
	}

	for i, line := range lines {
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		if obj["event"] != wantEvents[i] {
			t.Errorf("line %d event = %v, want %s", i, obj["event"], wantEvents[i])
		}
	}

	var ready map[string]any
	_ = json.Unmarshal([]byte(lines[0]), &ready)
	if ready["files"] != float64(2) || ready["path"] != "src" {
		t.Errorf("unexpected ready event %v", ready)
	}
}
