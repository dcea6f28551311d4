package telemetry

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureStdout redirects os.Stdout for the duration of fn and returns what
// was written. SetupLogger writes directly to the process stdout, so the tests
// capture at the file-descriptor level.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read: %v", err)
	}
	return buf.String()
}

func TestSetupLogger_DoesNotPanicForAllCombinations(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	for _, format := range []string{"json", "text", ""} {
		for _, level := range []string{"debug", "info", "warn", "warning", "error", "bogus", ""} {
			captureStdout(t, func() {
				SetupLogger(format, level, "stdout")
			})
		}
	}
}

func TestSetupLogger_JSONFormat_ProducesValidJSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	out := captureStdout(t, func() {
		SetupLogger("json", "info", "")
		slog.Info("probe", "key", "value")
	})

	sc := bufio.NewScanner(strings.NewReader(out))
	lines := 0
	for sc.Scan() {
		var record map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &record); err != nil {
			t.Fatalf("line %q is not valid JSON: %v", sc.Text(), err)
		}
		lines++
	}
	if lines == 0 {
		t.Fatal("expected at least one log line")
	}
}

func TestSetupLogger_TextFormat_ProducesKeyValuePairs(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	out := captureStdout(t, func() {
		SetupLogger("text", "info", "stdout")
		slog.Info("probe", "key", "value")
	})

	if !strings.Contains(out, "msg=probe") {
		t.Errorf("expected key=value text output, got %q", out)
	}
}

func TestSetupLogger_LevelFiltering(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	out := captureStdout(t, func() {
		SetupLogger("json", "error", "stdout")
		slog.Info("should-be-dropped")
		slog.Error("should-appear")
	})

	if strings.Contains(out, "should-be-dropped") {
		t.Error("info record leaked through error-level filter")
	}
	if !strings.Contains(out, "should-appear") {
		t.Error("error record missing")
	}
}

func TestSetupLogger_FileOutput(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	path := filepath.Join(t.TempDir(), "app.log")
	captureStdout(t, func() {
		SetupLogger("json", "info", path)
		slog.Info("file-probe")
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "file-probe") {
		t.Errorf("log file missing record, got %q", data)
	}
}

func TestSetupLogger_UnopenableFileFallsBackToStdout(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	out := captureStdout(t, func() {
		SetupLogger("json", "info", filepath.Join(t.TempDir(), "missing", "nested", "app.log"))
		slog.Info("fallback-probe")
	})

	if !strings.Contains(out, "fallback-probe") {
		t.Errorf("expected fallback to stdout, got %q", out)
	}
}

func TestParseLevel_Defaults(t *testing.T) {
	if got := parseLevel("nonsense"); got != slog.LevelInfo {
		t.Errorf("parseLevel(nonsense) = %v, want info", got)
	}
	if got := parseLevel("WARNING"); got != slog.LevelWarn {
		t.Errorf("parseLevel(WARNING) = %v, want warn", got)
	}
}
