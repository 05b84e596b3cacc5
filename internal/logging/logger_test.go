package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slidecast/internal/config"
	"slidecast/internal/logging"
	"slidecast/internal/services"
)

func newFileLogger(t *testing.T) (string, func() string) {
	t.Helper()

	logPath := filepath.Join(t.TempDir(), "out.log")
	return logPath, func() string {
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("json message", logging.String("k", "v"))

	line := strings.TrimSpace(read())
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", line, err)
	}
	if record["msg"] != "json message" {
		t.Fatalf("unexpected message %v", record["msg"])
	}
	if record["k"] != "v" {
		t.Fatalf("expected attribute k=v, got %v", record["k"])
	}
}

func TestNewConsoleLogger(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "console",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("console message", logging.Int("count", 3))

	content := read()
	if !strings.Contains(content, "console message") {
		t.Fatalf("expected message in output, got %q", content)
	}
	if !strings.Contains(content, "count") {
		t.Fatalf("expected attribute in output, got %q", content)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("visible")

	content := read()
	if strings.Contains(content, "hidden") {
		t.Fatalf("expected debug record to be filtered, got %q", content)
	}
	if !strings.Contains(content, "visible") {
		t.Fatalf("expected info record, got %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "slidecast.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from config") {
		t.Fatalf("expected record in log file, got %q", content)
	}
}

func TestComponentLoggerAddsField(t *testing.T) {
	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.NewComponentLogger(logger, "pipeline").Info("component message")

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldComponent] != "pipeline" {
		t.Fatalf("expected component field, got %v", record)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-123")
	ctx = services.WithStage(ctx, "rasterize")
	ctx = services.WithRequestID(ctx, "req-xyz")

	logPath, read := newFileLogger(t)
	logger, err := logging.New(logging.Options{
		Format:      "json",
		Level:       "info",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldJobID] != "job-123" {
		t.Fatalf("expected job id field, got %v", record)
	}
	if record[logging.FieldStage] != "rasterize" {
		t.Fatalf("expected stage field, got %v", record)
	}
	if record[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("expected correlation field, got %v", record)
	}
}
