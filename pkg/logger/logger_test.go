package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInit_WritesToFileOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "botdash.log")
	if err := Init(Config{Level: "debug", OutputFile: path, MaxSize: 1}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = Close() })

	if GetCurrentLogFile() != path {
		t.Fatalf("current log file = %q, want %q", GetCurrentLogFile(), path)
	}
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Fatalf("level = %v, want debug", logrus.GetLevel())
	}

	logrus.WithField("module", "test").Info("hello file")
	Infof("count=%d", 3)

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "hello file") || !strings.Contains(out, "module=test") {
		t.Fatalf("missing module log line: %q", out)
	}
	if !strings.Contains(out, "count=3") {
		t.Fatalf("missing package-level log line: %q", out)
	}
}

func TestInit_BadLevelFallsBackToInfo(t *testing.T) {
	if err := Init(Config{Level: "loud"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if logrus.GetLevel() != logrus.InfoLevel {
		t.Fatalf("level = %v, want info", logrus.GetLevel())
	}
	if GetCurrentLogFile() != "" {
		t.Fatalf("unexpected log file %q", GetCurrentLogFile())
	}
}
