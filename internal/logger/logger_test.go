package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldFile := filepath.Join(dir, "2000-01-01.log")
	newFile := filepath.Join(dir, "today.log")
	otherFile := filepath.Join(dir, "keep.txt")

	for _, f := range []string{oldFile, newFile, otherFile} {
		if err := os.WriteFile(f, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-40 * 24 * time.Hour)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(otherFile, past, past); err != nil {
		t.Fatal(err)
	}

	if removed := CleanOldLogs(dir, DefaultRetention); removed != 1 {
		t.Fatalf("expected 1 removed file, got %d", removed)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed", oldFile)
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Errorf("expected %s to be kept, got %v", newFile, err)
	}
	if _, err := os.Stat(otherFile); err != nil {
		t.Errorf("expected non log file to be kept, got %v", err)
	}
}

func TestAsyncHandlerWritesFile(t *testing.T) {
	dir := t.TempDir()
	handler := NewAsyncHandler(dir, slog.LevelInfo)
	log := slog.New(handler).With("conn", "abc")

	log.Debug("hidden")
	log.Info("world started", "realm", 1)
	if err := handler.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "world started") || !strings.Contains(content, "realm=1") || !strings.Contains(content, "conn=abc") {
		t.Errorf("unexpected log content: %q", content)
	}
	if strings.Contains(content, "hidden") {
		t.Errorf("debug record should be filtered: %q", content)
	}
}

func TestShutdownCallbackIdempotent(t *testing.T) {
	handler := NewAsyncHandler(t.TempDir(), slog.LevelInfo)
	callback := &ShutdownCallback{handler: handler}
	if err := callback.Invoke(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := callback.Invoke(context.Background()); err != nil {
		t.Fatal(err)
	}
}
