package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathFor(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"/var/lib/flowmentor/exchanges.db", "/var/lib/flowmentor/exchanges.db.lock"},
		{"file:/tmp/x.db?_busy_timeout=5000", "/tmp/x.db.lock"},
		{"data/x.db", "data/x.db.lock"},
	}
	for _, tt := range tests {
		if got := PathFor(tt.dsn); got != tt.want {
			t.Errorf("PathFor(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestAcquire_WritesPID(t *testing.T) {
	db := filepath.Join(t.TempDir(), "nested", "exchanges.db")
	lock, err := Acquire(db)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer lock.Release()

	content, err := os.ReadFile(lock.Path())
	if err != nil {
		t.Fatalf("failed to read lock file: %v", err)
	}
	if want := fmt.Sprintf("pid=%d\n", os.Getpid()); string(content) != want {
		t.Errorf("lock content = %q, want %q", content, want)
	}
}

func TestAcquire_Conflict(t *testing.T) {
	db := filepath.Join(t.TempDir(), "exchanges.db")
	first, err := Acquire(db)
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer first.Release()

	second, err := Acquire(db)
	if err == nil {
		second.Release()
		t.Fatal("expected second Acquire to fail")
	}
	if !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	var held *HeldError
	if !errors.As(err, &held) {
		t.Fatalf("expected *HeldError, got %T", err)
	}
	if !strings.Contains(held.Holder, fmt.Sprintf("pid %d", os.Getpid())) {
		t.Errorf("expected holder to name our pid, got %q", held.Holder)
	}
	if !strings.Contains(err.Error(), PathFor(db)) {
		t.Errorf("error should name the lock path: %v", err)
	}
}

func TestRelease_AllowsReacquire(t *testing.T) {
	db := filepath.Join(t.TempDir(), "exchanges.db")
	lock, err := Acquire(db)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	if _, err := os.Stat(PathFor(db)); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed after release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op: %v", err)
	}

	again, err := Acquire(db)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	again.Release()
}

func TestParsePID(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"pid=12345\n", 12345},
		{"pid=67890\nother=info", 67890},
		{"other=info", 0},
		{"", 0},
		{"pid=abc", 0},
		{"pid12345", 0},
	}
	for _, tt := range tests {
		if got := parsePID(tt.content); got != tt.want {
			t.Errorf("parsePID(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("our own process should be alive")
	}
}
