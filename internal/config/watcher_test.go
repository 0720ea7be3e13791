package config

import (
	"os"
	"sync"
	"testing"
	"time"

	"smartfan/internal/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

func TestFileWatcher_StartStop(t *testing.T) {
	path := writeConfig(t, hr650xYAML)
	fw, err := NewFileWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewFileWatcher: %v", err)
	}

	if err := fw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := fw.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("expected running")
	}
	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if fw.IsRunning() {
		t.Error("expected stopped")
	}
}

func TestReloadWatcher_AppliesLoggingChange(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	path := writeConfig(t, hr650xYAML)
	current, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	var mu sync.Mutex
	var got []logger.Config
	fw, err := NewReloadWatcher(path, current, func(lc logger.Config) {
		mu.Lock()
		got = append(got, lc)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("NewReloadWatcher: %v", err)
	}
	if err := fw.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer fw.Stop()

	updated := hr650xYAML + "logging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) == 0 {
		t.Fatal("logging callback not called")
	}
	if got[len(got)-1].Level != "debug" {
		t.Errorf("expected level debug, got %q", got[len(got)-1].Level)
	}
}

func TestReloadWatcher_IgnoresInvalidFile(t *testing.T) {
	path := writeConfig(t, hr650xYAML)
	current, _ := Parse([]byte(hr650xYAML))

	called := make(chan struct{}, 1)
	fw, err := NewReloadWatcher(path, current, func(logger.Config) {
		called <- struct{}{}
	})
	if err != nil {
		t.Fatalf("NewReloadWatcher: %v", err)
	}

	if err := os.WriteFile(path, []byte("logging: [\n"), 0644); err != nil {
		t.Fatal(err)
	}
	fw.onChange()

	select {
	case <-called:
		t.Fatal("callback must not run for an unparsable file")
	default:
	}
	_ = fw.Stop()
}
