package config_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	tytx "github.com/genropy/genro-tytx-sub000"
	"github.com/genropy/genro-tytx-sub000/config"
)

const holderV1 = `
structs:
  A: [L]
  B: "x:T"
validations:
  v1: "len:1"
`

const holderV2 = `
logging:
  level: warn
structs:
  B: "x:L"
validations:
  v2: "len:2"
`

func TestHolder_ReloadAndBind(t *testing.T) {
	path := writeFile(t, "tytx.yaml", holderV1)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	reg := tytx.NewRegistry()
	if err := h.Bind(reg); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if _, ok := reg.Struct("A"); !ok {
		t.Fatalf("initial pack not installed")
	}

	var mu sync.Mutex
	var seen [2]*config.Config
	h.OnChange(func(old, next *config.Config) {
		mu.Lock()
		seen = [2]*config.Config{old, next}
		mu.Unlock()
	})

	if err := os.WriteFile(path, []byte(holderV2), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := h.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if h.Get().Logging.Level != "warn" {
		t.Fatalf("level = %s", h.Get().Logging.Level)
	}
	mu.Lock()
	if seen[0] == nil || seen[1] != h.Get() {
		t.Fatalf("OnChange not called with old and new config")
	}
	mu.Unlock()

	if _, ok := reg.Struct("A"); ok {
		t.Fatalf("A survived the reload")
	}
	v, _ := reg.Decode(`{"x":"7"}::@B`)
	if v.(map[string]any)["x"] != int64(7) {
		t.Fatalf("B not replaced: %#v", v)
	}
	if _, ok := reg.Validation("v1"); ok {
		t.Fatalf("v1 survived the reload")
	}
	if _, ok := reg.Validation("v2"); !ok {
		t.Fatalf("v2 not installed")
	}
}

func TestHolder_ReloadInvalidKeepsOld(t *testing.T) {
	path := writeFile(t, "tytx.yaml", holderV1)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	var errs int
	h.OnError(func(error) { errs++ })

	if err := os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := h.Reload(); err == nil {
		t.Fatalf("Reload should fail")
	}
	if errs != 1 {
		t.Fatalf("OnError called %d times", errs)
	}
	if _, ok := h.Get().Structs["A"]; !ok {
		t.Fatalf("old config not kept")
	}
}

func TestHolder_WatchFile(t *testing.T) {
	path := writeFile(t, "tytx.yaml", holderV1)
	h, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHolder: %v", err)
	}
	defer h.Stop()

	changed := make(chan struct{}, 8)
	h.OnChange(func(_, _ *config.Config) { changed <- struct{}{} })
	if err := h.WatchFile(); err != nil {
		t.Fatalf("WatchFile: %v", err)
	}
	if err := os.WriteFile(path, []byte(holderV2), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatalf("file watcher did not trigger reload")
	}
	// a write may arrive as several events; wait until the content is visible
	deadline := time.Now().Add(5 * time.Second)
	for h.Get().Logging.Level != "warn" {
		if time.Now().After(deadline) {
			t.Fatalf("config not updated after watch event")
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.Stop()
	h.Stop()
}
