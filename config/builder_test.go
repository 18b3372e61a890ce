package config

import (
	"testing"
	"time"

	"github.com/jpalmerr/pageblocks"
)

func TestBuildOptions_Minimal(t *testing.T) {
	cfg, err := Parse([]byte("origin: https://main--blog--acme.hlx.page\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts := BuildOptions(cfg)
	if len(opts) != 3 {
		t.Errorf("len(opts) = %d, want 3 (origin, port, timeout)", len(opts))
	}

	r, err := pageblocks.New(opts...)
	if err != nil {
		t.Fatalf("pageblocks.New() error = %v", err)
	}
	defer r.Close()

	if r.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", r.Port())
	}
	if got := r.Origin().String(); got != "https://main--blog--acme.hlx.page" {
		t.Errorf("Origin() = %q", got)
	}
}

func TestBuildOptions_AllFields(t *testing.T) {
	cfg := &Config{
		Title:             "Acme Blog",
		Port:              9090,
		Origin:            "https://main--blog--acme.hlx.page",
		PublicURL:         "https://blog.acme.com",
		ProductionDomains: []string{"blog.acme.com"},
		Timeout:           Duration(5 * time.Second),
		CodeBase:          "/code",
		Libs:              LibsConfig{Base: "https://libs.acme.com/libs"},
		RUM:               RUMConfig{Weight: 100},
		Delayed:           DelayedConfig{Delay: Duration(time.Second)},
		LCPBlocks:         []string{"hero"},
		SplitBlocks:       []string{"video"},
		Warm:              WarmConfig{Pages: []string{"/en"}, Interval: Duration(time.Minute), Concurrency: 2},
	}

	opts := BuildOptions(cfg)
	if len(opts) != 13 {
		t.Errorf("len(opts) = %d, want 13", len(opts))
	}

	r, err := pageblocks.New(opts...)
	if err != nil {
		t.Fatalf("pageblocks.New() error = %v", err)
	}
	defer r.Close()

	if r.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", r.Port())
	}
}

func TestBuildOptions_InvalidValuesSurfaceInNew(t *testing.T) {
	// a config built by hand skips Parse validation
	cfg := &Config{Origin: "https://example.com", Port: 0, Timeout: Duration(time.Second)}

	if _, err := pageblocks.New(BuildOptions(cfg)...); err == nil {
		t.Error("pageblocks.New() expected error for port 0, got nil")
	}
}
