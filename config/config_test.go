package config

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
origin: https://main--blog--acme.hlx.page
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Timeout.Duration() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout.Duration())
	}
	if cfg.Origin != "https://main--blog--acme.hlx.page" {
		t.Errorf("Origin = %q", cfg.Origin)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Acme Blog
port: 9090
origin: https://main--blog--acme.hlx.page
public_url: https://blog.acme.com
production_domains: [blog.acme.com, www.acme.com]
timeout: 5s
code_base: /code
libs:
  base: https://libs.acme.com/libs
  list: /blocks/index.json
rum:
  collector: https://rum.acme.com
  generation: blog-gen-8
  weight: 100
delayed:
  script: /scripts/late.js
  delay: 2s
lcp_blocks: [hero]
split_blocks: [video, carousel]
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := &Config{
		Title:             "Acme Blog",
		Port:              9090,
		Origin:            "https://main--blog--acme.hlx.page",
		PublicURL:         "https://blog.acme.com",
		ProductionDomains: []string{"blog.acme.com", "www.acme.com"},
		Timeout:           Duration(5 * time.Second),
		CodeBase:          "/code",
		Libs:              LibsConfig{Base: "https://libs.acme.com/libs", List: "/blocks/index.json"},
		RUM:               RUMConfig{Collector: "https://rum.acme.com", Generation: "blog-gen-8", Weight: 100},
		Delayed:           DelayedConfig{Script: "/scripts/late.js", Delay: Duration(2 * time.Second)},
		LCPBlocks:         []string{"hero"},
		SplitBlocks:       []string{"video", "carousel"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("CONTENT_ORIGIN", "https://origin.example.com")
	t.Setenv("LIBS_HOST", "libs.example.com")

	yaml := `
origin: ${CONTENT_ORIGIN}
libs:
  base: https://${LIBS_HOST}/libs
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Origin != "https://origin.example.com" {
		t.Errorf("Origin = %q", cfg.Origin)
	}
	if cfg.Libs.Base != "https://libs.example.com/libs" {
		t.Errorf("Libs.Base = %q", cfg.Libs.Base)
	}
}

func TestParse_EnvVarDefault(t *testing.T) {
	yaml := `
origin: https://origin.example.com
rum:
  collector: ${UNSET_RUM_COLLECTOR:-https://rum.example.com}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.RUM.Collector != "https://rum.example.com" {
		t.Errorf("RUM.Collector = %q", cfg.RUM.Collector)
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	yaml := `
origin: ${MISSING_CONTENT_ORIGIN}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "MISSING_CONTENT_ORIGIN") {
		t.Errorf("error = %v, want mention of MISSING_CONTENT_ORIGIN", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing origin",
			yaml:    `port: 8080`,
			wantErr: "origin is required",
		},
		{
			name:    "origin without scheme",
			yaml:    `origin: example.com`,
			wantErr: "must have a scheme",
		},
		{
			name:    "origin with ftp scheme",
			yaml:    `origin: ftp://example.com`,
			wantErr: "must be http or https",
		},
		{
			name: "public url without host",
			yaml: `
origin: https://example.com
public_url: https://`,
			wantErr: "public_url: url must have a host",
		},
		{
			name: "invalid collector",
			yaml: `
origin: https://example.com
rum:
  collector: rum.example.com`,
			wantErr: "rum.collector",
		},
		{
			name: "port out of range",
			yaml: `
origin: https://example.com
port: 70000`,
			wantErr: "port must be between 1 and 65535",
		},
		{
			name: "negative weight",
			yaml: `
origin: https://example.com
rum:
  weight: -1`,
			wantErr: "rum.weight cannot be negative",
		},
		{
			name: "negative delay",
			yaml: `
origin: https://example.com
delayed:
  delay: -1s`,
			wantErr: "delayed.delay cannot be negative",
		},
		{
			name: "empty production domain",
			yaml: `
origin: https://example.com
production_domains: [""]`,
			wantErr: "production_domains[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_WarmDefaults(t *testing.T) {
	cfg, err := Parse([]byte("origin: https://example.com\nwarm:\n  pages: [/en, /en/news]\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := WarmConfig{
		Pages:       []string{"/en", "/en/news"},
		Interval:    Duration(5 * time.Minute),
		Concurrency: 1,
	}
	if diff := cmp.Diff(want, cfg.Warm); diff != "" {
		t.Errorf("warm mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_WarmValidation(t *testing.T) {
	tests := []struct {
		name    string
		warm    string
		wantErr string
	}{
		{"short interval", "  interval: 100ms\n  pages: [/en]\n", "warm.interval must be at least 1s"},
		{"negative concurrency", "  concurrency: -1\n  pages: [/en]\n", "warm.concurrency cannot be negative"},
		{"empty path", "  pages: [\"\"]\n", "warm.pages[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte("origin: https://example.com\nwarm:\n" + tt.warm))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParse_TimeoutValidation(t *testing.T) {
	tests := []struct {
		name    string
		timeout string
		wantErr bool
	}{
		{"one second", "1s", false},
		{"thirty seconds", "30s", false},
		{"sub-second", "500ms", true},
		{"negative", "-5s", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "origin: https://example.com\ntimeout: " + tt.timeout + "\n"
			_, err := Parse([]byte(yaml))
			if tt.wantErr && err == nil {
				t.Error("Parse() expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Parse() error = %v", err)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("origin: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %v, want YAML parse error", err)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte("origin: https://example.com\ntimeout: soon\n"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %v, want invalid duration", err)
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"10s", 10 * time.Second},
		{"1m", time.Minute},
		{"500ms", 500 * time.Millisecond},
		{"1h30m", 90 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			if err := yaml.Unmarshal([]byte(tt.input), &d); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if d.Duration() != tt.want {
				t.Errorf("Duration() = %v, want %v", d.Duration(), tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParse_Title(t *testing.T) {
	cfg, err := Parse([]byte("title: Acme Blog\norigin: https://example.com\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Title != "Acme Blog" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Acme Blog")
	}
}
