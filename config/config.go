// Package config provides YAML configuration parsing for pageblocks.
//
// This package enables running the renderer as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Acme Blog
//	port: 8080
//	origin: https://main--blog--acme.hlx.page
//	public_url: https://blog.acme.com
//	production_domains: [blog.acme.com]
//	timeout: 10s
//
//	libs:
//	  base: https://libs.acme.com/libs
//	  list: /blocks/list.json
//
//	rum:
//	  collector: ${RUM_COLLECTOR:-https://rum.hlx.page}
//	  weight: 10
//
//	delayed:
//	  script: /scripts/delayed.js
//	  delay: 3500ms
//
//	warm:
//	  interval: 5m
//	  pages: [/en, /en/publications]
package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// minTimeout is the minimum fetch timeout. Shorter timeouts fail on any
// realistic origin.
const minTimeout = 1 * time.Second

// Config is the root configuration structure for pageblocks.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "pageblocks" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// Origin is the content origin pages are fetched from. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Origin string `yaml:"origin"`

	// PublicURL is the site address pages are rendered for. Defaults to
	// the origin.
	PublicURL string `yaml:"public_url"`

	// ProductionDomains are hosts treated as production: their links are
	// made relative and the configured libs base is always used.
	ProductionDomains []string `yaml:"production_domains"`

	// Timeout bounds each origin request. Defaults to 10s.
	Timeout Duration `yaml:"timeout"`

	// CodeBase prefixes block stylesheet paths.
	CodeBase string `yaml:"code_base"`

	// Libs configures the shared block library.
	Libs LibsConfig `yaml:"libs"`

	// RUM configures checkpoint sampling.
	RUM RUMConfig `yaml:"rum"`

	// Delayed configures the delayed phase.
	Delayed DelayedConfig `yaml:"delayed"`

	// LCPBlocks are loaded eagerly when first on a page.
	LCPBlocks []string `yaml:"lcp_blocks"`

	// SplitBlocks are moved into their own section.
	SplitBlocks []string `yaml:"split_blocks"`

	// Warm lists pages re-rendered in the background while serving.
	Warm WarmConfig `yaml:"warm"`
}

// LibsConfig locates the shared block library.
type LibsConfig struct {
	// Base is the library root URL.
	Base string `yaml:"base"`

	// List is the block list path relative to Base. Defaults to
	// /blocks/list.json.
	List string `yaml:"list"`
}

// RUMConfig configures real user monitoring.
type RUMConfig struct {
	Collector  string `yaml:"collector"`
	Generation string `yaml:"generation"`
	Weight     int    `yaml:"weight"`
}

// DelayedConfig configures the delayed script.
type DelayedConfig struct {
	Script string   `yaml:"script"`
	Delay  Duration `yaml:"delay"`
}

// WarmConfig configures background page warming.
type WarmConfig struct {
	// Pages are the paths to render.
	Pages []string `yaml:"pages"`

	// Interval is the time between warming rounds. Defaults to 5m when
	// pages are set. Must be at least 1s.
	Interval Duration `yaml:"interval"`

	// Concurrency bounds renders in flight. Defaults to 1.
	Concurrency int `yaml:"concurrency"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in every URL field. Defaults are
// applied for Port (8080) and Timeout (10s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = Duration(10 * time.Second)
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Timeout.Duration() < minTimeout {
		return fmt.Errorf("timeout must be at least %s, got %s", minTimeout, c.Timeout.Duration())
	}

	if c.Origin == "" {
		return fmt.Errorf("origin is required")
	}

	urls := []struct {
		field    string
		value    *string
		optional bool
	}{
		{"origin", &c.Origin, false},
		{"public_url", &c.PublicURL, true},
		{"code_base", &c.CodeBase, true},
		{"libs.base", &c.Libs.Base, true},
		{"rum.collector", &c.RUM.Collector, true},
	}
	for _, u := range urls {
		expanded, err := expandEnvVars(*u.value)
		if err != nil {
			return fmt.Errorf("%s: %w", u.field, err)
		}
		*u.value = expanded
		if expanded == "" && u.optional {
			continue
		}
		// code_base may be a path on the serving host
		if u.field == "code_base" {
			continue
		}
		if err := validateURL(u.field, expanded); err != nil {
			return err
		}
	}

	for i, d := range c.ProductionDomains {
		if d == "" {
			return fmt.Errorf("production_domains[%d]: domain cannot be empty", i)
		}
	}

	if c.RUM.Weight < 0 {
		return fmt.Errorf("rum.weight cannot be negative, got %d", c.RUM.Weight)
	}
	if c.Delayed.Delay.Duration() < 0 {
		return fmt.Errorf("delayed.delay cannot be negative, got %s", c.Delayed.Delay.Duration())
	}

	if len(c.Warm.Pages) > 0 {
		if c.Warm.Interval == 0 {
			c.Warm.Interval = Duration(5 * time.Minute)
		}
		if c.Warm.Concurrency == 0 {
			c.Warm.Concurrency = 1
		}
	}
	if c.Warm.Interval != 0 && c.Warm.Interval.Duration() < time.Second {
		return fmt.Errorf("warm.interval must be at least 1s, got %s", c.Warm.Interval.Duration())
	}
	if c.Warm.Concurrency < 0 {
		return fmt.Errorf("warm.concurrency cannot be negative, got %d", c.Warm.Concurrency)
	}
	for i, p := range c.Warm.Pages {
		if p == "" {
			return fmt.Errorf("warm.pages[%d]: path cannot be empty", i)
		}
	}

	return nil
}

// validateURL checks that raw is an absolute http(s) URL.
func validateURL(field, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", field, err)
	}
	if parsed.Scheme == "" {
		return fmt.Errorf("%s: url must have a scheme (http:// or https://)", field)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: url scheme must be http or https, got %q", field, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s: url must have a host", field)
	}
	return nil
}
