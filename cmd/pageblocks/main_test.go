package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute runs the root command with args and returns captured stdout and
// any error. Log output goes to a discarded buffer.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	if stdin != nil {
		rootCmd.SetIn(stdin)
	}
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestRunValidate_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
port: 8080
origin: https://main--blog--acme.hlx.page
public_url: https://blog.acme.com
production_domains: [blog.acme.com]
timeout: 5s
`)

	output, err := execute(t, nil, "validate", "-c", configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"Port:       8080",
		"Origin:     https://main--blog--acme.hlx.page",
		"Public URL: https://blog.acme.com",
		"Timeout:    5s",
		"Production: 1 domains",
	}
	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
}

func TestRunValidate_ExampleConfig(t *testing.T) {
	// restored after the test; unset so the default applies
	t.Setenv("PAGEBLOCKS_ORIGIN", "")
	os.Unsetenv("PAGEBLOCKS_ORIGIN")

	output, err := execute(t, nil, "validate", "-c", filepath.Join("..", "..", "example", "config.yaml"))
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}
	if !strings.Contains(output, "http://localhost:9999") {
		t.Errorf("output missing default origin:\n%s", output)
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, "port: 8080\n")

	_, err := execute(t, nil, "validate", "-c", configPath)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "origin is required") {
		t.Errorf("error should mention 'origin is required', got: %v", err)
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := execute(t, nil, "validate", "-c", "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read") {
		t.Errorf("error should mention 'failed to read', got: %v", err)
	}
}

func TestRunRender(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/en/hello":
			_, _ = io.WriteString(w, `<html><head><title>Hello</title></head><body><header></header><main><div>
<div class="columns"><div><div>One</div><div>Two</div></div></div>
</div></main><footer></footer></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer origin.Close()

	configPath := writeConfig(t, "origin: "+origin.URL+"\n")

	output, err := execute(t, nil, "render", "-c", configPath, "--wait-delayed=true", "/en/hello?delay=0")
	if err != nil {
		t.Fatalf("render command error = %v", err)
	}

	for _, s := range []string{
		`class="columns block"`,
		`data-block-status="loaded"`,
		`href="/styles/lazy-styles.css"`,
		`<script src="/scripts/delayed.js" type="module">`,
	} {
		if !strings.Contains(output, s) {
			t.Errorf("output missing %s\nGot: %s", s, output)
		}
	}
}

func TestRunRender_NotFound(t *testing.T) {
	origin := httptest.NewServer(http.NotFoundHandler())
	defer origin.Close()

	configPath := writeConfig(t, "origin: "+origin.URL+"\n")

	_, err := execute(t, nil, "render", "-c", configPath, "--wait-delayed=false", "/en/missing")
	if err == nil {
		t.Fatal("render command expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to fetch page /en/missing") {
		t.Errorf("error = %v", err)
	}
}

const legacyPage = `<html><body><header>Nav</header>
<h1 class="content-header__title">Outlook</h1>
<div class="apos-rich-text"><p>Intro text.</p></div>
<footer>Footer</footer></body></html>`

func TestRunImport_Stdout(t *testing.T) {
	output, err := execute(t, strings.NewReader(legacyPage),
		"import", "-", "--url", "https://www.acme.com/en/outlook.html", "--out=")
	if err != nil {
		t.Fatalf("import command error = %v", err)
	}

	if !strings.Contains(output, "# Outlook") || !strings.Contains(output, "Intro text.") {
		t.Errorf("markdown = %s", output)
	}
	if strings.Contains(output, "Nav") || strings.Contains(output, "Footer") {
		t.Errorf("markdown should not contain chrome: %s", output)
	}
}

func TestRunImport_OutputDirectory(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "saved.html")
	if err := os.WriteFile(page, []byte(legacyPage), 0644); err != nil {
		t.Fatalf("failed to write page: %v", err)
	}
	outDir := filepath.Join(dir, "content")

	if _, err := execute(t, nil, "import", page, "--url", "https://www.acme.com/en/insights/outlook.html", "-o", outDir); err != nil {
		t.Fatalf("import command error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "en", "insights", "outlook.md"))
	if err != nil {
		t.Fatalf("output file error = %v", err)
	}
	if !strings.Contains(string(data), "Metadata") {
		t.Errorf("output file = %s", data)
	}
}

func TestVersion(t *testing.T) {
	output, err := execute(t, nil, "version")
	if err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(output, "pageblocks dev") {
		t.Errorf("output = %q", output)
	}
}
