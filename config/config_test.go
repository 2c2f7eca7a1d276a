package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("VENICE_API_KEY", "from-venice-env")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.APIKey != "from-venice-env" {
		t.Fatalf("expected VENICE_API_KEY fallback, got %q", cfg.LLM.APIKey)
	}
	if cfg.Images.APIKey != "from-venice-env" {
		t.Fatalf("expected image key to inherit llm key, got %q", cfg.Images.APIKey)
	}
	if cfg.LLM.Timeout != 120*time.Second {
		t.Fatalf("expected 120s timeout, got %v", cfg.LLM.Timeout)
	}
	if cfg.LLM.Models["reasoning"] != "qwen3-235b-a22b-thinking-2507" {
		t.Fatalf("unexpected reasoning model %q", cfg.LLM.Models["reasoning"])
	}
	ch := cfg.Agents["challenge"]
	if ch.Model != "reasoning" || ch.Temperature != 0.4 || ch.InputBudget != 10000 {
		t.Fatalf("unexpected challenge defaults: %+v", ch)
	}
	if cfg.Server.Address != ":10001" || cfg.Server.StatusStore != "memory" {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Scraper.MaxContentLength != 100000 {
		t.Fatalf("unexpected max content length %d", cfg.Scraper.MaxContentLength)
	}
}

func TestLoadConfig_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"llm": {"api_key": "file-key", "models": {"fast": "custom-fast"}},
		"agents": {"writer_extra": {"model": "fast"}},
		"scraper": {"fetcher": "chromedp"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BRIEFLAB_SERVER_MAX_CONCURRENT_RUNS", "9")
	t.Setenv("BRIEFLAB_AGENTS_SYNTHESIS_TEMPERATURE", "0.1")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Fatalf("expected file key, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.Models["fast"] != "custom-fast" {
		t.Fatalf("expected fast override, got %q", cfg.LLM.Models["fast"])
	}
	if cfg.Scraper.Fetcher != "chromedp" {
		t.Fatalf("expected chromedp fetcher, got %q", cfg.Scraper.Fetcher)
	}
	if cfg.Server.MaxConcurrentRuns != 9 {
		t.Fatalf("expected env override 9, got %d", cfg.Server.MaxConcurrentRuns)
	}
	if got := cfg.Agents["synthesis"].Temperature; got != 0.1 {
		t.Fatalf("expected synthesis temperature 0.1, got %v", got)
	}
	if cfg.Agents["plan"].Model != "reasoning" {
		t.Fatalf("expected plan defaults to survive, got %+v", cfg.Agents["plan"])
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"storage": {"archive": "postgres"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected postgres validation error")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "u", Password: "p", DBName: "briefs"}
	want := "postgres://u:p@db:5432/briefs?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
