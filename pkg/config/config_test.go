package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

func (c *testConfig) Validate() error {
	if c.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SOWILO_TEST_NAME", "vault")
	p := writeFile(t, "name: ${SOWILO_TEST_NAME}\nlimit: 3\n")

	cfg := testConfig{Limit: 1}
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "vault" || cfg.Limit != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_KeepsDefaultsForMissingKeys(t *testing.T) {
	p := writeFile(t, "name: x\n")
	cfg := testConfig{Limit: 7}
	if err := Load(p, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Limit != 7 {
		t.Errorf("limit = %d, want default 7", cfg.Limit)
	}
}

func TestLoad_ValidationError(t *testing.T) {
	p := writeFile(t, "limit: -1\n")
	var cfg testConfig
	err := Load(p, &cfg)
	if err == nil || !strings.Contains(err.Error(), "config validation failed") {
		t.Errorf("err = %v", err)
	}
}

func TestLoadIfExists(t *testing.T) {
	cfg := testConfig{Name: "default"}
	found, err := LoadIfExists(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	if err != nil || found {
		t.Fatalf("found = %v, err = %v", found, err)
	}
	if cfg.Name != "default" {
		t.Errorf("defaults overwritten: %+v", cfg)
	}

	p := writeFile(t, "name: file\n")
	found, err = LoadIfExists(p, &cfg)
	if err != nil || !found || cfg.Name != "file" {
		t.Errorf("found = %v, err = %v, cfg = %+v", found, err, cfg)
	}
}

func TestLoadWithDefaults_MissingWithoutFallback(t *testing.T) {
	var cfg testConfig
	err := LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), "", &cfg)
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("err = %v", err)
	}
}
