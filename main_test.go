package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFile_MissingFileReturnsError(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})

	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	if _, err := loadConfigFile(); err == nil {
		t.Fatalf("expected error for missing config.json")
	}
}

func TestLoadConfigFile_ReadsExistingFile(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})

	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	content := `{"api_port":1234,"log_level":"debug","fixture_dir":"fixtures"}`
	path := filepath.Join(tmp, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config.json: %v", err)
	}

	got, err := loadConfigFile()
	if err != nil {
		t.Fatalf("loadConfigFile returned error: %v", err)
	}
	if got == nil {
		t.Fatalf("expected config, got nil")
	}
	if got.APIPort != 1234 {
		t.Fatalf("api_port mismatch: want 1234, got %d", got.APIPort)
	}
	if got.LogLevel != "debug" {
		t.Fatalf("log_level mismatch: want debug, got %s", got.LogLevel)
	}
	if got.FixtureDir != "fixtures" {
		t.Fatalf("fixture_dir mismatch: want fixtures, got %s", got.FixtureDir)
	}
}

func TestLoadConfigFile_RejectsMalformedJSON(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
	})

	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	if err := os.WriteFile(filepath.Join(tmp, "config.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write config.json: %v", err)
	}

	if _, err := loadConfigFile(); err == nil {
		t.Fatalf("expected error for malformed config.json")
	}
}
