package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCredentials_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "misfit.cfg")

	want := Credentials{
		ClientID:     "id-123",
		ClientSecret: "secret-456",
		AccessToken:  "tok-789",
	}
	if err := saveCredentials(path, want); err != nil {
		t.Fatalf("saveCredentials() error: %v", err)
	}

	got, err := loadCredentials(path)
	if err != nil {
		t.Fatalf("loadCredentials() error: %v", err)
	}
	if got != want {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestLoadCredentials_NotFound(t *testing.T) {
	dir := t.TempDir()

	writeFile := func(t *testing.T, name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	tests := []struct {
		name string
		path string
	}{
		{"nonexistent file", filepath.Join(dir, "does-not-exist.cfg")},
		{"empty file", writeFile(t, "empty.cfg", "")},
		{"no misfit section", writeFile(t, "other.cfg", "[other]\nfoo = bar\n")},
		{"missing access_token", writeFile(t, "partial.cfg",
			"[misfit]\nclient_id = a\nclient_secret = b\n")},
		{"empty client_secret", writeFile(t, "blank.cfg",
			"[misfit]\nclient_id = a\nclient_secret =\naccess_token = c\n")},
		{"not ini at all", writeFile(t, "garbage.cfg", "{\"json\": true}")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadCredentials(tc.path)
			if !errors.Is(err, ErrCredentialsNotFound) {
				t.Errorf("loadCredentials(%q) error = %v, want ErrCredentialsNotFound", tc.path, err)
			}
		})
	}
}

func TestSaveCredentials_UpsertsExistingSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "misfit.cfg")

	seed := "[misfit]\n" +
		"client_id = old-id\n" +
		"client_secret = old-secret\n" +
		"access_token = old-token\n" +
		"\n" +
		"[other]\n" +
		"keep = me\n"
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	want := Credentials{
		ClientID:     "new-id",
		ClientSecret: "new-secret",
		AccessToken:  "new-token",
	}
	if err := saveCredentials(path, want); err != nil {
		t.Fatalf("saveCredentials() on existing section: %v", err)
	}

	got, err := loadCredentials(path)
	if err != nil {
		t.Fatalf("loadCredentials() error: %v", err)
	}
	if got != want {
		t.Errorf("after upsert: got %+v, want %+v", got, want)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(raw)
	if !strings.Contains(content, "[other]") || !strings.Contains(content, "keep") {
		t.Errorf("foreign section was not preserved:\n%s", content)
	}
	if strings.Contains(content, "old-token") {
		t.Errorf("stale value survived the upsert:\n%s", content)
	}
	if strings.Count(content, "[misfit]") != 1 {
		t.Errorf("expected exactly one [misfit] section:\n%s", content)
	}
}

func TestSaveCredentials_LeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "misfit.cfg")

	if err := saveCredentials(path, Credentials{
		ClientID:     "a",
		ClientSecret: "b",
		AccessToken:  "c",
	}); err != nil {
		t.Fatalf("saveCredentials() error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "misfit.cfg" {
			t.Errorf("unexpected leftover file: %s", e.Name())
		}
	}
}
