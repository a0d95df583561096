package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/ini.v1"
)

// configSection is the header all Misfit credentials live under.
const configSection = "misfit"

// ErrCredentialsNotFound means the config file is missing, has no [misfit]
// section, or the section is incomplete. A partial triple is never usable,
// so all of those cases collapse into this one error.
var ErrCredentialsNotFound = errors.New("missing config information")

// Credentials is the triple the Misfit API needs. ClientID and ClientSecret
// identify the registered app; AccessToken authenticates resource calls.
type Credentials struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
}

// loadCredentials reads the [misfit] section from the config file at path.
// Any missing or empty key yields ErrCredentialsNotFound.
func loadCredentials(path string) (Credentials, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return Credentials{}, ErrCredentialsNotFound
	}

	sec, err := cfg.GetSection(configSection)
	if err != nil {
		return Credentials{}, ErrCredentialsNotFound
	}

	creds := Credentials{
		ClientID:     sec.Key("client_id").String(),
		ClientSecret: sec.Key("client_secret").String(),
		AccessToken:  sec.Key("access_token").String(),
	}
	if creds.ClientID == "" || creds.ClientSecret == "" || creds.AccessToken == "" {
		return Credentials{}, ErrCredentialsNotFound
	}
	return creds, nil
}

// saveCredentials upserts the [misfit] section in the config file at path,
// preserving any other sections. The write is all-or-nothing: the new
// contents go to a temp file first and are renamed over the original, so a
// failure never corrupts a previously valid config.
func saveCredentials(path string, creds Credentials) error {
	lock, err := acquireFileLock(path)
	if err != nil {
		return fmt.Errorf("failed to acquire config lock: %w", err)
	}
	defer lock.release()

	cfg, err := ini.Load(path)
	if err != nil {
		cfg = ini.Empty()
	}

	sec := cfg.Section(configSection)
	sec.Key("client_id").SetValue(creds.ClientID)
	sec.Key("client_secret").SetValue(creds.ClientSecret)
	sec.Key("access_token").SetValue(creds.AccessToken)

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf(
				"failed to rename temp config: %v; also failed to remove temp file: %w",
				err,
				removeErr,
			)
		}
		return fmt.Errorf("failed to rename temp config: %w", err)
	}

	fmt.Printf("Credentials written to %s\n", path)
	return nil
}
