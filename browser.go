package main

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommand returns the platform launcher for opening a URL in the
// user's default browser.
func browserCommand(url string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url)
	case "windows":
		return exec.Command("cmd", "/c", "start", url)
	default:
		// Linux and other Unix-like systems.
		return exec.Command("xdg-open", url)
	}
}

// openBrowser launches the default browser pointed at url. Launch failure is
// reported to the caller, who must still print the URL so the user can
// navigate manually.
func openBrowser(url string) error {
	cmd := browserCommand(url)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	// Detached: the flow never waits for the browser process.
	go func() { _ = cmd.Wait() }()

	return nil
}
