package window

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Opener hands a URL to something outside the window
type Opener func(url string) error

// SystemOpener opens url in the user's default browser. Only http and https
// URLs are accepted.
func SystemOpener(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("refusing to open %q scheme", u.Scheme)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u.String())
	case "darwin":
		cmd = exec.Command("open", u.String())
	default:
		cmd = exec.Command("xdg-open", u.String())
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start opener: %w", err)
	}
	// reap without blocking the caller
	go func() { _ = cmd.Wait() }()
	return nil
}
