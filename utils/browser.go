package utils

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// isWSL reports whether we are on Linux under Windows Subsystem for Linux,
// where the Windows default browser should be used.
func isWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "wsl")
}

// OpenBrowser opens url in the platform's default browser. Callers treat
// failure as non-fatal and fall back to showing the URL.
func OpenBrowser(url string) error {
	switch runtime.GOOS {
	case "linux":
		if isWSL() {
			return exec.Command("cmd.exe", "/c", "start", url).Start()
		}

		for _, opener := range []string{"xdg-open", "sensible-browser", "x-www-browser", "gnome-open", "kde-open"} {
			if _, err := exec.LookPath(opener); err == nil {
				return exec.Command(opener, url).Start()
			}
		}
		return fmt.Errorf("no browser opener found")
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return fmt.Errorf("unsupported platform")
	}
}
