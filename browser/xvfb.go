// CLAUDE:SUMMARY Starts and stops an Xvfb virtual display for headful audits.
package browser

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// xvfbReadyTimeout bounds the wait for the display socket to appear.
const xvfbReadyTimeout = 3 * time.Second

// startXvfb launches an Xvfb virtual display and waits for its socket.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}

	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1280x1024x24", "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	if err := waitDisplay(display, xvfbReadyTimeout); err != nil {
		m.stopXvfb()
		return err
	}

	m.cfg.Logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return nil
}

// waitDisplay polls for the X11 socket of display (":99" → /tmp/.X11-unix/X99).
func waitDisplay(display string, timeout time.Duration) error {
	sock := displaySocket(display)
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(sock); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("xvfb: display %s not ready after %s", display, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func displaySocket(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return "/tmp/.X11-unix/X" + n
}

// stopXvfb kills the Xvfb process if running.
func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if m.xvfb.Process != nil {
		m.xvfb.Process.Kill()
		m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped")
	m.xvfb = nil
}
