package uia2

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// adbChannel is the low-level input channel: raw `adb shell input` commands
// dispatched when the primary automation action fails.
type adbChannel struct {
	serial  string
	adbPath string
}

// newADBChannel locates adb and resolves the device serial.
func newADBChannel(adbPath, serial string) (*adbChannel, error) {
	if adbPath == "" {
		found, err := findADB()
		if err != nil {
			return nil, err
		}
		adbPath = found
	}

	if serial == "" {
		detected, err := detectDeviceSerial(adbPath)
		if err != nil {
			return nil, fmt.Errorf("no device specified and auto-detect failed: %w", err)
		}
		serial = detected
	}

	return &adbChannel{serial: serial, adbPath: adbPath}, nil
}

// findADB locates the adb binary on PATH or in the default SDK location.
func findADB() (string, error) {
	if path, err := exec.LookPath("adb"); err == nil {
		return path, nil
	}

	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			filepath.Join(homeDir(), "Library/Android/sdk/platform-tools/adb"),
		}
	case "windows":
		candidates = []string{
			filepath.Join(homeDir(), "AppData/Local/Android/Sdk/platform-tools/adb.exe"),
		}
	default:
		candidates = []string{
			filepath.Join(homeDir(), "Android/Sdk/platform-tools/adb"),
		}
	}

	for _, c := range candidates {
		if _, err := exec.LookPath(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("adb not found on PATH or in default SDK locations")
}

func homeDir() string {
	out, err := exec.Command("sh", "-c", "echo $HOME").Output()
	if err != nil {
		return "."
	}
	return strings.TrimSpace(string(out))
}

// detectDeviceSerial finds the first connected device serial.
func detectDeviceSerial(adbPath string) (string, error) {
	cmd := exec.Command(adbPath, "devices")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}

	lines := strings.Split(string(out), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) >= 2 && parts[1] == "device" {
			return parts[0], nil
		}
	}
	return "", fmt.Errorf("no connected devices found")
}

// adb runs an adb command against the device.
func (a *adbChannel) adb(args ...string) (string, error) {
	full := append([]string{"-s", a.serial}, args...)
	cmd := exec.Command(a.adbPath, full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("adb %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return string(out), nil
}

// Shell executes a shell command on the device.
func (a *adbChannel) Shell(args ...string) error {
	_, err := a.adb(append([]string{"shell"}, args...)...)
	return err
}

// Input dispatches an `input` subcommand, e.g.
// Input("touchscreen", "swipe", "540", "1200", "540", "1200", "15000").
func (a *adbChannel) Input(args ...string) error {
	return a.Shell(append([]string{"input"}, args...)...)
}

// ForwardSocket forwards a Unix socket to the device's UIAutomator2 port.
func (a *adbChannel) ForwardSocket(socketPath string, remotePort int) error {
	_, err := a.adb("forward", fmt.Sprintf("localfilesystem:%s", socketPath), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// Forward forwards a local TCP port to the device's UIAutomator2 port.
func (a *adbChannel) Forward(localPort, remotePort int) error {
	_, err := a.adb("forward", fmt.Sprintf("tcp:%d", localPort), fmt.Sprintf("tcp:%d", remotePort))
	return err
}

// RemoveForward removes a port forward.
func (a *adbChannel) RemoveForward(localPort int) error {
	_, err := a.adb("forward", "--remove", fmt.Sprintf("tcp:%d", localPort))
	return err
}

// DefaultSocketPath returns the default Unix socket path for this device.
func (a *adbChannel) DefaultSocketPath() string {
	return fmt.Sprintf("/tmp/uia2-%s.sock", a.serial)
}

// WaitForDevice blocks until the device answers or the timeout elapses.
func (a *adbChannel) WaitForDevice(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := a.adb("shell", "echo", "ok"); err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("device %s not responding after %v", a.serial, timeout)
}
