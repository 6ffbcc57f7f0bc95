//go:build darwin
// +build darwin

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type darwinImpl struct{}

// frontWindowScript prints "pid<TAB>name<TAB>path<TAB>title" for the
// frontmost application
const frontWindowScript = `
tell application "System Events"
	set p to first application process whose frontmost is true
	set t to ""
	try
		set t to name of front window of p
	end try
	return (unix id of p as text) & tab & (name of p) & tab & (POSIX path of (application file of p)) & tab & t
end tell`

var hidIdleTimePattern = regexp.MustCompile(`"HIDIdleTime"\s*=\s*(\d+)`)

func newPlatform() (Platform, error) {
	return &darwinImpl{}, nil
}

func (p *darwinImpl) IdleDuration() (time.Duration, error) {
	output, err := exec.Command("ioreg", "-c", "IOHIDSystem", "-d", "4").Output()
	if err != nil {
		return 0, fmt.Errorf("failed to query IOHIDSystem: %w", err)
	}

	match := hidIdleTimePattern.FindSubmatch(output)
	if match == nil {
		return 0, fmt.Errorf("HIDIdleTime not found")
	}

	ns, err := strconv.ParseInt(string(match[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid HIDIdleTime: %w", err)
	}
	return time.Duration(ns), nil
}

func (p *darwinImpl) GetActiveWindow() (*WindowInfo, error) {
	output, err := exec.Command("osascript", "-e", frontWindowScript).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to query frontmost application: %w", err)
	}

	parts := strings.SplitN(strings.TrimRight(string(output), "\n"), "\t", 4)
	if len(parts) != 4 {
		return nil, nil
	}

	pid, _ := strconv.Atoi(parts[0])
	return &WindowInfo{
		Title:       parts[3],
		Application: parts[1],
		ProcessID:   pid,
		ProcessPath: parts[2],
		Protected:   pid <= 1,
		Timestamp:   time.Now(),
	}, nil
}

func (p *darwinImpl) GetCommandLine(processID int) (string, error) {
	output, err := exec.Command("ps", "-o", "command=", "-p", strconv.Itoa(processID)).Output()
	if err != nil {
		return "", fmt.Errorf("failed to query command line: %w", err)
	}
	cmdline := strings.TrimSpace(string(output))
	if cmdline == "" {
		return "", fmt.Errorf("command line not available for process %d", processID)
	}
	return cmdline, nil
}

func (p *darwinImpl) GetDeviceID() (string, error) {
	// Try system_profiler SPHardwareDataType
	output, err := exec.Command("system_profiler", "SPHardwareDataType").Output()
	if err == nil {
		for _, line := range strings.Split(string(output), "\n") {
			if strings.Contains(line, "Hardware UUID") {
				parts := strings.Split(line, ":")
				if len(parts) > 1 {
					return strings.TrimSpace(parts[1]), nil
				}
			}
		}
	}
	return "", fmt.Errorf("could not determine macOS device ID")
}

func (p *darwinImpl) GetSystemInfo() (*SystemInfo, error) {
	hostname, _ := os.Hostname()
	return hostSystemInfo(hostname), nil
}

func (p *darwinImpl) OpenFile(path string) error {
	return exec.Command("open", path).Start()
}

func (p *darwinImpl) Close() error {
	return nil
}
