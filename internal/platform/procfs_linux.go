//go:build linux
// +build linux

package platform

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// initProcessID is the pid of init; windows claiming it are not user applications
const initProcessID = 1

func procPath(pid int, name string) string {
	return "/proc/" + strconv.Itoa(pid) + "/" + name
}

// readProcessPath resolves the executable of pid, empty when not permitted
func readProcessPath(pid int) string {
	path, err := os.Readlink(procPath(pid, "exe"))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(path, " (deleted)")
}

func readProcessName(pid int) string {
	data, err := os.ReadFile(procPath(pid, "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// readCommandLine joins the NUL separated argv of pid with spaces
func readCommandLine(pid int) (string, error) {
	data, err := os.ReadFile(procPath(pid, "cmdline"))
	if err != nil {
		return "", fmt.Errorf("failed to read command line: %w", err)
	}

	args := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	cmdline := strings.Join(args, " ")
	if cmdline == "" {
		// Kernel threads and zombies have an empty cmdline
		return "", fmt.Errorf("command line not available for process %d", pid)
	}
	return cmdline, nil
}
