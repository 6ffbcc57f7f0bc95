//go:build windows
// +build windows

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsImpl struct{}

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetWindowTextW      = user32.NewProc("GetWindowTextW")
	procGetWindowTextLength = user32.NewProc("GetWindowTextLengthW")
	procGetLastInputInfo    = user32.NewProc("GetLastInputInfo")
	procGetTickCount        = kernel32.NewProc("GetTickCount")
)

const (
	// Process ids up to this value belong to the idle and system processes
	systemProcessMaxID = 4
)

// lastInputInfo mirrors LASTINPUTINFO
type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

func newPlatform() (Platform, error) {
	return &windowsImpl{}, nil
}

func (p *windowsImpl) IdleDuration() (time.Duration, error) {
	info := lastInputInfo{}
	info.cbSize = uint32(unsafe.Sizeof(info))

	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, fmt.Errorf("GetLastInputInfo failed: %w", err)
	}

	// Both values are 32-bit tick counts; unsigned subtraction handles wrap-around
	tick, _, _ := procGetTickCount.Call()
	idleMs := uint32(tick) - info.dwTime

	return time.Duration(idleMs) * time.Millisecond, nil
}

func (p *windowsImpl) GetActiveWindow() (*WindowInfo, error) {
	hwnd := windows.GetForegroundWindow()
	if hwnd == 0 {
		return nil, nil
	}

	var processID uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &processID); err != nil {
		return nil, fmt.Errorf("failed to get window process id: %w", err)
	}

	info := &WindowInfo{
		Title:     p.getWindowTitle(hwnd),
		ProcessID: int(processID),
		Protected: processID <= systemProcessMaxID,
		Timestamp: time.Now(),
	}
	if info.Protected {
		return info, nil
	}

	info.ProcessPath = p.getProcessPath(processID)
	info.Application = p.getApplicationName(info.ProcessPath)
	if info.Application == "" {
		// Elevated processes refuse QueryFullProcessImageName; the snapshot still names them
		info.Application = p.getApplicationName(p.getProcessExeName(processID))
	}

	return info, nil
}

func (p *windowsImpl) getWindowTitle(hwnd windows.HWND) string {
	length, _, _ := procGetWindowTextLength.Call(uintptr(hwnd))
	if length == 0 {
		return ""
	}

	length++ // Include null terminator
	buf := make([]uint16, length)
	procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(length))
	return windows.UTF16ToString(buf)
}

func (p *windowsImpl) getProcessPath(processID uint32) string {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, processID)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(handle)

	buf := make([]uint16, windows.MAX_LONG_PATH)
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(handle, 0, &buf[0], &size); err != nil {
		return ""
	}

	return windows.UTF16ToString(buf[:size])
}

func (p *windowsImpl) getProcessExeName(processID uint32) string {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(snapshot)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err = windows.Process32First(snapshot, &entry); err == nil; err = windows.Process32Next(snapshot, &entry) {
		if entry.ProcessID == processID {
			return windows.UTF16ToString(entry.ExeFile[:])
		}
	}
	return ""
}

func (p *windowsImpl) getApplicationName(processPath string) string {
	if processPath == "" {
		return ""
	}

	exeName := filepath.Base(processPath)
	return strings.TrimSuffix(exeName, filepath.Ext(exeName))
}

// GetCommandLine asks WMI through wmic, the same source the process list
// in Task Manager uses. Access denied and exited processes both come back
// as an empty value.
func (p *windowsImpl) GetCommandLine(processID int) (string, error) {
	cmd := exec.Command("wmic", "process", "where", "ProcessId="+strconv.Itoa(processID), "get", "CommandLine", "/value")
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to query command line: %w", err)
	}

	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if value, ok := strings.CutPrefix(line, "CommandLine="); ok && value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("command line not available for process %d", processID)
}

func (p *windowsImpl) GetDeviceID() (string, error) {
	// Try to get machine GUID from Windows
	cmd := exec.Command("wmic", "csproduct", "get", "uuid")
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	output, err := cmd.Output()
	if err == nil {
		lines := strings.Split(string(output), "\n")
		for _, line := range lines {
			line = strings.TrimSpace(line)
			if line != "" && line != "UUID" && len(line) > 10 {
				return line, nil
			}
		}
	}
	return "", fmt.Errorf("could not determine Windows device ID")
}

func (p *windowsImpl) GetSystemInfo() (*SystemInfo, error) {
	hostname, _ := os.Hostname()
	return hostSystemInfo(hostname), nil
}

func (p *windowsImpl) OpenFile(path string) error {
	// The empty string after "start" is the window title argument
	cmd := exec.Command("cmd", "/c", "start", "", path)
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
	return cmd.Start()
}

func (p *windowsImpl) Close() error {
	return nil
}
