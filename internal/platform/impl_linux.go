//go:build linux
// +build linux

package platform

import (
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/screensaver"
	"github.com/jezek/xgb/xproto"
)

// linuxImpl talks to the X server. The connection is opened lazily and
// dropped on error so a restarted display server is picked up again.
type linuxImpl struct {
	mu       sync.Mutex
	conn     *xgb.Conn
	root     xproto.Window
	atoms    map[string]xproto.Atom
	hasSaver bool
}

var x11AtomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

func newPlatform() (Platform, error) {
	return &linuxImpl{}, nil
}

func (p *linuxImpl) connect() (*xgb.Conn, error) {
	if p.conn != nil {
		return p.conn, nil
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	atoms := make(map[string]xproto.Atom, len(x11AtomNames))
	for _, name := range x11AtomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to intern atom %s: %w", name, err)
		}
		atoms[name] = reply.Atom
	}

	p.conn = conn
	p.root = xproto.Setup(conn).DefaultScreen(conn).Root
	p.atoms = atoms
	p.hasSaver = screensaver.Init(conn) == nil
	return conn, nil
}

func (p *linuxImpl) reset() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *linuxImpl) IdleDuration() (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.connect()
	if err != nil {
		return 0, err
	}
	if !p.hasSaver {
		return 0, fmt.Errorf("X server has no MIT-SCREEN-SAVER extension")
	}

	reply, err := screensaver.QueryInfo(conn, xproto.Drawable(p.root)).Reply()
	if err != nil {
		p.reset()
		return 0, fmt.Errorf("failed to query screen saver info: %w", err)
	}

	return time.Duration(reply.MsSinceUserInput) * time.Millisecond, nil
}

func (p *linuxImpl) GetActiveWindow() (*WindowInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.connect()
	if err != nil {
		return nil, err
	}

	data, err := p.getProperty(conn, p.root, p.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil {
		p.reset()
		return nil, fmt.Errorf("failed to read active window: %w", err)
	}
	if len(data) < 4 {
		return nil, nil
	}

	window := xproto.Window(binary.LittleEndian.Uint32(data))
	if window == 0 {
		return nil, nil
	}

	pid := p.getWindowPID(conn, window)
	info := &WindowInfo{
		Title:     p.getWindowName(conn, window),
		ProcessID: pid,
		Protected: pid == initProcessID,
		Timestamp: time.Now(),
	}

	if pid > 0 {
		info.ProcessPath = readProcessPath(pid)
		info.Application = readProcessName(pid)
	}
	if info.Application == "" {
		info.Application = p.getWindowClass(conn, window)
	}

	return info, nil
}

func (p *linuxImpl) getProperty(conn *xgb.Conn, window xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(conn, false, window, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (p *linuxImpl) getWindowName(conn *xgb.Conn, window xproto.Window) string {
	data, err := p.getProperty(conn, window, p.atoms["_NET_WM_NAME"], p.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	data, err = p.getProperty(conn, window, p.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	return ""
}

// getWindowClass returns the class part of WM_CLASS (instance\0class\0)
func (p *linuxImpl) getWindowClass(conn *xgb.Conn, window xproto.Window) string {
	data, err := p.getProperty(conn, window, p.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil || len(data) == 0 {
		return ""
	}

	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	return parts[len(parts)-1]
}

func (p *linuxImpl) getWindowPID(conn *xgb.Conn, window xproto.Window) int {
	data, err := p.getProperty(conn, window, p.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return int(binary.LittleEndian.Uint32(data))
}

func (p *linuxImpl) GetCommandLine(processID int) (string, error) {
	return readCommandLine(processID)
}

func (p *linuxImpl) GetDeviceID() (string, error) {
	for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id"} {
		machineID, err := os.ReadFile(path)
		if err == nil && len(machineID) > 0 {
			return strings.TrimSpace(string(machineID)), nil
		}
	}
	return "", fmt.Errorf("could not determine Linux device ID")
}

func (p *linuxImpl) GetSystemInfo() (*SystemInfo, error) {
	hostname, _ := os.Hostname()
	return hostSystemInfo(hostname), nil
}

func (p *linuxImpl) OpenFile(path string) error {
	return exec.Command("xdg-open", path).Start()
}

func (p *linuxImpl) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
