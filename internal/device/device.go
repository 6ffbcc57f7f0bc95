package device

import (
	"os"
	"strings"

	"github.com/BDisp/app-application-logger/internal/platform"

	"github.com/google/uuid"
)

// IDSource is the platform side of machine naming
type IDSource interface {
	GetSystemInfo() (*platform.SystemInfo, error)
	GetDeviceID() (string, error)
}

// DeviceManager works out the machine name stamped on every record and the
// identifier of the current run
type DeviceManager struct {
	source   IDSource
	hostname func() (string, error)
}

// NewDeviceManager creates a new device manager. source may be nil.
func NewDeviceManager(source IDSource) *DeviceManager {
	return &DeviceManager{
		source:   source,
		hostname: os.Hostname,
	}
}

// MachineName returns the configured name when set. Otherwise it falls back
// to the host name reported by the platform, the host name of the process,
// the platform machine id and finally a generated UUID.
// It is called once at start so every record of a run carries the same name.
func (dm *DeviceManager) MachineName(configured string) string {
	if name := strings.TrimSpace(configured); name != "" {
		return name
	}

	if dm.source != nil {
		if info, err := dm.source.GetSystemInfo(); err == nil && info != nil && strings.TrimSpace(info.Hostname) != "" {
			return strings.TrimSpace(info.Hostname)
		}
	}

	if hostname, err := dm.hostname(); err == nil && strings.TrimSpace(hostname) != "" {
		return strings.TrimSpace(hostname)
	}

	if dm.source != nil {
		if id, err := dm.source.GetDeviceID(); err == nil && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id)
		}
	}

	return uuid.New().String()
}

// NewRunID returns a fresh identifier for one run of the logger
func (dm *DeviceManager) NewRunID() string {
	return uuid.New().String()
}
