package device

import (
	"context"
	"os"
	"runtime"
	"strings"
)

// HostProvider reads attributes of the machine the agent runs on. Cellular
// slots (IMEI, IMSI, ICCID, phone numbers) are never available on a host and
// stay empty.
type HostProvider struct {
	// ReadFile is used for /etc and /sys lookups; nil means os.ReadFile.
	ReadFile func(name string) ([]byte, error)
	// Hostname defaults to os.Hostname.
	Hostname func() (string, error)
}

func (p *HostProvider) Attributes(_ context.Context) (*Attributes, error) {
	var a Attributes

	hostname := p.Hostname
	if hostname == nil {
		hostname = os.Hostname
	}
	if h, err := hostname(); err == nil && h != "" {
		a.Set(SlotDeviceName, h)
	}

	a.Set(SlotOSName, runtime.GOOS)
	a.Set(SlotCPUArch, runtime.GOARCH)

	if v := p.readTrimmed("/etc/machine-id"); v != "" {
		a.Set(SlotPlatformID, v)
	}
	if v := p.readTrimmed("/sys/class/dmi/id/product_name"); v != "" {
		a.Set(SlotModel, v)
	}
	if v := p.readTrimmed("/sys/class/dmi/id/product_serial"); v != "" {
		a.Set(SlotSerial, v)
	}
	if v := osReleaseName(p.readTrimmed("/etc/os-release")); v != "" {
		a.Set(SlotOSVersion, v)
	}

	fillPlatform(&a)

	return &a, nil
}

func (p *HostProvider) readTrimmed(name string) string {
	read := p.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	b, err := read(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// osReleaseName extracts PRETTY_NAME from an os-release(5) document.
func osReleaseName(doc string) string {
	for _, line := range strings.Split(doc, "\n") {
		k, v, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok || k != "PRETTY_NAME" {
			continue
		}
		return strings.Trim(v, `"'`)
	}
	return ""
}
