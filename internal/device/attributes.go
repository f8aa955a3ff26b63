// Package device models the attribute vector produced by a device-information
// provider and assembles it into the snapshot that is uploaded or exported.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// SlotCount is the length of the provider's attribute vector.
const SlotCount = 19

// Slot indexes a position in Attributes.
type Slot int

// Attribute slots. Slots 3 and 10 are reserved and never reported.
const (
	SlotIMEIPrimary     Slot = 0
	SlotIMEISecondary   Slot = 1
	SlotMemorySize      Slot = 2
	SlotDeviceName      Slot = 4
	SlotModel           Slot = 5
	SlotOSName          Slot = 6
	SlotBasebandVersion Slot = 7
	SlotOSVersion       Slot = 8
	SlotSerial          Slot = 9
	SlotICCID1          Slot = 11
	SlotICCID2          Slot = 12
	SlotIMSI1           Slot = 13
	SlotIMSI2           Slot = 14
	SlotCPUArch         Slot = 15
	SlotPlatformID      Slot = 16
	SlotPhoneNumber1    Slot = 17
	SlotPhoneNumber2    Slot = 18

	// The kernel version shares its slot with the baseband version.
	SlotKernelVersion = SlotBasebandVersion
)

// NotCollected stands in for any slot the provider left empty.
const NotCollected = "not collected"

var slotNames = map[string]Slot{
	"imei_primary":     SlotIMEIPrimary,
	"imei_secondary":   SlotIMEISecondary,
	"memory_size":      SlotMemorySize,
	"device_name":      SlotDeviceName,
	"model":            SlotModel,
	"os_name":          SlotOSName,
	"baseband_version": SlotBasebandVersion,
	"os_version":       SlotOSVersion,
	"serial":           SlotSerial,
	"iccid_1":          SlotICCID1,
	"iccid_2":          SlotICCID2,
	"imsi_1":           SlotIMSI1,
	"imsi_2":           SlotIMSI2,
	"cpu_arch":         SlotCPUArch,
	"platform_id":      SlotPlatformID,
	"phone_number_1":   SlotPhoneNumber1,
	"phone_number_2":   SlotPhoneNumber2,
}

// SlotByName resolves the JSON name of a slot.
func SlotByName(name string) (Slot, bool) {
	s, ok := slotNames[name]
	return s, ok
}

// Attributes is the fixed-length vector of nullable strings a provider fills.
type Attributes [SlotCount]*string

// Get returns the value in slot s, or NotCollected when the slot is empty,
// out of range, or a is nil.
func (a *Attributes) Get(s Slot) string {
	if a == nil || s < 0 || int(s) >= SlotCount || a[s] == nil {
		return NotCollected
	}
	return *a[s]
}

// Set stores v in slot s. Out-of-range slots are ignored.
func (a *Attributes) Set(s Slot, v string) {
	if s < 0 || int(s) >= SlotCount {
		return
	}
	a[s] = &v
}

// Provider supplies device attributes. A nil result with a nil error means
// the provider has no data; callers treat every slot as NotCollected.
type Provider interface {
	Attributes(ctx context.Context) (*Attributes, error)
}

// StaticProvider returns a fixed attribute vector.
type StaticProvider struct {
	Attrs *Attributes
	Err   error
}

func (p *StaticProvider) Attributes(_ context.Context) (*Attributes, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Attrs == nil {
		return nil, nil
	}
	cp := *p.Attrs
	return &cp, nil
}

// LoadStaticFile reads a JSON object of slot names to values, e.g.
// {"imei_primary":"35...","model":"X1"}, into a StaticProvider.
func LoadStaticFile(path string) (*StaticProvider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attributes file: %w", err)
	}

	var raw map[string]*string
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse attributes file: %w", err)
	}

	var attrs Attributes
	for name, v := range raw {
		slot, ok := SlotByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown attribute %q", name)
		}
		if v != nil {
			attrs.Set(slot, *v)
		}
	}
	return &StaticProvider{Attrs: &attrs}, nil
}
