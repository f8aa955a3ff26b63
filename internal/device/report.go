package device

import "time"

// CollectedAtLayout formats Report.CollectedAt.
const CollectedAtLayout = "2006-01-02 15:04:05"

type Hardware struct {
	DeviceName      string `json:"device_name"`
	Model           string `json:"model"`
	Serial          string `json:"serial"`
	IMEIPrimary     string `json:"imei_primary"`
	IMEISecondary   string `json:"imei_secondary"`
	CPUArch         string `json:"cpu_arch"`
	MemorySize      string `json:"memory_size"`
	BasebandVersion string `json:"baseband_version"`
}

type Software struct {
	OSName        string `json:"os_name"`
	OSVersion     string `json:"os_version"`
	PlatformID    string `json:"platform_id"`
	KernelVersion string `json:"kernel_version"`
}

type SIM struct {
	PhoneNumber1 string `json:"phone_number_1"`
	PhoneNumber2 string `json:"phone_number_2"`
	IMSI1        string `json:"imsi_1"`
	IMSI2        string `json:"imsi_2"`
	ICCID1       string `json:"iccid_1"`
	ICCID2       string `json:"iccid_2"`
}

// Report is the device snapshot sent to the collector or stored locally.
type Report struct {
	Hardware    Hardware `json:"hardware"`
	Software    Software `json:"software"`
	SIM         SIM      `json:"sim"`
	CollectedAt string   `json:"collected_at"`
}

// BuildReport groups attrs into a Report stamped with now. A nil attrs
// produces a report where every field is NotCollected.
func BuildReport(attrs *Attributes, now time.Time) *Report {
	return &Report{
		Hardware: Hardware{
			DeviceName:      attrs.Get(SlotDeviceName),
			Model:           attrs.Get(SlotModel),
			Serial:          attrs.Get(SlotSerial),
			IMEIPrimary:     attrs.Get(SlotIMEIPrimary),
			IMEISecondary:   attrs.Get(SlotIMEISecondary),
			CPUArch:         attrs.Get(SlotCPUArch),
			MemorySize:      attrs.Get(SlotMemorySize),
			BasebandVersion: attrs.Get(SlotBasebandVersion),
		},
		Software: Software{
			OSName:        attrs.Get(SlotOSName),
			OSVersion:     attrs.Get(SlotOSVersion),
			PlatformID:    attrs.Get(SlotPlatformID),
			KernelVersion: attrs.Get(SlotKernelVersion),
		},
		SIM: SIM{
			PhoneNumber1: attrs.Get(SlotPhoneNumber1),
			PhoneNumber2: attrs.Get(SlotPhoneNumber2),
			IMSI1:        attrs.Get(SlotIMSI1),
			IMSI2:        attrs.Get(SlotIMSI2),
			ICCID1:       attrs.Get(SlotICCID1),
			ICCID2:       attrs.Get(SlotICCID2),
		},
		CollectedAt: now.Format(CollectedAtLayout),
	}
}
