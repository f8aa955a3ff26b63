//go:build !linux

package device

func fillPlatform(_ *Attributes) {}
