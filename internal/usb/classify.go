// Package usb classifies USB serial devices as ADB, Fastboot or generic.
// Classification is advisory: vendor IDs give a first guess and an optional
// single text probe confirms it.
package usb

import (
	"strconv"
	"strings"
)

// Kind is the classification of a device.
type Kind string

const (
	KindADB      Kind = "adb"
	KindFastboot Kind = "fastboot"
	KindGeneric  Kind = "generic"
)

// androidVendors lists USB vendor IDs of Android phone and SoC makers.
var androidVendors = map[uint16]string{
	0x18d1: "Google",
	0x04e8: "Samsung",
	0x0bb4: "HTC",
	0x22b8: "Motorola",
	0x1004: "LG",
	0x0fce: "Sony",
	0x12d1: "Huawei",
	0x2717: "Xiaomi",
	0x2a70: "OnePlus",
	0x22d9: "OPPO",
	0x2d95: "vivo",
	0x05c6: "Qualcomm",
	0x0e8d: "MediaTek",
	0x17ef: "Lenovo",
	0x19d2: "ZTE",
	0x0b05: "ASUS",
	0x1ebf: "Coolpad",
	0x2970: "Wileyfox",
}

type productKey struct{ vid, pid uint16 }

// fastbootProducts are vendor/product pairs exposed only in bootloader mode.
var fastbootProducts = map[productKey]bool{
	{0x18d1, 0x4ee0}: true, // Google fastboot
	{0x18d1, 0xd00d}: true, // generic Android bootloader
	{0x0bb4, 0x0fff}: true, // HTC bootloader
	{0x2717, 0x0c01}: true, // Xiaomi fastboot
}

// ClassifyVendor guesses a kind from the USB ids alone.
func ClassifyVendor(vid, pid uint16) Kind {
	if fastbootProducts[productKey{vid, pid}] {
		return KindFastboot
	}
	if _, ok := androidVendors[vid]; ok {
		return KindADB
	}
	return KindGeneric
}

// VendorName returns the maker registered for vid, or "".
func VendorName(vid uint16) string {
	return androidVendors[vid]
}

// parseID parses a hex USB id such as "18D1" or "0x18d1". Invalid input
// yields 0.
func parseID(s string) uint16 {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0
	}
	return uint16(v)
}
