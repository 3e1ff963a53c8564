// Package hwinfo читает сведения о живой машине, которые нужны
// компилятору плана до выбора разметки.
package hwinfo

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	VendorIntel   = "GenuineIntel"
	VendorAMD     = "AuthenticAMD"
	VendorUnknown = ""
)

// Facts - снимок сведений о машине, на которой работает установщик
type Facts struct {
	UEFI      bool
	CPUVendor string
	Machine   string
}

// Prober позволяет переопределить пути для тестов
type Prober struct {
	FirmwarePath string
	CPUInfoPath  string
}

func DefaultProber() Prober {
	return Prober{
		FirmwarePath: "/sys/firmware/efi",
		CPUInfoPath:  "/proc/cpuinfo",
	}
}

// Probe собирает факты. Ошибки чтения не фатальны: неизвестное значение
// остаётся пустым.
func (p Prober) Probe() Facts {
	facts := Facts{
		UEFI:    p.IsUEFI(),
		Machine: Machine(),
	}
	if f, err := os.Open(p.CPUInfoPath); err == nil {
		facts.CPUVendor = ParseCPUVendor(f)
		f.Close()
	}
	return facts
}

// IsUEFI сообщает, загружена ли система через UEFI
func (p Prober) IsUEFI() bool {
	fi, err := os.Stat(p.FirmwarePath)
	return err == nil && fi.IsDir()
}

// ParseCPUVendor ищет строку vendor_id в формате /proc/cpuinfo
func ParseCPUVendor(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "vendor_id" {
			continue
		}
		switch vendor := strings.TrimSpace(value); vendor {
		case VendorIntel, VendorAMD:
			return vendor
		default:
			return VendorUnknown
		}
	}
	return VendorUnknown
}

// Machine возвращает архитектуру ядра (uname -m), по умолчанию x86_64
func Machine() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "x86_64"
	}
	machine := unix.ByteSliceToString(uts.Machine[:])
	if machine == "" {
		return "x86_64"
	}
	return machine
}
