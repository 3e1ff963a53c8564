// Package snapshot содержит неизменяемое представление выбора пользователя,
// которое получают все планировщики.
package snapshot

import (
	"strings"

	"archweaver/internal/hwinfo"
	"archweaver/internal/structures"
)

// BootloaderChoice - один из четырёх взаимоисключающих загрузчиков
type BootloaderChoice int

const (
	SystemdBoot BootloaderChoice = iota
	Grub
	Efistub
	Limine
)

func (b BootloaderChoice) String() string {
	switch b {
	case SystemdBoot:
		return "systemd-boot"
	case Grub:
		return "grub"
	case Efistub:
		return "efistub"
	case Limine:
		return "limine"
	}
	return "unknown"
}

// ParseBootloader переводит значение из конфигурации; неизвестное значение
// отбрасывается валидацией раньше, здесь оно трактуется как systemd-boot
func ParseBootloader(kind string) BootloaderChoice {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "grub":
		return Grub
	case "efistub":
		return Efistub
	case "limine":
		return Limine
	}
	return SystemdBoot
}

// Роли разделов в ручном режиме
const (
	RoleRoot     = "root"
	RoleESP      = "esp"
	RoleSwap     = "swap"
	RoleBIOSBoot = "bios_boot"
	RoleData     = "data"
)

// PartitionSpec - раздел в ручной разметке
type PartitionSpec struct {
	Role         string
	Filesystem   string
	Start        uint64
	Size         uint64 // 0 - до конца диска
	Flags        []string
	Mountpoint   string
	MountOptions string
	Encrypt      bool
}

type User struct {
	Name     string
	Password string
	Confirm  string
	Sudo     bool
}

// Snapshot - неизменяемый снимок конфигурации. После передачи в компилятор
// его поля не изменяются; все планировщики получают его по указателю
// только для чтения.
type Snapshot struct {
	Device     string
	Manual     bool
	Label      string
	Wipe       bool
	Align      string
	Partitions []PartitionSpec

	Encrypt         bool
	EncryptPassword string

	Swap     bool
	SwapSize string

	Bootloader    BootloaderChoice
	LimineKernels []string

	UEFI      bool
	CPUVendor string
	Machine   string

	Locale         string
	Encoding       string
	KeyboardLayout string
	Timezone       string
	Hostname       string
	NTP            bool
	Network        string

	RootPassword string
	RootConfirm  string

	Kernels            []string
	ExperienceMode     string
	DesktopEnvs        []string
	PackageOverrides   map[string][]string
	LoginManager       string
	Servers            []string
	Xorg               bool
	GraphicsDriver     string
	AudioServer        string
	AdditionalPackages []string

	MirrorRegions []string
	MirrorServers []string

	Users []User
	Debug bool
}

// FromConfig строит снимок. Все срезы и карты копируются, чтобы
// последующие изменения конфигурации не затрагивали снимок.
func FromConfig(cfg *structures.InstallConfig, facts hwinfo.Facts) *Snapshot {
	s := &Snapshot{
		Device: strings.TrimSpace(cfg.Disks.Device),
		Manual: cfg.Disks.Mode == "manual",
		Label:  cfg.Disks.Label,
		Wipe:   cfg.Disks.Wipe,
		Align:  cfg.Disks.Align,

		Encrypt:         cfg.DiskEncryption.Type == "luks",
		EncryptPassword: cfg.DiskEncryption.Password,

		Swap:     cfg.Swap.Enabled,
		SwapSize: cfg.Swap.Size,

		Bootloader:    ParseBootloader(cfg.Bootloader.Kind),
		LimineKernels: cloneStrings(cfg.Bootloader.LimineKernels),

		UEFI:      facts.UEFI,
		CPUVendor: facts.CPUVendor,
		Machine:   facts.Machine,

		Locale:         cfg.Locales.Language,
		Encoding:       cfg.Locales.Encoding,
		KeyboardLayout: cfg.Locales.KeyboardLayout,
		Timezone:       cfg.System.Timezone,
		Hostname:       cfg.System.Hostname,
		NTP:            cfg.System.NTP,
		Network:        cfg.System.Network,

		RootPassword: cfg.System.RootPassword,
		RootConfirm:  cfg.System.RootConfirm,

		Kernels:            cloneStrings(cfg.System.Kernels),
		ExperienceMode:     cfg.System.Experience.Mode,
		DesktopEnvs:        cloneStrings(cfg.System.Experience.DesktopEnvs),
		LoginManager:       cfg.System.Experience.LoginManager,
		Servers:            cloneStrings(cfg.System.Experience.Servers),
		Xorg:               cfg.System.Experience.Xorg,
		GraphicsDriver:     cfg.System.Experience.GraphicsDriver,
		AudioServer:        cfg.System.AudioServer,
		AdditionalPackages: cloneStrings(cfg.System.AdditionalPackages),

		MirrorRegions: cloneStrings(cfg.Mirrors.Regions),
		MirrorServers: cloneStrings(cfg.Mirrors.Custom),

		Debug: cfg.System.Debug,
	}

	if len(cfg.System.Experience.PackageSets) > 0 {
		s.PackageOverrides = make(map[string][]string, len(cfg.System.Experience.PackageSets))
		for env, pkgs := range cfg.System.Experience.PackageSets {
			s.PackageOverrides[env] = cloneStrings(pkgs)
		}
	}

	for _, p := range cfg.Disks.Partitions {
		s.Partitions = append(s.Partitions, PartitionSpec{
			Role:         p.Role,
			Filesystem:   p.Filesystem,
			Start:        p.Start,
			Size:         p.Size,
			Flags:        cloneStrings(p.Flags),
			Mountpoint:   p.Mountpoint,
			MountOptions: p.MountOptions,
			Encrypt:      p.Encrypt,
		})
	}

	for _, u := range cfg.Users {
		s.Users = append(s.Users, User{
			Name:     u.Name,
			Password: u.Password,
			Confirm:  u.Confirm,
			Sudo:     u.Sudo,
		})
	}

	return s
}

// PrimaryKernel - ядро, на которое указывает запись загрузчика по умолчанию
func (s *Snapshot) PrimaryKernel() string {
	if len(s.Kernels) == 0 {
		return "linux"
	}
	return s.Kernels[0]
}

// BootKernels - ядра, для которых создаются записи Limine
func (s *Snapshot) BootKernels() []string {
	if len(s.LimineKernels) > 0 {
		return s.LimineKernels
	}
	if len(s.Kernels) == 0 {
		return []string{"linux"}
	}
	return s.Kernels
}

// HasUserSudo сообщает, нужна ли группа wheel хотя бы одному пользователю
func (s *Snapshot) HasUserSudo() bool {
	for _, u := range s.Users {
		if u.Sudo {
			return true
		}
	}
	return false
}

// IsDesktop сообщает, выбрано ли графическое окружение
func (s *Snapshot) IsDesktop() bool {
	return s.ExperienceMode == "desktop" && len(s.DesktopEnvs) > 0
}

// Microcode возвращает образ микрокода для записей загрузчика
func (s *Snapshot) Microcode() string {
	switch s.CPUVendor {
	case hwinfo.VendorIntel:
		return "intel-ucode.img"
	case hwinfo.VendorAMD:
		return "amd-ucode.img"
	}
	return ""
}

func cloneStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
