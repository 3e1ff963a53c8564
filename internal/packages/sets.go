package packages

import (
	"sort"
	"strings"

	"archweaver/internal/hwinfo"
	"archweaver/internal/snapshot"
)

// essentials ставятся в любую систему
var essentials = []string{
	"base",
	"base-devel",
	"linux-firmware",
	"btrfs-progs",
	"dosfstools",
	"e2fsprogs",
	"sudo",
	"nano",
	"vim",
	"man-db",
	"bash-completion",
}

// bootloaderPackages - инструменты, нужные загрузчику в целевой системе
func bootloaderPackages(s *snapshot.Snapshot) []string {
	switch s.Bootloader {
	case snapshot.Grub:
		if s.UEFI {
			return []string{"grub", "efibootmgr"}
		}
		return []string{"grub"}
	case snapshot.Limine:
		return []string{"limine", "efibootmgr"}
	case snapshot.Efistub:
		return []string{"efibootmgr"}
	}
	return []string{"efibootmgr"}
}

func networkPackages(s *snapshot.Snapshot) []string {
	switch s.Network {
	case "networkmanager", "":
		return []string{"networkmanager"}
	case "copy_iso":
		return []string{"iwd"}
	}
	return nil
}

func audioPackages(s *snapshot.Snapshot) []string {
	switch strings.ToLower(s.AudioServer) {
	case "pipewire":
		return []string{"pipewire", "pipewire-alsa", "pipewire-pulse", "pipewire-jack", "wireplumber"}
	case "pulseaudio":
		return []string{"pulseaudio", "pulseaudio-alsa"}
	}
	return nil
}

// desktopSets - пакеты окружений по умолчанию; package_overrides заменяет
// набор целиком
var desktopSets = map[string][]string{
	"kde plasma": {"plasma-meta", "konsole", "dolphin", "kate", "ark", "sddm"},
	"gnome":      {"gnome", "gnome-tweaks", "gdm"},
	"xfce":       {"xfce4", "xfce4-goodies", "lightdm", "lightdm-gtk-greeter"},
	"cinnamon":   {"cinnamon", "nemo", "gnome-terminal", "lightdm", "lightdm-gtk-greeter"},
	"mate":       {"mate", "mate-extra", "lightdm", "lightdm-gtk-greeter"},
	"budgie":     {"budgie", "lightdm", "lightdm-gtk-greeter"},
	"lxqt":       {"lxqt", "breeze-icons", "sddm"},
	"hyprland":   {"hyprland", "kitty", "wofi", "waybar", "xdg-desktop-portal-hyprland", "sddm"},
	"sway":       {"sway", "swaylock", "swayidle", "foot", "wmenu", "xorg-xwayland"},
}

// loginManagerPackages - пакеты явно выбранного менеджера входа
var loginManagerPackages = map[string][]string{
	"sddm":    {"sddm"},
	"gdm":     {"gdm"},
	"lightdm": {"lightdm", "lightdm-gtk-greeter"},
	"ly":      {"ly"},
	"greetd":  {"greetd", "greetd-tuigreet"},
}

var serverSets = map[string][]string{
	"docker":     {"docker", "docker-compose"},
	"sshd":       {"openssh"},
	"openssh":    {"openssh"},
	"nginx":      {"nginx"},
	"httpd":      {"apache"},
	"apache":     {"apache"},
	"postgresql": {"postgresql"},
	"mariadb":    {"mariadb"},
	"lighttpd":   {"lighttpd"},
	"cockpit":    {"cockpit", "packagekit"},
}

var xorgSet = []string{"xorg-server", "xorg-xinit", "xorg-apps"}

var graphicsSets = map[string][]string{
	"nvidia":            {"nvidia", "nvidia-utils", "nvidia-settings"},
	"nvidia-open":       {"nvidia-open", "nvidia-utils", "nvidia-settings"},
	"amd":               {"mesa", "vulkan-radeon", "xf86-video-amdgpu", "libva-mesa-driver"},
	"intel":             {"mesa", "vulkan-intel", "intel-media-driver"},
	"vmware/virtualbox": {"mesa", "xf86-video-vmware"},
	"all open-source":   {"mesa", "vulkan-radeon", "vulkan-intel", "xf86-video-amdgpu", "xf86-video-nouveau", "intel-media-driver"},
}

func microcodePackage(vendor string) string {
	switch vendor {
	case hwinfo.VendorIntel:
		return "intel-ucode"
	case hwinfo.VendorAMD:
		return "amd-ucode"
	}
	return ""
}

// Collect собирает множество пакетов для установки. Результат без
// повторов и отсортирован, чтобы одинаковые снимки давали одинаковый план.
func Collect(s *snapshot.Snapshot) []string {
	set := make(map[string]struct{})
	add := func(names ...string) {
		for _, n := range names {
			if n = strings.TrimSpace(n); n != "" {
				set[n] = struct{}{}
			}
		}
	}

	add(essentials...)
	if len(s.Kernels) == 0 {
		add("linux", "linux-headers")
	}
	for _, k := range s.Kernels {
		add(k, k+"-headers")
	}
	if len(s.LimineKernels) > 0 && s.Bootloader == snapshot.Limine {
		add(s.LimineKernels...)
	}
	add(bootloaderPackages(s)...)
	if s.Encrypt || anyEncrypted(s) {
		add("cryptsetup")
	}
	add(networkPackages(s)...)
	add(audioPackages(s)...)

	if s.IsDesktop() {
		for _, env := range s.DesktopEnvs {
			add(desktopPackages(s, env)...)
		}
		if lm := strings.ToLower(strings.TrimSpace(s.LoginManager)); lm != "" {
			add(loginManagerPackages[lm]...)
		}
	}
	for _, srv := range s.Servers {
		add(serverSets[strings.ToLower(strings.TrimSpace(srv))]...)
	}
	if s.Xorg {
		add(xorgSet...)
	}
	add(graphicsSets[strings.ToLower(strings.TrimSpace(s.GraphicsDriver))]...)
	add(microcodePackage(s.CPUVendor))
	for _, extra := range s.AdditionalPackages {
		add(strings.Fields(extra)...)
	}

	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// desktopPackages - набор окружения с учётом переопределения пользователя
func desktopPackages(s *snapshot.Snapshot, env string) []string {
	if override, ok := s.PackageOverrides[env]; ok {
		return override
	}
	// ключи перебираются по порядку, чтобы результат не зависел от
	// порядка обхода карты
	key := envKey(env)
	names := make([]string, 0, len(s.PackageOverrides))
	for name := range s.PackageOverrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if envKey(name) == key {
			return s.PackageOverrides[name]
		}
	}
	return desktopSets[key]
}

// envKey - имя окружения без учёта регистра и крайних пробелов
func envKey(env string) string {
	return strings.ToLower(strings.TrimSpace(env))
}

func anyEncrypted(s *snapshot.Snapshot) bool {
	if !s.Manual {
		return false
	}
	for _, p := range s.Partitions {
		if p.Encrypt {
			return true
		}
	}
	return false
}
