package config

import (
	"fmt"
	"strings"

	"archweaver/internal/disk"
	"archweaver/internal/structures"
)

// ValidationError собирает все проблемы конфигурации в виде сообщений
// для пользователя
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration:\n  - " + strings.Join(e.Problems, "\n  - ")
}

var validBootloaders = map[string]bool{
	"systemd-boot": true,
	"grub":         true,
	"efistub":      true,
	"limine":       true,
}

// ValidateConfig проверяет конфигурацию до построения плана.
// Построение плана над невалидной конфигурацией не выполняется.
func ValidateConfig(cfg *structures.InstallConfig) error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	device := strings.TrimSpace(cfg.Disks.Device)
	if device == "" {
		add("no target disk selected")
	} else if !strings.HasPrefix(device, "/dev/") {
		add("target disk %q is not a /dev path", device)
	}

	switch cfg.Disks.Mode {
	case "best_effort":
	case "manual":
		problems = append(problems, validatePartitions(cfg.Disks.Partitions)...)
	default:
		add("unknown partitioning mode %q", cfg.Disks.Mode)
	}

	switch cfg.Disks.Label {
	case "gpt", "msdos":
	default:
		add("unknown partition table label %q", cfg.Disks.Label)
	}

	if !validBootloaders[cfg.Bootloader.Kind] {
		add("unknown boot loader %q", cfg.Bootloader.Kind)
	}

	if cfg.DiskEncryption.Type == "luks" {
		if cfg.DiskEncryption.Password == "" {
			add("disk encryption enabled but no passphrase set")
		} else if cfg.DiskEncryption.Password != cfg.DiskEncryption.Confirm {
			add("disk encryption passphrases do not match")
		}
	}

	if cfg.Swap.Enabled {
		if _, err := disk.ParseSize(cfg.Swap.Size); err != nil {
			add("invalid swap size %q", cfg.Swap.Size)
		}
	}

	if !isValidHostname(cfg.System.Hostname) {
		add("invalid hostname %q", cfg.System.Hostname)
	}

	if len(cfg.System.Kernels) == 0 {
		add("no kernel selected")
	}

	seen := make(map[string]bool)
	for _, u := range cfg.Users {
		if !isValidUsername(u.Name) {
			add("invalid user name %q", u.Name)
		}
		if seen[u.Name] {
			add("user %q configured twice", u.Name)
		}
		seen[u.Name] = true
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func validatePartitions(parts []structures.PartitionSpec) []string {
	var problems []string
	if len(parts) == 0 {
		return []string{"manual partitioning selected but no partitions defined"}
	}
	var roots, esps int
	var lastStart uint64
	for i, p := range parts {
		switch p.Role {
		case "root":
			roots++
		case "esp":
			esps++
		}
		if i > 0 && p.Start < lastStart {
			problems = append(problems,
				fmt.Sprintf("partition %d starts before partition %d", i+1, i))
		}
		lastStart = p.Start
	}
	if roots != 1 {
		problems = append(problems, fmt.Sprintf("expected exactly one root partition, found %d", roots))
	}
	if esps > 1 {
		problems = append(problems, fmt.Sprintf("expected at most one ESP, found %d", esps))
	}
	return problems
}

// isValidHostname возвращает true, если имя хоста содержит допустимые символы
func isValidHostname(hostname string) bool {
	if hostname == "" || len(hostname) > 63 {
		return false
	}
	if hostname[0] == '-' || hostname[len(hostname)-1] == '-' {
		return false
	}
	for _, ch := range hostname {
		if (ch >= 'A' && ch <= 'Z') ||
			(ch >= 'a' && ch <= 'z') ||
			(ch >= '0' && ch <= '9') ||
			(ch == '-') {
			continue
		}
		return false
	}
	return true
}

func isValidUsername(name string) bool {
	if name == "" || len(name) > 32 || name == "root" {
		return false
	}
	for i, ch := range name {
		switch {
		case ch >= 'a' && ch <= 'z', ch == '_':
		case (ch >= '0' && ch <= '9') || ch == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
