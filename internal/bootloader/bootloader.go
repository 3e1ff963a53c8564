// Package bootloader строит шаги установки и настройки загрузчика.
// Вариант загрузчика фиксирован снимком на всё время компиляции.
package bootloader

import (
	"fmt"
	"strings"

	"archweaver/internal/disk"
	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

// Strategy - стратегия установки одного вида загрузчика
type Strategy interface {
	Name() string
	Plan(s *snapshot.Snapshot) []plan.Step
}

// For возвращает стратегию для варианта загрузчика
func For(choice snapshot.BootloaderChoice) Strategy {
	switch choice {
	case snapshot.Grub:
		return grubStrategy{}
	case snapshot.Efistub:
		return efistubStrategy{}
	case snapshot.Limine:
		return limineStrategy{}
	}
	return systemdBootStrategy{}
}

// Plan строит шаги загрузчика, выбранного в снимке
func Plan(s *snapshot.Snapshot) []plan.Step {
	return For(s.Bootloader).Plan(s)
}

// RequiresUEFI сообщает, может ли загрузчик работать только под UEFI
func RequiresUEFI(choice snapshot.BootloaderChoice) bool {
	return choice != snapshot.Grub
}

// efiArch - суффикс имён EFI-файлов для архитектуры
func efiArch(machine string) string {
	switch machine {
	case "aarch64", "arm64":
		return "aa64"
	case "i686", "i386":
		return "ia32"
	}
	return "x64"
}

// grubEFITarget - цель grub-install для UEFI
func grubEFITarget(machine string) string {
	switch machine {
	case "aarch64", "arm64":
		return "arm64-efi"
	case "i686", "i386":
		return "i386-efi"
	}
	return "x86_64-efi"
}

func espNumber(s *snapshot.Snapshot) int {
	if n := disk.LayoutOf(s).ESP; n > 0 {
		return n
	}
	return 1
}

// rootUUIDLines определяет UUID корня во время выполнения: реальный
// UUID появляется только после создания файловой системы
func rootUUIDLines() []string {
	return []string{
		`ROOT_UUID=$(findmnt -no UUID / 2>/dev/null)`,
		`if [ -z "$ROOT_UUID" ]; then ROOT_UUID=$(blkid -s UUID -o value "$(findmnt -no SOURCE /)" 2>/dev/null); fi`,
		`if [ -z "$ROOT_UUID" ]; then echo "could not determine root filesystem UUID" >&2; exit 1; fi`,
	}
}

// luksUUIDLines определяет UUID контейнера LUKS под корнем. Пустой UUID
// дал бы запись, с которой система не загрузится, поэтому шаг падает.
func luksUUIDLines(s *snapshot.Snapshot) []string {
	if !disk.RootEncrypted(s) {
		return nil
	}
	return []string{
		fmt.Sprintf(`LUKS_UUID=$(blkid -s UUID -o value %s 2>/dev/null)`, disk.RootPartition(s)),
		`if [ -z "$LUKS_UUID" ]; then echo "could not determine LUKS container UUID" >&2; exit 1; fi`,
	}
}

// cryptOptions - параметры разблокировки корня для обоих вариантов
// initramfs: rd.luks.name читает sd-encrypt, cryptdevice - encrypt.
// Каждый хук игнорирует чужой параметр.
func cryptOptions() string {
	return fmt.Sprintf("rd.luks.name=$LUKS_UUID=%s cryptdevice=UUID=$LUKS_UUID:%s",
		disk.CryptRootName, disk.CryptRootName)
}

// kernelOptions - параметры ядра; переменные раскрываются в целевой системе
func kernelOptions(s *snapshot.Snapshot, rootSpec string) string {
	opts := "root=" + rootSpec + " rw"
	if disk.RootEncrypted(s) {
		opts = cryptOptions() + " " + opts
	}
	return opts
}

func script(lines ...[]string) string {
	var all []string
	for _, l := range lines {
		all = append(all, l...)
	}
	return strings.Join(all, "\n")
}
