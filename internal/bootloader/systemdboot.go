package bootloader

import (
	"fmt"

	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

const (
	loaderConf     = "/boot/loader/loader.conf"
	entriesDir     = "/boot/loader/entries"
	bootctlTimeout = 60
)

type systemdBootStrategy struct{}

func (systemdBootStrategy) Name() string { return "systemd-boot" }

// Plan устанавливает systemd-boot без записи в NVRAM (--no-variables):
// некоторые прошивки зависают на записи переменных, поэтому каждый вызов
// bootctl ограничен timeout. Запись NVRAM делается отдельно через
// efibootmgr и только если bootctl status не прошёл.
func (systemdBootStrategy) Plan(s *snapshot.Snapshot) []plan.Step {
	kernel := s.PrimaryKernel()
	steps := []plan.Step{
		plan.ChrootStep(
			"Install systemd-boot to the ESP",
			fmt.Sprintf("timeout %d bootctl --esp-path=/boot --boot-path=/boot --no-variables install", bootctlTimeout),
		),
		plan.ChrootStep(
			"Write "+loaderConf,
			fmt.Sprintf("mkdir -p %s && printf '%%s\\n' 'default arch.conf' 'timeout 3' 'console-mode max' 'editor no' > %s",
				entriesDir, loaderConf),
		),
		plan.ChrootStep(
			"Write boot entry arch.conf",
			entryScript(s, "arch.conf", "Arch Linux", kernel, "initramfs-"+kernel+".img"),
		),
		plan.ChrootStep(
			"Write boot entry arch-fallback.conf",
			entryScript(s, "arch-fallback.conf", "Arch Linux (fallback initramfs)", kernel, "initramfs-"+kernel+"-fallback.img"),
		),
		plan.ChrootStep(
			"Create firmware boot entry if bootctl status fails",
			efibootmgrFallback(s),
		).Tolerant(),
	}
	return steps
}

func entryScript(s *snapshot.Snapshot, file, title, kernel, initramfs string) string {
	lines := []string{
		plan.Quote("title   " + title),
		plan.Quote("linux   /vmlinuz-" + kernel),
	}
	if ucode := s.Microcode(); ucode != "" {
		lines = append(lines, plan.Quote("initrd  /"+ucode))
	}
	lines = append(lines,
		plan.Quote("initrd  /"+initramfs),
		`"options `+kernelOptions(s, "UUID=$ROOT_UUID")+`"`,
	)

	write := "printf '%s\\n'"
	for _, l := range lines {
		write += " " + l
	}
	write += " > " + entriesDir + "/" + file

	return script(rootUUIDLines(), luksUUIDLines(s), []string{write})
}

func efibootmgrFallback(s *snapshot.Snapshot) string {
	arch := efiArch(s.Machine)
	return script([]string{
		"if ! timeout 30 bootctl --esp-path=/boot status >/dev/null 2>&1; then",
		"    if [ -d /sys/firmware/efi/efivars ] && { mountpoint -q /sys/firmware/efi/efivars || mount -t efivarfs efivarfs /sys/firmware/efi/efivars; }; then",
		fmt.Sprintf(`        efibootmgr --create --disk %s --part %d --label 'Linux Boot Manager' --loader '\EFI\systemd\systemd-boot%s.efi'`,
			s.Device, espNumber(s), arch),
		"    fi",
		"fi",
	})
}
