package bootloader

import (
	"fmt"

	"archweaver/internal/disk"
	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

type grubStrategy struct{}

func (grubStrategy) Name() string { return "grub" }

// Plan устанавливает GRUB. В режиме BIOS цель - всё устройство, никогда
// не раздел. Настройка шифрования пишется в /etc/default/grub до
// grub-install: при /boot внутри LUKS grub-install без
// GRUB_ENABLE_CRYPTODISK=y отказывается устанавливаться.
func (grubStrategy) Plan(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	if disk.RootEncrypted(s) {
		lines := luksUUIDLines(s)
		lines = append(lines,
			`sed -i "s|^GRUB_CMDLINE_LINUX=.*|GRUB_CMDLINE_LINUX=\"`+cryptOptions()+` root=`+disk.CryptRootDevice+`\"|" /etc/default/grub`,
		)
		if !s.UEFI {
			// /boot лежит внутри LUKS
			lines = append(lines,
				`grep -q '^GRUB_ENABLE_CRYPTODISK=y' /etc/default/grub || echo 'GRUB_ENABLE_CRYPTODISK=y' >> /etc/default/grub`)
		}
		steps = append(steps, plan.ChrootStep("Configure GRUB for encrypted root", script(lines)))
	}

	if s.UEFI {
		steps = append(steps, plan.ChrootStep(
			"Install GRUB for UEFI",
			fmt.Sprintf("grub-install --target=%s --efi-directory=/boot --bootloader-id=GRUB --recheck", grubEFITarget(s.Machine)),
		))
	} else {
		steps = append(steps, plan.ChrootStep(
			"Install GRUB to "+s.Device,
			"grub-install --target=i386-pc --recheck "+s.Device,
		))
	}

	steps = append(steps, plan.ChrootStep(
		"Generate GRUB configuration",
		"grub-mkconfig -o /boot/grub/grub.cfg",
	))
	return steps
}
