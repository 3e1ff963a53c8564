// Package verify строит проверки результата разметки и шаг генерации fstab.
package verify

import (
	"fmt"
	"strings"

	"archweaver/internal/disk"
	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

const (
	// espPartType - GUID типа раздела EFI System
	espPartType  = "c12a7328-f81f-11d2-ba4b-00a0c93ec93b"
	swapPartType = "0657fd6d-a4ab-43c4-84e5-0933c84b4f4f"
)

// Plan строит проверки: сначала предупреждения, которые не прерывают
// установку, затем обязательные проверки точек монтирования и genfstab
func Plan(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	if esp := disk.ESPPartition(s); esp != "" && s.UEFI {
		steps = append(steps, espCheck(esp))
	}
	if swap := disk.SwapPartition(s); swap != "" {
		steps = append(steps, swapCheck(swap))
	}
	steps = append(steps, rootCheck(s))

	steps = append(steps, mountpointCheck(plan.ChrootRoot))
	if s.UEFI && disk.ESPPartition(s) != "" {
		steps = append(steps, mountpointCheck(plan.ChrootRoot+"/boot"))
	}

	steps = append(steps, plan.HostStep(
		"Generate /etc/fstab",
		fmt.Sprintf("mkdir -p %[1]s/etc && genfstab -U %[1]s >> %[1]s/etc/fstab", plan.ChrootRoot),
	))
	if extra := disk.ExtraEncryptedVolumes(s); len(extra) > 0 {
		steps = append(steps, crypttab(extra))
	}
	return steps
}

func warnUnless(cond, message string) string {
	return fmt.Sprintf("if ! %s; then echo %s >&2; fi", cond, plan.Quote("WARNING: "+message))
}

func espCheck(esp string) plan.Step {
	cond := fmt.Sprintf(`[ "$(lsblk -no PARTTYPE %[1]s)" = %[2]q ] || lsblk -no PARTLABEL %[1]s | grep -qi esp`, esp, espPartType)
	return plan.HostStep(
		"Check partition type of ESP "+esp,
		warnUnless("{ "+cond+"; }", esp+" is not marked as an EFI System Partition"),
	).Tolerant()
}

func swapCheck(swap string) plan.Step {
	cond := fmt.Sprintf(`[ "$(lsblk -no FSTYPE %[1]s)" = "swap" ] || [ "$(lsblk -no PARTTYPE %[1]s)" = %[2]q ]`, swap, swapPartType)
	return plan.HostStep(
		"Check swap partition "+swap,
		warnUnless("{ "+cond+"; }", swap+" does not look like a swap partition"),
	).Tolerant()
}

// rootCheck различает зашифрованный корень (crypto_LUKS под btrfs на
// отображении) и обычный btrfs на разделе
func rootCheck(s *snapshot.Snapshot) plan.Step {
	raw := disk.RootPartition(s)
	var cond, message string
	if disk.RootEncrypted(s) {
		cond = fmt.Sprintf(`{ [ "$(lsblk -ndo FSTYPE %s)" = "crypto_LUKS" ] && [ -n "$(lsblk -ndo FSTYPE %s)" ]; }`,
			raw, disk.CryptRootDevice)
		message = raw + " is not a LUKS container with an opened " + disk.CryptRootDevice
	} else {
		want := rootFilesystem(s)
		cond = fmt.Sprintf(`[ "$(lsblk -ndo FSTYPE %s)" = %q ]`, raw, want)
		message = raw + " is not formatted as " + want
	}
	return plan.HostStep("Check root filesystem on "+raw, warnUnless(cond, message)).Tolerant()
}

func rootFilesystem(s *snapshot.Snapshot) string {
	if s.Manual {
		for _, p := range s.Partitions {
			if p.Role == snapshot.RoleRoot && p.Filesystem != "" {
				return strings.ToLower(p.Filesystem)
			}
		}
	}
	return "btrfs"
}

func mountpointCheck(path string) plan.Step {
	return plan.HostStep(
		"Check that "+path+" is mounted",
		fmt.Sprintf("mountpoint -q %[1]s || { echo '%[1]s is not mounted' >&2; exit 1; }", path),
	)
}

func crypttab(volumes []disk.EncryptedVolume) plan.Step {
	lines := make([]string, 0, len(volumes))
	for _, v := range volumes {
		lines = append(lines, fmt.Sprintf(`grep -q '^%[1]s ' /etc/crypttab || echo "%[1]s UUID=$(blkid -s UUID -o value %[2]s) none luks" >> /etc/crypttab`,
			v.Name, v.Partition))
	}
	return plan.ChrootStep("Add encrypted volumes to /etc/crypttab", strings.Join(lines, "\n"))
}
