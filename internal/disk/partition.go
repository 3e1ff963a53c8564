package disk

import (
	"fmt"
	"strings"

	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

// PlanPartitions строит шаги разметки и форматирования.
// Ошибок на этапе построения нет: выполнение проверяет исполнитель.
func PlanPartitions(s *snapshot.Snapshot) []plan.Step {
	steps := prepareDisk(s)
	if s.Manual {
		return append(steps, manualPartitions(s)...)
	}
	return append(steps, autoPartitions(s)...)
}

func prepareDisk(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	if s.Wipe {
		steps = append(steps, plan.HostStep(
			"Wipe existing signatures from "+s.Device,
			"wipefs -a "+s.Device,
		))
	}
	steps = append(steps, plan.HostStep(
		fmt.Sprintf("Create %s partition table on %s", labelOf(s), s.Device),
		fmt.Sprintf("%s mklabel %s", parted(s), labelOf(s)),
	))
	return steps
}

// autoPartitions - автоматическая разметка: ESP или BIOS boot, затем
// подкачка, затем корень btrfs на всё оставшееся место
func autoPartitions(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	layout := LayoutOf(s)
	offset := uint64(firstOffsetMiB)

	if layout.ESP > 0 {
		end := offset + espSizeMiB
		esp := PartitionPath(s.Device, layout.ESP)
		steps = append(steps,
			mkpart(s, "ESP", "fat32", mib(offset), mib(end)),
			setFlags(s, layout.ESP, []string{"esp"}),
			plan.HostStep("Format ESP "+esp+" as FAT32", "mkfs.vfat -F32 "+esp),
		)
		offset = end
	} else {
		end := offset + biosBootSizeMiB
		steps = append(steps, mkpart(s, "BIOS", "", mib(offset), mib(end)))
		if labelOf(s) == "gpt" {
			steps = append(steps, setFlags(s, layout.BIOSBoot, []string{"bios_grub"}))
		}
		offset = end
	}

	if layout.Swap > 0 {
		size := swapSizeMiB(s.SwapSize)
		end := offset + size
		swap := PartitionPath(s.Device, layout.Swap)
		steps = append(steps,
			mkpart(s, "swap", "linux-swap", mib(offset), mib(end)),
			plan.HostStep("Create swap on "+swap, "mkswap "+swap),
		)
		offset = end
	}

	root := PartitionPath(s.Device, layout.Root)
	steps = append(steps, mkpart(s, "root", "btrfs", mib(offset), "100%"))
	if s.Encrypt {
		steps = append(steps, luksFormat(s, root, CryptRootName)...)
		steps = append(steps, plan.HostStep("Format "+CryptRootDevice+" as btrfs", "mkfs.btrfs -f "+CryptRootDevice))
	} else {
		steps = append(steps, plan.HostStep("Format "+root+" as btrfs", "mkfs.btrfs -f "+root))
	}
	return steps
}

// manualPartitions создаёт разделы в порядке списка. Начало и размер
// переводятся из байтов в единицы parted; перекрытия не проверяются.
func manualPartitions(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	for i, p := range s.Partitions {
		n := i + 1
		end := "100%"
		if p.Size > 0 {
			end = FormatSize(p.Start + p.Size)
		}
		steps = append(steps, mkpart(s, partName(p, n), partedFsType(p.Filesystem), FormatSize(p.Start), end))
		if len(p.Flags) > 0 {
			steps = append(steps, setFlags(s, n, p.Flags))
		}

		target := PartitionPath(s.Device, n)
		if p.Encrypt {
			name := mappingName(p, n)
			steps = append(steps, luksFormat(s, target, name)...)
			target = "/dev/mapper/" + name
		}
		if step, ok := mkfs(p.Filesystem, target); ok && p.Role != snapshot.RoleBIOSBoot {
			steps = append(steps, step)
		}
	}
	return steps
}

// LUKSType - формат контейнера. GRUB на BIOS читает /boot изнутри
// контейнера и не умеет argon2id из luks2 по умолчанию, поэтому там luks1.
func LUKSType(s *snapshot.Snapshot) string {
	if s.Bootloader == snapshot.Grub && !s.UEFI {
		return "luks1"
	}
	return "luks2"
}

func luksFormat(s *snapshot.Snapshot, partition, name string) []plan.Step {
	passphrase := s.EncryptPassword
	return []plan.Step{
		plan.HostStep(
			"Encrypt "+partition+" with LUKS",
			"printf '%s' '"+plan.SecretMarker+"' | cryptsetup -q luksFormat --type "+LUKSType(s)+" "+partition+" -",
		).WithSecret(passphrase),
		plan.HostStep(
			"Open "+partition+" as /dev/mapper/"+name,
			"printf '%s' '"+plan.SecretMarker+"' | cryptsetup open "+partition+" "+name+" -",
		).WithSecret(passphrase),
	}
}

func mkfs(filesystem, target string) (plan.Step, bool) {
	var cmd string
	switch strings.ToLower(filesystem) {
	case "fat32", "vfat", "fat":
		cmd = "mkfs.vfat -F32 " + target
	case "ext4":
		cmd = "mkfs.ext4 -F " + target
	case "btrfs":
		cmd = "mkfs.btrfs -f " + target
	case "xfs":
		cmd = "mkfs.xfs -f " + target
	case "swap", "linux-swap":
		return plan.HostStep("Create swap on "+target, "mkswap "+target), true
	default:
		return plan.Step{}, false
	}
	return plan.HostStep(fmt.Sprintf("Format %s as %s", target, filesystem), cmd), true
}

func mkpart(s *snapshot.Snapshot, name, fsType, start, end string) plan.Step {
	if labelOf(s) == "msdos" {
		name = "primary"
	}
	args := []string{parted(s), "mkpart", name}
	if fsType != "" {
		args = append(args, fsType)
	}
	args = append(args, start, end)
	return plan.HostStep(
		fmt.Sprintf("Create partition %s (%s - %s)", name, start, end),
		strings.Join(args, " "),
	)
}

// setFlags ставит все флаги раздела одним вызовом parted
func setFlags(s *snapshot.Snapshot, n int, flags []string) plan.Step {
	var b strings.Builder
	b.WriteString("parted -s " + s.Device)
	for _, f := range flags {
		fmt.Fprintf(&b, " set %d %s on", n, f)
	}
	return plan.HostStep(
		fmt.Sprintf("Set flags %s on partition %d", strings.Join(flags, ","), n),
		b.String(),
	)
}

func parted(s *snapshot.Snapshot) string {
	if s.Align != "" {
		return fmt.Sprintf("parted -s -a %s %s", s.Align, s.Device)
	}
	return "parted -s " + s.Device
}

func labelOf(s *snapshot.Snapshot) string {
	if s.Label == "" {
		return "gpt"
	}
	return s.Label
}

func partName(p snapshot.PartitionSpec, n int) string {
	switch p.Role {
	case snapshot.RoleESP:
		return "ESP"
	case snapshot.RoleBIOSBoot:
		return "BIOS"
	case snapshot.RoleRoot, snapshot.RoleSwap:
		return p.Role
	}
	return fmt.Sprintf("data%d", n)
}

func partedFsType(filesystem string) string {
	switch strings.ToLower(filesystem) {
	case "vfat", "fat", "fat32":
		return "fat32"
	case "swap", "linux-swap":
		return "linux-swap"
	case "", "none":
		return ""
	}
	return strings.ToLower(filesystem)
}

func swapSizeMiB(size string) uint64 {
	if n, err := ParseSizeToMiB(size); err == nil {
		return n
	}
	return defaultSwapMiB
}

func mib(n uint64) string {
	return fmt.Sprintf("%dMiB", n)
}

// contains проверяет, содержится ли элемент в слайсе
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
