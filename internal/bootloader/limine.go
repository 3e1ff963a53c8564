package bootloader

import (
	"fmt"
	"strings"

	"archweaver/internal/disk"
	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

const (
	limineConf      = "/boot/limine.conf"
	limineEFIDir    = "/boot/EFI/limine"
	limineHook      = "/etc/pacman.d/hooks/99-limine.hook"
	limineDebugLog  = "/var/log/limine-install.log"
	limineHostDebug = "/tmp/limine-install.log"
	limineTimeout   = 5
)

type limineStrategy struct{}

func (limineStrategy) Name() string { return "limine" }

// Plan устанавливает Limine. Каждый шаг выполняется внутри chroot как
// строка в кавычках, где сбой heredoc или экранирования не виден,
// поэтому всё записанное перепроверяется отдельными шагами.
func (limineStrategy) Plan(s *snapshot.Snapshot) []plan.Step {
	binary := limineBinary(s)
	steps := []plan.Step{
		plan.ChrootStep("Install the limine package", "pacman -S --needed --noconfirm limine"),
		plan.ChrootStep(
			"Deploy the Limine UEFI loader to the ESP",
			fmt.Sprintf("mkdir -p %s && cp /usr/share/limine/%s %s/%s", limineEFIDir, binary, limineEFIDir, binary),
		),
		plan.ChrootStep(
			"Deploy the Limine UEFI loader to the removable media path",
			fmt.Sprintf("mkdir -p /boot/EFI/BOOT && cp /usr/share/limine/%s /boot/EFI/BOOT/%s", binary, binary),
		).Tolerant(),
		plan.ChrootStep("Check that the ESP is partition 1", espWarningScript()).Tolerant(),
		plan.ChrootStep("Mount efivarfs if available", efivarfsScript()).Tolerant(),
		plan.ChrootStep("Create the Limine firmware boot entry", nvramScript(s, binary)).Tolerant(),
		plan.ChrootStep("Discover root UUID and write "+limineConf, limineConfScript(s)),
		plan.ChrootStep("Verify "+limineConf, limineVerifyScript(s)).Tolerant(),
		plan.ChrootStep("Install the Limine pacman hook", hookScript(binary)),
		plan.ChrootStep("Verify the Limine pacman hook", hookVerifyScript(binary)).Tolerant(),
	}
	if s.Debug {
		steps = append(steps, plan.HostStep(
			"Copy the Limine debug log to the host",
			fmt.Sprintf("cp %s%s %s", plan.ChrootRoot, limineDebugLog, limineHostDebug),
		).Tolerant())
	}
	return steps
}

func limineBinary(s *snapshot.Snapshot) string {
	return "BOOT" + strings.ToUpper(efiArch(s.Machine)) + ".EFI"
}

// logLines направляет весь вывод шага в журнал отладки
func logLines() []string {
	return []string{
		"mkdir -p /var/log",
		fmt.Sprintf("exec > >(tee -a %s) 2>&1", limineDebugLog),
	}
}

func espNumberLines() []string {
	return []string{
		`ESP_SRC=$(findmnt -no SOURCE /boot 2>/dev/null)`,
		`ESP_NUM=$(cat "/sys/class/block/$(basename "$ESP_SRC")/partition" 2>/dev/null)`,
	}
}

func espWarningScript() string {
	return script(logLines(), espNumberLines(), []string{
		`if [ "$ESP_NUM" != "1" ]; then`,
		`    echo "limine: WARNING: ESP $ESP_SRC is partition ${ESP_NUM:-unknown}, not 1; some firmware only boots from the first partition"`,
		`fi`,
	})
}

func efivarfsScript() string {
	return script(logLines(), []string{
		`if [ -d /sys/firmware/efi ] && ! mountpoint -q /sys/firmware/efi/efivars; then`,
		`    mount -t efivarfs efivarfs /sys/firmware/efi/efivars && echo "limine: mounted efivarfs"`,
		`fi`,
	})
}

func nvramScript(s *snapshot.Snapshot, binary string) string {
	return script(logLines(), espNumberLines(), []string{
		fmt.Sprintf(`efibootmgr --create --disk %s --part "${ESP_NUM:-%d}" --label 'Limine' --loader '\EFI\limine\%s' --unicode`,
			s.Device, espNumber(s), binary),
	})
}

// rootDiscoveryLines - цепочка поиска UUID корня в целевой системе:
// findmnt /, таблица mount, перебор разделов ext4/btrfs/xfs, findmnt /mnt.
// Если ничего не найдено, используется путь к устройству.
func rootDiscoveryLines(fallback string) []string {
	return []string{
		`ROOT_UUID=$(findmnt -no UUID / 2>/dev/null)`,
		`echo "limine: findmnt / -> ${ROOT_UUID:-none}"`,
		`if [ -z "$ROOT_UUID" ]; then`,
		`    ROOT_DEV=$(mount | grep ' on / ' | awk '{print $1}' | head -n1)`,
		`    if [ -n "$ROOT_DEV" ]; then ROOT_UUID=$(blkid -s UUID -o value "$ROOT_DEV" 2>/dev/null); fi`,
		`    echo "limine: mount table ($ROOT_DEV) -> ${ROOT_UUID:-none}"`,
		`fi`,
		`if [ -z "$ROOT_UUID" ]; then`,
		`    for part in $(lsblk -rno PATH,FSTYPE | awk '$2 ~ /^(ext4|btrfs|xfs)$/ {print $1}'); do`,
		`        ROOT_UUID=$(blkid -s UUID -o value "$part" 2>/dev/null)`,
		`        if [ -n "$ROOT_UUID" ]; then echo "limine: partition scan matched $part"; break; fi`,
		`    done`,
		`fi`,
		`if [ -z "$ROOT_UUID" ]; then`,
		`    ROOT_UUID=$(findmnt -no UUID /mnt 2>/dev/null)`,
		`    echo "limine: findmnt /mnt -> ${ROOT_UUID:-none}"`,
		`fi`,
		`if [ -n "$ROOT_UUID" ]; then ROOT_SPEC="UUID=$ROOT_UUID"; else ROOT_SPEC="` + fallback + `"; fi`,
		`echo "limine: using root=$ROOT_SPEC"`,
	}
}

type limineEntry struct {
	title     string
	kernel    string
	initramfs string
}

func limineEntries(s *snapshot.Snapshot) []limineEntry {
	var entries []limineEntry
	for _, k := range s.BootKernels() {
		entries = append(entries,
			limineEntry{title: "Arch Linux (" + k + ")", kernel: k, initramfs: "initramfs-" + k + ".img"},
			limineEntry{title: "Arch Linux (" + k + ", fallback)", kernel: k, initramfs: "initramfs-" + k + "-fallback.img"},
		)
	}
	return entries
}

// limineConfLines - содержимое limine.conf; $ROOT_SPEC и $LUKS_UUID
// раскрываются в целевой системе
func limineConfLines(s *snapshot.Snapshot) []string {
	lines := []string{fmt.Sprintf("timeout: %d", limineTimeout)}
	for _, e := range limineEntries(s) {
		lines = append(lines,
			"",
			"/"+e.title,
			"    protocol: linux",
			"    path: boot():/vmlinuz-"+e.kernel,
			"    cmdline: "+kernelOptions(s, "$ROOT_SPEC"),
		)
		if ucode := s.Microcode(); ucode != "" {
			lines = append(lines, "    module_path: boot():/"+ucode)
		}
		lines = append(lines, "    module_path: boot():/"+e.initramfs)
	}
	return lines
}

func limineConfScript(s *snapshot.Snapshot) string {
	lines := append(logLines(), rootDiscoveryLines(disk.RootDevice(s))...)
	lines = append(lines, luksUUIDLines(s)...)
	lines = append(lines, "cat > "+limineConf+" <<EOF")
	lines = append(lines, limineConfLines(s)...)
	lines = append(lines, "EOF")
	return strings.Join(lines, "\n")
}

// limineVerifyScript перечитывает limine.conf и переписывает его через
// printf и tee, если файла нет или в нём нет root=
func limineVerifyScript(s *snapshot.Snapshot) string {
	lines := append(logLines(), rootDiscoveryLines(disk.RootDevice(s))...)
	lines = append(lines, luksUUIDLines(s)...)
	lines = append(lines,
		`if [ ! -s `+limineConf+` ] || ! grep -q "root=$ROOT_SPEC" `+limineConf+`; then`,
		`    echo "limine: `+limineConf+` missing or incomplete, rewriting"`,
		`    printf '%s\n' `+printfArgs(limineConfLines(s))+` | tee `+limineConf+` >/dev/null`,
		`fi`,
		`grep -q "root=$ROOT_SPEC" `+limineConf+` && echo "limine: `+limineConf+` verified"`,
	)
	return strings.Join(lines, "\n")
}

func hookLines(binary string) []string {
	return []string{
		"[Trigger]",
		"Operation = Install",
		"Operation = Upgrade",
		"Type = Package",
		"Target = limine",
		"",
		"[Action]",
		"Description = Deploying Limine after upgrade...",
		"When = PostTransaction",
		fmt.Sprintf("Exec = /usr/bin/cp /usr/share/limine/%s %s/", binary, limineEFIDir),
	}
}

func hookScript(binary string) string {
	lines := []string{"mkdir -p /etc/pacman.d/hooks", "cat > " + limineHook + " <<'EOF'"}
	lines = append(lines, hookLines(binary)...)
	lines = append(lines, "EOF")
	return strings.Join(lines, "\n")
}

func hookVerifyScript(binary string) string {
	return script(logLines(), []string{
		`if [ ! -s ` + limineHook + ` ] || ! grep -q '^Target = limine' ` + limineHook + ` || ! grep -q '^Exec = ' ` + limineHook + `; then`,
		`    echo "limine: pacman hook missing or incomplete, rewriting"`,
		`    mkdir -p /etc/pacman.d/hooks`,
		`    printf '%s\n' ` + printfArgs(hookLines(binary)) + ` | tee ` + limineHook + ` >/dev/null`,
		`fi`,
	})
}

// printfArgs превращает строки в аргументы printf. Строки с переменными
// оборачиваются в двойные кавычки, остальные - в одинарные.
func printfArgs(lines []string) string {
	args := make([]string, len(lines))
	for i, l := range lines {
		if strings.Contains(l, "$") {
			args[i] = `"` + strings.ReplaceAll(l, `"`, `\"`) + `"`
		} else {
			args[i] = plan.Quote(l)
		}
	}
	return strings.Join(args, " ")
}
