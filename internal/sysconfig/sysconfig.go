// Package sysconfig строит шаги настройки установленной системы:
// время, локаль, имя хоста, сеть, службы, initramfs и пароль root.
package sysconfig

import (
	"fmt"
	"sort"
	"strings"

	"archweaver/internal/disk"
	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

const (
	defaultTimezone = "UTC"
	defaultLocale   = "en_US.UTF-8"
	defaultEncoding = "UTF-8"
	defaultKeymap   = "us"
	defaultHostname = "archlinux"
)

// Plan строит шаги настройки системы. Все шаги выполняются внутри chroot
// и рассчитаны на повторный запуск.
func Plan(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	steps = append(steps, timeSteps(s)...)
	steps = append(steps, localeSteps(s)...)
	steps = append(steps, hostSteps(s)...)
	steps = append(steps, networkSteps(s)...)
	steps = append(steps, serviceSteps(s)...)
	if disk.RootEncrypted(s) {
		steps = append(steps, initramfsSteps()...)
	}
	if step, ok := rootPassword(s); ok {
		steps = append(steps, step)
	}
	return steps
}

func timeSteps(s *snapshot.Snapshot) []plan.Step {
	tz := or(s.Timezone, defaultTimezone)
	return []plan.Step{
		plan.ChrootStep("Set timezone "+tz, fmt.Sprintf("ln -sf /usr/share/zoneinfo/%s /etc/localtime", tz)),
		plan.ChrootStep("Sync hardware clock", "hwclock --systohc"),
	}
}

// LocaleLine - строка locale.gen для локали и кодировки
func LocaleLine(locale, encoding string) string {
	return or(locale, defaultLocale) + " " + or(encoding, defaultEncoding)
}

func localeSteps(s *snapshot.Snapshot) []plan.Step {
	line := LocaleLine(s.Locale, s.Encoding)
	pattern := regexpEscape(line)
	enable := strings.Join([]string{
		fmt.Sprintf(`if grep -q '^#\?%s' /etc/locale.gen; then`, pattern),
		fmt.Sprintf(`    sed -i 's/^#\(%s\)/\1/' /etc/locale.gen`, pattern),
		`else`,
		fmt.Sprintf(`    echo '%s' >> /etc/locale.gen`, line),
		`fi`,
	}, "\n")
	return []plan.Step{
		plan.ChrootStep("Enable locale "+line, enable),
		plan.ChrootStep("Generate locales", "locale-gen"),
		plan.ChrootStep("Write /etc/locale.conf", fmt.Sprintf("echo 'LANG=%s' > /etc/locale.conf", or(s.Locale, defaultLocale))),
		plan.ChrootStep("Write /etc/vconsole.conf", fmt.Sprintf("echo 'KEYMAP=%s' > /etc/vconsole.conf", or(s.KeyboardLayout, defaultKeymap))),
	}
}

// HostsFile - шаблон /etc/hosts для имени хоста
func HostsFile(hostname string) []string {
	return []string{
		"127.0.0.1   localhost",
		"::1         localhost",
		fmt.Sprintf("127.0.1.1   %[1]s.localdomain %[1]s", hostname),
	}
}

func hostSteps(s *snapshot.Snapshot) []plan.Step {
	hostname := or(s.Hostname, defaultHostname)
	var quoted []string
	for _, l := range HostsFile(hostname) {
		quoted = append(quoted, plan.Quote(l))
	}
	return []plan.Step{
		plan.ChrootStep("Write /etc/hostname", fmt.Sprintf("echo '%s' > /etc/hostname", hostname)),
		plan.ChrootStep("Write /etc/hosts", "printf '%s\\n' "+strings.Join(quoted, " ")+" > /etc/hosts"),
	}
}

func networkSteps(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	switch s.Network {
	case "networkmanager", "":
		steps = append(steps, enable("NetworkManager"))
	case "copy_iso":
		steps = append(steps,
			plan.HostStep(
				"Copy live network configuration",
				fmt.Sprintf("mkdir -p %[1]s/etc/systemd/network && cp -a /etc/systemd/network/. %[1]s/etc/systemd/network/", plan.ChrootRoot),
			).Tolerant(),
			enable("systemd-networkd"),
			enable("systemd-resolved"),
		)
	}
	if s.NTP {
		steps = append(steps, enable("systemd-timesyncd"))
	}
	return steps
}

// serviceUnits - юниты systemd для серверных пакетов
var serviceUnits = map[string]string{
	"docker":     "docker",
	"sshd":       "sshd",
	"openssh":    "sshd",
	"nginx":      "nginx",
	"httpd":      "httpd",
	"apache":     "httpd",
	"postgresql": "postgresql",
	"mariadb":    "mariadb",
	"lighttpd":   "lighttpd",
	"cockpit":    "cockpit.socket",
}

// ServiceUnits возвращает юниты для выбранных серверов в стабильном порядке
func ServiceUnits(servers []string) []string {
	seen := make(map[string]bool)
	var units []string
	for _, srv := range servers {
		unit, ok := serviceUnits[strings.ToLower(strings.TrimSpace(srv))]
		if !ok || seen[unit] {
			continue
		}
		seen[unit] = true
		units = append(units, unit)
	}
	sort.Strings(units)
	return units
}

func serviceSteps(s *snapshot.Snapshot) []plan.Step {
	var steps []plan.Step
	for _, unit := range ServiceUnits(s.Servers) {
		steps = append(steps, enable(unit))
	}
	return steps
}

// initramfsSteps добавляет хук разблокировки перед filesystems и
// пересобирает initramfs. Для initramfs на systemd нужен sd-encrypt,
// для busybox - encrypt.
func initramfsSteps() []plan.Step {
	hook := strings.Join([]string{
		`if grep -qE '^HOOKS=.*[( ]systemd[ )]' /etc/mkinitcpio.conf; then`,
		`    HOOK=sd-encrypt`,
		`else`,
		`    HOOK=encrypt`,
		`fi`,
		`if ! grep -qE "^HOOKS=.*[( ]$HOOK[ )]" /etc/mkinitcpio.conf; then`,
		`    sed -i "s/^\(HOOKS=.*\)filesystems/\1$HOOK filesystems/" /etc/mkinitcpio.conf`,
		`fi`,
	}, "\n")
	return []plan.Step{
		plan.ChrootStep("Add encrypt hook to mkinitcpio.conf", hook),
		plan.ChrootStep("Regenerate initramfs", "mkinitcpio -P"),
	}
}

// rootPassword задаёт пароль root, только если подтверждение совпало
func rootPassword(s *snapshot.Snapshot) (plan.Step, bool) {
	if s.RootPassword == "" || s.RootPassword != s.RootConfirm {
		return plan.Step{}, false
	}
	return plan.ChrootStep("Set root password", "echo 'root:"+plan.SecretMarker+"' | chpasswd").
		WithSecret(s.RootPassword), true
}

func enable(unit string) plan.Step {
	return plan.ChrootStep("Enable "+unit, "systemctl enable "+unit)
}

// regexpEscape экранирует строку для базовых регулярных выражений sed/grep
func regexpEscape(s string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "[", `\[`, "]", `\]`, "^", `\^`, "$", `\$`, "/", `\/`)
	return r.Replace(s)
}

func or(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
