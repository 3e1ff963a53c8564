package sysconfig

import (
	"strings"
	"testing"

	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

func commands(steps []plan.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Command()
	}
	return out
}

func containsCmd(steps []plan.Step, want string) bool {
	for _, c := range commands(steps) {
		if strings.Contains(c, want) {
			return true
		}
	}
	return false
}

func baseSnapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Device:         "/dev/sda",
		UEFI:           true,
		Timezone:       "Europe/Zurich",
		Locale:         "de_CH.UTF-8",
		Encoding:       "UTF-8",
		KeyboardLayout: "de_CH-latin1",
		Hostname:       "weaver",
		Network:        "networkmanager",
	}
}

func TestPlan_Order(t *testing.T) {
	steps := Plan(baseSnapshot())
	want := []string{
		"ln -sf /usr/share/zoneinfo/Europe/Zurich /etc/localtime",
		"hwclock --systohc",
		"/etc/locale.gen",
		"locale-gen",
		"echo 'LANG=de_CH.UTF-8' > /etc/locale.conf",
		"echo 'KEYMAP=de_CH-latin1' > /etc/vconsole.conf",
		"echo 'weaver' > /etc/hostname",
		"/etc/hosts",
		"systemctl enable NetworkManager",
	}
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %d: %v", len(want), len(steps), commands(steps))
	}
	for i, w := range want {
		if !strings.Contains(steps[i].Command(), w) {
			t.Errorf("step %d: %q does not contain %q", i, steps[i].Command(), w)
		}
		if steps[i].Context != plan.Chroot {
			t.Errorf("step %d should run in chroot", i)
		}
	}
}

func TestPlan_LocaleIsIdempotent(t *testing.T) {
	cmd := localeSteps(baseSnapshot())[0].Command()
	for _, want := range []string{
		`grep -q '^#\?de_CH\.UTF-8 UTF-8' /etc/locale.gen`,
		`sed -i 's/^#\(de_CH\.UTF-8 UTF-8\)/\1/' /etc/locale.gen`,
		`echo 'de_CH.UTF-8 UTF-8' >> /etc/locale.gen`,
	} {
		if !strings.Contains(cmd, want) {
			t.Errorf("locale step missing %q:\n%s", want, cmd)
		}
	}
}

func TestHostsFile(t *testing.T) {
	got := HostsFile("weaver")
	if got[2] != "127.0.1.1   weaver.localdomain weaver" {
		t.Errorf("unexpected hosts line %q", got[2])
	}
}

func TestPlan_Network(t *testing.T) {
	tests := []struct {
		name    string
		network string
		ntp     bool
		want    []string
		absent  []string
	}{
		{"networkmanager", "networkmanager", false, []string{"systemctl enable NetworkManager"}, []string{"timesyncd"}},
		{"copy iso", "copy_iso", true, []string{"cp -a /etc/systemd/network/.", "systemctl enable systemd-networkd", "systemctl enable systemd-resolved", "systemctl enable systemd-timesyncd"}, []string{"NetworkManager"}},
		{"none", "none", false, nil, []string{"NetworkManager", "networkd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSnapshot()
			s.Network = tt.network
			s.NTP = tt.ntp
			steps := networkSteps(s)
			for _, w := range tt.want {
				if !containsCmd(steps, w) {
					t.Errorf("missing %q in %v", w, commands(steps))
				}
			}
			for _, a := range tt.absent {
				if containsCmd(steps, a) {
					t.Errorf("unexpected %q in %v", a, commands(steps))
				}
			}
		})
	}
}

func TestServiceUnits(t *testing.T) {
	got := ServiceUnits([]string{"Docker", "sshd", "openssh", "Nginx", "unknown"})
	want := []string{"docker", "nginx", "sshd"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("ServiceUnits = %v, want %v", got, want)
	}
}

func TestPlan_EncryptedRootRegeneratesInitramfs(t *testing.T) {
	s := baseSnapshot()
	if containsCmd(Plan(s), "mkinitcpio") {
		t.Error("plain root must not touch mkinitcpio")
	}
	s.Encrypt = true
	steps := Plan(s)
	if !containsCmd(steps, `\1$HOOK filesystems/" /etc/mkinitcpio.conf`) || !containsCmd(steps, "mkinitcpio -P") {
		t.Errorf("encrypted root needs the encrypt hook: %v", commands(steps))
	}
	// initramfs на systemd разблокирует корень только через sd-encrypt
	if !containsCmd(steps, "[( ]systemd[ )]' /etc/mkinitcpio.conf; then\n    HOOK=sd-encrypt\nelse\n    HOOK=encrypt") {
		t.Errorf("hook must follow the initramfs flavour: %v", commands(steps))
	}
}

func TestPlan_RootPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		confirm  string
		want     bool
	}{
		{"match", "s3cr'et", "s3cr'et", true},
		{"mismatch", "one", "two", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := baseSnapshot()
			s.RootPassword = tt.password
			s.RootConfirm = tt.confirm
			steps := Plan(s)
			last := steps[len(steps)-1]
			got := strings.Contains(last.Command(), "chpasswd")
			if got != tt.want {
				t.Fatalf("chpasswd step present = %v, want %v", got, tt.want)
			}
			if !got {
				return
			}
			if !last.Redact {
				t.Error("password step must be marked for redaction")
			}
			if strings.Contains(last.Display(), tt.password) {
				t.Errorf("password leaked: %s", last.Display())
			}
			if !strings.Contains(last.Display(), "root:"+plan.Placeholder) {
				t.Errorf("display should keep the user name: %s", last.Display())
			}
			if !strings.Contains(last.Command(), `echo 'root:s3cr'\''et' | chpasswd`) {
				t.Errorf("secret not escaped for single quotes: %s", last.Command())
			}
		})
	}
}
