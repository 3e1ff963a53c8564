package plan

import (
	"strings"
	"testing"
)

func TestWrapChroot_EscapesSingleQuotes(t *testing.T) {
	got := WrapChroot(`echo 'hi' > /etc/motd`)
	want := `arch-chroot /mnt bash -lc 'echo '\''hi'\'' > /etc/motd'`
	if got != want {
		t.Errorf("WrapChroot() = %q, want %q", got, want)
	}
}

func TestStepRender(t *testing.T) {
	tests := []struct {
		name string
		step Step
		want string
	}{
		{
			name: "host fatal",
			step: HostStep("", "mkdir -p /mnt"),
			want: "mkdir -p /mnt",
		},
		{
			name: "host best effort simple",
			step: HostStep("", "modprobe vfat").Tolerant(),
			want: "modprobe vfat || true",
		},
		{
			name: "host best effort compound",
			step: HostStep("", "a; b").Tolerant(),
			want: "{ a; b\n} || true",
		},
		{
			name: "chroot fatal",
			step: ChrootStep("", "locale-gen"),
			want: "arch-chroot /mnt bash -lc 'locale-gen'",
		},
		{
			name: "chroot best effort",
			step: ChrootStep("", "efibootmgr -v").Tolerant(),
			want: "arch-chroot /mnt bash -lc 'efibootmgr -v' || true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStepSecretSubstitution(t *testing.T) {
	step := ChrootStep("set password", "echo 'alice:"+SecretMarker+"' | chpasswd").WithSecret("s3cr'et")

	if !step.Redact {
		t.Fatal("expected step to be marked for redaction")
	}
	if got, want := step.Command(), `echo 'alice:s3cr'\''et' | chpasswd`; got != want {
		t.Errorf("Command() = %q, want %q", got, want)
	}
	if !strings.Contains(step.Render(), "s3cr") {
		t.Error("rendered command must contain the real secret")
	}
	display := step.Display()
	if strings.Contains(display, "s3cr") {
		t.Errorf("display leaked secret: %q", display)
	}
	if !strings.Contains(display, "alice:"+Placeholder) {
		t.Errorf("display should keep user name visible, got %q", display)
	}
}

func TestStepIsValue(t *testing.T) {
	base := HostStep("", "true")
	_ = base.Tolerant()
	if base.Criticality != Fatal {
		t.Error("Tolerant must not modify the receiver")
	}
}
