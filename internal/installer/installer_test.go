package installer

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"archweaver/internal/hwinfo"
	"archweaver/internal/packages"
	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

type allFound struct{}

func (allFound) Lookup(_ context.Context, name string) (packages.Info, error) {
	return packages.Info{Repository: "core", Name: name}, nil
}

func fullSnapshot(device string, uefi bool, choice snapshot.BootloaderChoice) *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Device:          device,
		Label:           "gpt",
		Wipe:            true,
		UEFI:            uefi,
		Machine:         "x86_64",
		CPUVendor:       hwinfo.VendorAMD,
		Bootloader:      choice,
		Swap:            true,
		SwapSize:        "2GiB",
		Encrypt:         true,
		EncryptPassword: "disk-secret",
		Kernels:         []string{"linux"},
		Locale:          "en_US.UTF-8",
		Encoding:        "UTF-8",
		KeyboardLayout:  "us",
		Timezone:        "UTC",
		Hostname:        "box",
		Network:         "networkmanager",
		RootPassword:    "root-secret",
		RootConfirm:     "root-secret",
		ExperienceMode:  "desktop",
		DesktopEnvs:     []string{"KDE Plasma"},
		Users:           []snapshot.User{{Name: "ann", Password: "ann-secret", Confirm: "ann-secret", Sudo: true}},
	}
}

func compile(t *testing.T, s *snapshot.Snapshot) *Compiled {
	t.Helper()
	c, err := Compile(context.Background(), s, Options{DryRun: true, Query: allFound{}})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return c
}

func TestCompile_PhaseOrder(t *testing.T) {
	c := compile(t, fullSnapshot("/dev/sda", true, snapshot.SystemdBoot))
	sections := c.Plan.Sections()
	want := []plan.Phase{
		plan.PhasePartition, plan.PhaseMount, plan.PhaseBase, plan.PhaseBootloader,
		plan.PhaseFstab, plan.PhaseSysConfig, plan.PhaseUsers,
	}
	if len(sections) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(sections))
	}
	for i, sec := range sections {
		if sec.Phase != want[i] {
			t.Errorf("section %d is %s, want %s", i, sec.Phase, want[i])
		}
	}
}

func TestCompile_Idempotent(t *testing.T) {
	s := fullSnapshot("/dev/nvme0n1", true, snapshot.Limine)
	first := compile(t, s).Plan.Commands()
	second := compile(t, s).Plan.Commands()
	if strings.Join(first, "\x00") != strings.Join(second, "\x00") {
		t.Error("compiling the same snapshot twice produced different plans")
	}
}

func TestCompile_DeviceNaming(t *testing.T) {
	tests := []struct {
		device string
		bad    *regexp.Regexp
		good   string
	}{
		{"/dev/nvme0n1", regexp.MustCompile(`/dev/nvme0n1[0-9]`), "/dev/nvme0n1p3"},
		{"/dev/mmcblk0", regexp.MustCompile(`/dev/mmcblk0[0-9]`), "/dev/mmcblk0p3"},
		{"/dev/sda", regexp.MustCompile(`/dev/sdap`), "/dev/sda3"},
	}
	for _, tt := range tests {
		for _, choice := range []snapshot.BootloaderChoice{snapshot.SystemdBoot, snapshot.Grub, snapshot.Limine} {
			t.Run(tt.device+"/"+choice.String(), func(t *testing.T) {
				text := strings.Join(compile(t, fullSnapshot(tt.device, true, choice)).Plan.Commands(), "\n")
				if m := tt.bad.FindString(text); m != "" {
					t.Errorf("wrong partition suffix %q", m)
				}
				if !strings.Contains(text, tt.good) {
					t.Errorf("expected root partition %s in plan", tt.good)
				}
			})
		}
	}
}

func TestCompile_BootloaderTools(t *testing.T) {
	tests := []struct {
		choice snapshot.BootloaderChoice
		tool   string
	}{
		{snapshot.SystemdBoot, "bootctl"},
		{snapshot.Grub, "grub-install"},
		{snapshot.Efistub, "TODO"},
		{snapshot.Limine, "limine"},
	}
	for _, tt := range tests {
		t.Run(tt.choice.String(), func(t *testing.T) {
			c := compile(t, fullSnapshot("/dev/sda", true, tt.choice))
			found := false
			for _, sec := range c.Plan.Sections() {
				if sec.Phase != plan.PhaseBootloader {
					continue
				}
				for _, st := range sec.Steps {
					if strings.Contains(st.Render(), tt.tool) {
						found = true
					}
				}
			}
			if !found {
				t.Errorf("boot loader phase does not reference %q", tt.tool)
			}
		})
	}
}

func TestCompile_EncryptedNVMeBIOSGrub(t *testing.T) {
	s := fullSnapshot("/dev/nvme0n1", false, snapshot.Grub)
	s.Swap = false
	c := compile(t, s)
	for _, sec := range c.Plan.Sections() {
		if sec.Phase != plan.PhaseMount {
			continue
		}
		var cmds []string
		for _, st := range sec.Steps {
			cmds = append(cmds, st.Command())
		}
		joined := strings.Join(cmds, "\n")
		if !strings.Contains(joined, "mount /dev/mapper/cryptroot /mnt") {
			t.Errorf("root must be mounted from the mapper:\n%s", joined)
		}
		if strings.Contains(joined, "/mnt/boot") {
			t.Errorf("BIOS install must not mount an ESP:\n%s", joined)
		}
	}
}

func TestCompile_SecretsNeverShown(t *testing.T) {
	c := compile(t, fullSnapshot("/dev/sda", true, snapshot.SystemdBoot))
	text := c.Plan.Text()
	for _, secret := range []string{"disk-secret", "root-secret", "ann-secret"} {
		if strings.Contains(text, secret) {
			t.Errorf("plan text leaks %q", secret)
		}
	}
	if !strings.Contains(text, "ann:"+plan.Placeholder) {
		t.Error("user name should stay visible in the redacted text")
	}

	// реальные команды содержат секреты
	cmds := strings.Join(c.Plan.Commands(), "\n")
	for _, secret := range []string{"disk-secret", "root-secret", "ann-secret"} {
		if !strings.Contains(cmds, secret) {
			t.Errorf("executable plan is missing %q", secret)
		}
	}
}

func TestCompile_NoDuplicateGrub(t *testing.T) {
	s := fullSnapshot("/dev/sda", true, snapshot.Grub)
	s.AdditionalPackages = []string{"grub"}
	c := compile(t, s)
	n := 0
	for _, p := range c.Packages {
		if p == "grub" {
			n++
		}
	}
	if n != 1 {
		t.Errorf("grub appears %d times in %v", n, c.Packages)
	}
}

func TestPreflight_ManualESPAtBoot(t *testing.T) {
	s := fullSnapshot("/dev/sda", true, snapshot.SystemdBoot)
	s.Manual = true
	s.Partitions = []snapshot.PartitionSpec{
		{Role: snapshot.RoleESP, Filesystem: "fat32", Size: 512 << 20, Mountpoint: "boot/"},
		{Role: snapshot.RoleRoot, Filesystem: "ext4", Start: 513 << 20, Mountpoint: "/"},
	}
	if problems := Preflight(s); len(problems) != 0 {
		t.Errorf("ESP at /boot must pass preflight: %v", problems)
	}
}

func TestPreflight(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*snapshot.Snapshot)
		want   string
	}{
		{"ok", func(*snapshot.Snapshot) {}, ""},
		{"no device", func(s *snapshot.Snapshot) { s.Device = "" }, "no target disk"},
		{"systemd-boot on bios", func(s *snapshot.Snapshot) { s.UEFI = false }, "requires UEFI"},
		{"limine on bios", func(s *snapshot.Snapshot) { s.UEFI = false; s.Bootloader = snapshot.Limine }, "limine requires UEFI"},
		{"missing passphrase", func(s *snapshot.Snapshot) { s.EncryptPassword = "" }, "passphrase"},
		{"manual without root", func(s *snapshot.Snapshot) {
			s.Manual = true
			s.Partitions = []snapshot.PartitionSpec{{Role: snapshot.RoleESP, Filesystem: "fat32", Size: 512}}
		}, "no root partition"},
		{"manual esp under /boot/efi", func(s *snapshot.Snapshot) {
			s.Manual = true
			s.Partitions = []snapshot.PartitionSpec{
				{Role: snapshot.RoleESP, Filesystem: "fat32", Size: 512 << 20, Mountpoint: "/boot/efi"},
				{Role: snapshot.RoleRoot, Filesystem: "ext4", Start: 513 << 20, Mountpoint: "/"},
			}
		}, `mounted at /boot, not "/boot/efi"`},
		{"manual esp without mountpoint", func(s *snapshot.Snapshot) {
			s.Manual = true
			s.Partitions = []snapshot.PartitionSpec{
				{Role: snapshot.RoleESP, Filesystem: "fat32", Size: 512 << 20},
				{Role: snapshot.RoleRoot, Filesystem: "ext4", Start: 513 << 20, Mountpoint: "/"},
			}
		}, "EFI system partition must be mounted at /boot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fullSnapshot("/dev/sda", true, snapshot.SystemdBoot)
			tt.modify(s)
			problems := strings.Join(Preflight(s), "\n")
			if tt.want == "" {
				if problems != "" {
					t.Errorf("unexpected problems: %s", problems)
				}
				return
			}
			if !strings.Contains(problems, tt.want) {
				t.Errorf("Preflight() = %q, want it to mention %q", problems, tt.want)
			}
			if _, err := Compile(context.Background(), s, Options{Query: allFound{}}); err == nil {
				t.Error("Compile() must refuse a snapshot that fails preflight")
			}
		})
	}
}
