package disk

import (
	"strings"
	"testing"

	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

func TestPartitionPath(t *testing.T) {
	tests := []struct {
		device string
		n      int
		want   string
	}{
		{"/dev/sda", 1, "/dev/sda1"},
		{"/dev/vdb", 3, "/dev/vdb3"},
		{"/dev/nvme0n1", 2, "/dev/nvme0n1p2"},
		{"/dev/mmcblk0", 1, "/dev/mmcblk0p1"},
		{"/dev/loop7", 1, "/dev/loop7p1"},
	}
	for _, tt := range tests {
		if got := PartitionPath(tt.device, tt.n); got != tt.want {
			t.Errorf("PartitionPath(%q, %d) = %q, want %q", tt.device, tt.n, got, tt.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"513MiB", 513 * MiB, false},
		{"4GiB", 4 * GiB, false},
		{"4G", 4 * GiB, false},
		{"512mb", 512 * MiB, false},
		{"2048", 2048, false},
		{"1T", TiB, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0MiB", 0, true},
		{"16777215T", 16777215 * TiB, false},
		{"16777216T", 0, true},
		{"99999999999T", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseSizeToMiB(t *testing.T) {
	got, err := ParseSizeToMiB("18446744073709551615")
	if err != nil {
		t.Fatalf("ParseSizeToMiB() error = %v", err)
	}
	if got != 1<<44 {
		t.Errorf("ParseSizeToMiB(max) = %d, want %d", got, uint64(1)<<44)
	}
	if got, _ := ParseSizeToMiB("1537KiB"); got != 2 {
		t.Errorf("ParseSizeToMiB(1537KiB) = %d, want 2", got)
	}
}

func TestFormatSize(t *testing.T) {
	if got := FormatSize(513 * MiB); got != "513MiB" {
		t.Errorf("FormatSize(513MiB) = %q", got)
	}
	if got := FormatSize(1536); got != "1536B" {
		t.Errorf("FormatSize(1536) = %q", got)
	}
}

func commands(steps []plan.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Render()
	}
	return out
}

func TestPlanPartitions_UEFISystemdBootWithSwap(t *testing.T) {
	s := &snapshot.Snapshot{
		Device:     "/dev/sda",
		Label:      "gpt",
		Wipe:       true,
		UEFI:       true,
		Bootloader: snapshot.SystemdBoot,
		Swap:       true,
		SwapSize:   "4GiB",
	}
	got := commands(PlanPartitions(s))
	want := []string{
		"wipefs -a /dev/sda",
		"parted -s /dev/sda mklabel gpt",
		"parted -s /dev/sda mkpart ESP fat32 1MiB 513MiB",
		"parted -s /dev/sda set 1 esp on",
		"mkfs.vfat -F32 /dev/sda1",
		"parted -s /dev/sda mkpart swap linux-swap 513MiB 4609MiB",
		"mkswap /dev/sda2",
		"parted -s /dev/sda mkpart root btrfs 4609MiB 100%",
		"mkfs.btrfs -f /dev/sda3",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d steps, got %d:\n%s", len(want), len(got), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPlanPartitions_BIOSEncrypted(t *testing.T) {
	s := &snapshot.Snapshot{
		Device:          "/dev/nvme0n1",
		Label:           "gpt",
		Align:           "optimal",
		Bootloader:      snapshot.Grub,
		Encrypt:         true,
		EncryptPassword: "luks-secret",
	}
	steps := PlanPartitions(s)
	got := commands(steps)

	if got[0] != "parted -s -a optimal /dev/nvme0n1 mklabel gpt" {
		t.Errorf("unexpected first step %q", got[0])
	}
	if got[1] != "parted -s -a optimal /dev/nvme0n1 mkpart BIOS 1MiB 3MiB" {
		t.Errorf("expected BIOS boot partition, got %q", got[1])
	}
	if got[2] != "parted -s /dev/nvme0n1 set 1 bios_grub on" {
		t.Errorf("expected bios_grub flag, got %q", got[2])
	}
	last := got[len(got)-1]
	if last != "mkfs.btrfs -f /dev/mapper/cryptroot" {
		t.Errorf("expected btrfs on mapped device, got %q", last)
	}
	for _, s := range steps {
		if strings.Contains(s.Display(), "luks-secret") {
			t.Errorf("passphrase leaked in %q", s.Display())
		}
	}
	var sawFormat, sawOpen bool
	for _, c := range got {
		if strings.Contains(c, "luksFormat --type luks1 /dev/nvme0n1p2") {
			sawFormat = true
		}
		if strings.Contains(c, "cryptsetup open /dev/nvme0n1p2 cryptroot") {
			if !sawFormat {
				t.Error("luksOpen emitted before luksFormat")
			}
			sawOpen = true
		}
		if strings.Contains(c, "mkfs.btrfs -f /dev/nvme0n1p2") {
			t.Error("raw partition must not be formatted when encrypted")
		}
	}
	if !sawFormat || !sawOpen {
		t.Errorf("missing LUKS steps in:\n%s", strings.Join(got, "\n"))
	}
}

func TestLUKSType(t *testing.T) {
	tests := []struct {
		name       string
		uefi       bool
		bootloader snapshot.BootloaderChoice
		want       string
	}{
		{"bios grub reads /boot from the container", false, snapshot.Grub, "luks1"},
		{"uefi grub boots from the ESP", true, snapshot.Grub, "luks2"},
		{"systemd-boot", true, snapshot.SystemdBoot, "luks2"},
		{"limine", true, snapshot.Limine, "luks2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &snapshot.Snapshot{Device: "/dev/sda", UEFI: tt.uefi, Bootloader: tt.bootloader, Encrypt: true}
			if got := LUKSType(s); got != tt.want {
				t.Errorf("LUKSType() = %q, want %q", got, tt.want)
			}
			if !strings.Contains(strings.Join(commands(PlanPartitions(s)), "\n"), "luksFormat --type "+tt.want+" ") {
				t.Errorf("partition plan does not format with %s", tt.want)
			}
		})
	}
}

func TestPlanPartitions_Manual(t *testing.T) {
	s := &snapshot.Snapshot{
		Device: "/dev/vda",
		Manual: true,
		Label:  "gpt",
		Partitions: []snapshot.PartitionSpec{
			{Role: snapshot.RoleESP, Filesystem: "vfat", Start: 1 * MiB, Size: 300 * MiB, Flags: []string{"esp", "boot"}, Mountpoint: "/boot"},
			{Role: snapshot.RoleRoot, Filesystem: "ext4", Start: 301 * MiB, Size: 20 * GiB, Mountpoint: "/"},
			{Role: snapshot.RoleData, Filesystem: "xfs", Start: 301*MiB + 20*GiB, Mountpoint: "/home"},
		},
	}
	got := commands(PlanPartitions(s))
	want := []string{
		"parted -s /dev/vda mklabel gpt",
		"parted -s /dev/vda mkpart ESP fat32 1MiB 301MiB",
		"parted -s /dev/vda set 1 esp on set 1 boot on",
		"mkfs.vfat -F32 /dev/vda1",
		"parted -s /dev/vda mkpart root ext4 301MiB 20781MiB",
		"mkfs.ext4 -F /dev/vda2",
		"parted -s /dev/vda mkpart data3 xfs 20781MiB 100%",
		"mkfs.xfs -f /dev/vda3",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("manual plan mismatch:\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestPlanMounts_EncryptedUsesMapper(t *testing.T) {
	for _, device := range []string{"/dev/sda", "/dev/nvme0n1"} {
		for _, uefi := range []bool{true, false} {
			s := &snapshot.Snapshot{Device: device, UEFI: uefi, Encrypt: true, Swap: true}
			for _, c := range commands(PlanMounts(s)) {
				if strings.HasPrefix(c, "mount ") && strings.HasSuffix(c, " /mnt") {
					if c != "mount /dev/mapper/cryptroot /mnt" {
						t.Errorf("root mount targets raw partition: %q", c)
					}
				}
			}
		}
	}
}

func TestPlanMounts_NvmeBIOSGrubEncrypted(t *testing.T) {
	s := &snapshot.Snapshot{Device: "/dev/nvme0n1", Bootloader: snapshot.Grub, Encrypt: true}
	got := commands(PlanMounts(s))
	if len(got) != 2 {
		t.Fatalf("expected mkdir and root mount only, got:\n%s", strings.Join(got, "\n"))
	}
	if got[1] != "mount /dev/mapper/cryptroot /mnt" {
		t.Errorf("unexpected root mount %q", got[1])
	}
	for _, c := range got {
		if strings.Contains(c, "/mnt/boot") {
			t.Errorf("unexpected ESP mount %q", c)
		}
	}
}

func TestPlanMounts_UEFIWithSwap(t *testing.T) {
	s := &snapshot.Snapshot{Device: "/dev/nvme0n1", UEFI: true, Swap: true}
	got := commands(PlanMounts(s))
	want := []string{
		"mkdir -p /mnt",
		"mount /dev/nvme0n1p3 /mnt",
		"{ modprobe vfat || modprobe fat\n} || true",
		"mkdir -p /mnt/boot",
		"mount /dev/nvme0n1p1 /mnt/boot",
		"swapon /dev/nvme0n1p2",
	}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("mount plan mismatch:\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestPlanMounts_ManualOrdersByDepth(t *testing.T) {
	s := &snapshot.Snapshot{
		Device: "/dev/sda",
		Manual: true,
		Partitions: []snapshot.PartitionSpec{
			{Role: snapshot.RoleData, Filesystem: "ext4", Mountpoint: "/var/lib/docker"},
			{Role: snapshot.RoleESP, Filesystem: "vfat", Mountpoint: "/boot"},
			{Role: snapshot.RoleRoot, Filesystem: "btrfs", Mountpoint: "/", MountOptions: "compress=zstd", Encrypt: true},
			{Role: snapshot.RoleSwap, Filesystem: "swap"},
		},
	}
	got := commands(PlanMounts(s))
	want := []string{
		"mkdir -p /mnt",
		"mount -o compress=zstd /dev/mapper/cryptroot /mnt",
		"mkdir -p /mnt/boot",
		"mount /dev/sda2 /mnt/boot",
		"mkdir -p /mnt/var/lib/docker",
		"mount /dev/sda1 /mnt/var/lib/docker",
		"swapon /dev/sda4",
	}
	// модуль FAT подгружается перед /boot
	filtered := got[:0:0]
	for _, c := range got {
		if !strings.Contains(c, "modprobe") {
			filtered = append(filtered, c)
		}
	}
	if strings.Join(filtered, "\n") != strings.Join(want, "\n") {
		t.Errorf("manual mount plan mismatch:\ngot:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestRootDevice(t *testing.T) {
	s := &snapshot.Snapshot{Device: "/dev/sda", UEFI: true, Swap: false}
	if got := RootDevice(s); got != "/dev/sda2" {
		t.Errorf("RootDevice() = %q, want /dev/sda2", got)
	}
	s = &snapshot.Snapshot{Device: "/dev/sda", Encrypt: true}
	if got := RootDevice(s); got != CryptRootDevice {
		t.Errorf("RootDevice() = %q, want %q", got, CryptRootDevice)
	}
	if got := RootPartition(s); got != "/dev/sda2" {
		t.Errorf("RootPartition() = %q, want /dev/sda2", got)
	}
}
