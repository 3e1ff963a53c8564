package disk

import (
	"fmt"

	"archweaver/internal/snapshot"
)

const (
	// CryptRootName - имя отображения dm-crypt для корня
	CryptRootName = "cryptroot"
	// CryptRootDevice - путь к открытому корню
	CryptRootDevice = "/dev/mapper/" + CryptRootName

	espSizeMiB      = 512
	biosBootSizeMiB = 2
	firstOffsetMiB  = 1
	defaultSwapMiB  = 4096
)

// Layout - номера разделов, созданных планировщиком разметки.
// Ноль означает, что раздела нет.
type Layout struct {
	ESP      int
	BIOSBoot int
	Swap     int
	Root     int
}

// LayoutOf вычисляет нумерацию разделов для снимка
func LayoutOf(s *snapshot.Snapshot) Layout {
	if s.Manual {
		return manualLayout(s.Partitions)
	}
	var l Layout
	n := 1
	if s.UEFI {
		l.ESP = n
	} else {
		l.BIOSBoot = n
	}
	n++
	if s.Swap {
		l.Swap = n
		n++
	}
	l.Root = n
	return l
}

func manualLayout(parts []snapshot.PartitionSpec) Layout {
	var l Layout
	for i, p := range parts {
		n := i + 1
		switch {
		case p.Role == snapshot.RoleESP || contains(p.Flags, "esp"):
			if l.ESP == 0 {
				l.ESP = n
			}
		case p.Role == snapshot.RoleBIOSBoot:
			if l.BIOSBoot == 0 {
				l.BIOSBoot = n
			}
		case p.Role == snapshot.RoleSwap:
			if l.Swap == 0 {
				l.Swap = n
			}
		case p.Role == snapshot.RoleRoot:
			if l.Root == 0 {
				l.Root = n
			}
		}
	}
	return l
}

// RootEncrypted сообщает, зашифрован ли корневой раздел
func RootEncrypted(s *snapshot.Snapshot) bool {
	if s.Manual {
		for _, p := range s.Partitions {
			if p.Role == snapshot.RoleRoot {
				return p.Encrypt
			}
		}
		return false
	}
	return s.Encrypt
}

// RootPartition - сырой раздел корня (под LUKS, если шифрование включено)
func RootPartition(s *snapshot.Snapshot) string {
	return PartitionPath(s.Device, LayoutOf(s).Root)
}

// RootDevice - устройство, которое монтируется в /mnt
func RootDevice(s *snapshot.Snapshot) string {
	if RootEncrypted(s) {
		return CryptRootDevice
	}
	return RootPartition(s)
}

// ESPPartition возвращает путь к ESP или пустую строку
func ESPPartition(s *snapshot.Snapshot) string {
	if n := LayoutOf(s).ESP; n > 0 {
		return PartitionPath(s.Device, n)
	}
	return ""
}

// SwapPartition возвращает путь к разделу подкачки или пустую строку
func SwapPartition(s *snapshot.Snapshot) string {
	if n := LayoutOf(s).Swap; n > 0 {
		return PartitionPath(s.Device, n)
	}
	return ""
}

// mappingName - имя dm-crypt для зашифрованного раздела ручной разметки
func mappingName(p snapshot.PartitionSpec, n int) string {
	if p.Role == snapshot.RoleRoot {
		return CryptRootName
	}
	return fmt.Sprintf("crypt%d", n)
}

// ManualMapping возвращает путь, под которым раздел n ручной разметки
// виден после открытия LUKS, или сам раздел
func ManualMapping(s *snapshot.Snapshot, n int) string {
	p := s.Partitions[n-1]
	if p.Encrypt {
		return "/dev/mapper/" + mappingName(p, n)
	}
	return PartitionPath(s.Device, n)
}

// EncryptedVolume - зашифрованный раздел, кроме корня
type EncryptedVolume struct {
	Name      string
	Partition string
}

// ExtraEncryptedVolumes перечисляет зашифрованные разделы ручной разметки,
// которые не являются корнем (для /etc/crypttab)
func ExtraEncryptedVolumes(s *snapshot.Snapshot) []EncryptedVolume {
	if !s.Manual {
		return nil
	}
	var out []EncryptedVolume
	for i, p := range s.Partitions {
		n := i + 1
		if p.Encrypt && p.Role != snapshot.RoleRoot {
			out = append(out, EncryptedVolume{
				Name:      mappingName(p, n),
				Partition: PartitionPath(s.Device, n),
			})
		}
	}
	return out
}
