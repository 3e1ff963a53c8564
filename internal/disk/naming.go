package disk

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UsesPSuffix сообщает, нужен ли суффикс "p" перед номером раздела.
// Устройства, имя которых оканчивается цифрой (nvme0n1, mmcblk0, loop0),
// нумеруют разделы как p1, p2; остальные (sda, vda) - просто 1, 2.
func UsesPSuffix(device string) bool {
	name := filepath.Base(strings.TrimRight(device, "/"))
	if name == "" {
		return false
	}
	last := name[len(name)-1]
	return last >= '0' && last <= '9'
}

// PartitionPath возвращает путь к разделу с номером n
func PartitionPath(device string, n int) string {
	if UsesPSuffix(device) {
		return fmt.Sprintf("%sp%d", device, n)
	}
	return fmt.Sprintf("%s%d", device, n)
}
