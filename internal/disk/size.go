package disk

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

const (
	KiB uint64 = 1024
	MiB        = 1024 * KiB
	GiB        = 1024 * MiB
	TiB        = 1024 * GiB
)

// FormatSize переводит байты в строку единиц parted ("513MiB").
// Значения, не кратные MiB, остаются в байтах ("1536B").
func FormatSize(bytes uint64) string {
	if bytes%MiB == 0 {
		return fmt.Sprintf("%dMiB", bytes/MiB)
	}
	return fmt.Sprintf("%dB", bytes)
}

// ParseSize преобразует строку размера (например, "512MiB", "4G") в байты
func ParseSize(size string) (uint64, error) {
	s := strings.ToUpper(strings.TrimSpace(size))
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	multiplier := uint64(1)
	suffixes := []struct {
		suffix string
		mult   uint64
	}{
		{"TIB", TiB}, {"TB", TiB}, {"T", TiB},
		{"GIB", GiB}, {"GB", GiB}, {"G", GiB},
		{"MIB", MiB}, {"MB", MiB}, {"M", MiB},
		{"KIB", KiB}, {"KB", KiB}, {"K", KiB},
		{"B", 1},
	}
	for _, sfx := range suffixes {
		if strings.HasSuffix(s, sfx.suffix) {
			multiplier = sfx.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, sfx.suffix))
			break
		}
	}

	value, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", size, err)
	}
	if value == 0 {
		return 0, fmt.Errorf("invalid size %q: must be positive", size)
	}
	hi, bytes := bits.Mul64(value, multiplier)
	if hi != 0 {
		return 0, fmt.Errorf("invalid size %q: too large", size)
	}
	return bytes, nil
}

// ParseSizeToMiB - то же, что ParseSize, но в MiB с округлением вверх
func ParseSizeToMiB(size string) (uint64, error) {
	bytes, err := ParseSize(size)
	if err != nil {
		return 0, err
	}
	mib := bytes / MiB
	if bytes%MiB != 0 {
		mib++
	}
	return mib, nil
}
