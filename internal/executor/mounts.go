package executor

import (
	"os"
	"sort"
	"strings"
)

// findMountsInPath находит все точки монтирования внутри указанного пути,
// включая сам путь. Самые глубокие идут первыми.
func findMountsInPath(mountsFile, path string) ([]string, error) {
	data, err := os.ReadFile(mountsFile)
	if err != nil {
		return nil, err
	}

	path = strings.TrimRight(path, "/")
	seen := make(map[string]bool)
	var mounts []string
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		mountPoint := unescapeMount(fields[1])
		if mountPoint != path && !strings.HasPrefix(mountPoint, path+"/") {
			continue
		}
		// одна точка может быть смонтирована несколько раз
		if seen[mountPoint] {
			continue
		}
		seen[mountPoint] = true
		mounts = append(mounts, mountPoint)
	}

	sort.SliceStable(mounts, func(i, j int) bool {
		return strings.Count(mounts[i], "/") > strings.Count(mounts[j], "/")
	})
	return mounts, nil
}

// unescapeMount раскрывает восьмеричные escape-последовательности
// из /proc/mounts (\040 - пробел)
func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
