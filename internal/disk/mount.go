package disk

import (
	"path"
	"sort"
	"strings"

	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

// PlanMounts строит шаги монтирования. Корень монтируется раньше любого
// пути под ним.
func PlanMounts(s *snapshot.Snapshot) []plan.Step {
	if s.Manual {
		return manualMounts(s)
	}

	steps := []plan.Step{
		plan.HostStep("Create mount point "+plan.ChrootRoot, "mkdir -p "+plan.ChrootRoot),
		mount(RootDevice(s), plan.ChrootRoot, ""),
	}
	if s.UEFI {
		if esp := ESPPartition(s); esp != "" {
			steps = append(steps, loadFatModules())
			steps = append(steps, mountUnder(esp, "/boot", "")...)
		}
	}
	if swap := SwapPartition(s); swap != "" {
		steps = append(steps, swapon(swap))
	}
	return steps
}

// manualMounts монтирует корень, затем остальные разделы по глубине пути
func manualMounts(s *snapshot.Snapshot) []plan.Step {
	type target struct {
		device     string
		mountpoint string
		options    string
		fat        bool
	}

	var root *target
	var others []target
	var swaps []string
	for i, p := range s.Partitions {
		n := i + 1
		device := ManualMapping(s, n)
		switch {
		case p.Role == snapshot.RoleRoot:
			root = &target{device: device, mountpoint: "/", options: p.MountOptions}
		case p.Role == snapshot.RoleSwap || partedFsType(p.Filesystem) == "linux-swap":
			swaps = append(swaps, device)
		case p.Mountpoint != "" && p.Mountpoint != "/":
			others = append(others, target{
				device:     device,
				mountpoint: path.Clean("/" + p.Mountpoint),
				options:    p.MountOptions,
				fat:        partedFsType(p.Filesystem) == "fat32",
			})
		}
	}

	steps := []plan.Step{plan.HostStep("Create mount point "+plan.ChrootRoot, "mkdir -p "+plan.ChrootRoot)}
	if root != nil {
		steps = append(steps, mount(root.device, plan.ChrootRoot, root.options))
	}

	sort.SliceStable(others, func(i, j int) bool {
		return depth(others[i].mountpoint) < depth(others[j].mountpoint)
	})
	fatLoaded := false
	for _, t := range others {
		if t.fat && !fatLoaded {
			steps = append(steps, loadFatModules())
			fatLoaded = true
		}
		steps = append(steps, mountUnder(t.device, t.mountpoint, t.options)...)
	}
	for _, swap := range swaps {
		steps = append(steps, swapon(swap))
	}
	return steps
}

func mount(device, target, options string) plan.Step {
	cmd := "mount "
	if options != "" {
		cmd += "-o " + options + " "
	}
	return plan.HostStep("Mount "+device+" at "+target, cmd+device+" "+target)
}

func mountUnder(device, mountpoint, options string) []plan.Step {
	target := plan.ChrootRoot + mountpoint
	return []plan.Step{
		plan.HostStep("Create mount point "+target, "mkdir -p "+target),
		mount(device, target, options),
	}
}

// loadFatModules подгружает vfat заранее: на некоторых live-образах
// модуль не загружается автоматически при mount
func loadFatModules() plan.Step {
	return plan.HostStep("Load FAT kernel modules", "modprobe vfat || modprobe fat").Tolerant()
}

func swapon(device string) plan.Step {
	return plan.HostStep("Activate swap on "+device, "swapon "+device)
}

func depth(p string) int {
	return strings.Count(strings.Trim(p, "/"), "/")
}
