// Package installer собирает шаги всех планировщиков в один план
// в фиксированном порядке фаз.
package installer

import (
	"context"
	"fmt"
	"path"
	"strings"

	"archweaver/internal/bootloader"
	"archweaver/internal/disk"
	"archweaver/internal/packages"
	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
	"archweaver/internal/sysconfig"
	"archweaver/internal/users"
	"archweaver/internal/verify"
)

// Options управляет компиляцией
type Options struct {
	// DryRun включает проверку пакетов по базе pacman
	DryRun bool
	// Query - источник сведений о пакетах; при DryRun и nil используется pacman
	Query packages.Query
}

// Compiled - результат компиляции
type Compiled struct {
	Plan     *plan.Plan
	Packages []string
	Missing  []string
}

// Preflight возвращает сообщения для пользователя о снимке, который нельзя
// компилировать. Пустой результат означает, что компиляция возможна.
func Preflight(s *snapshot.Snapshot) []string {
	var problems []string
	if strings.TrimSpace(s.Device) == "" {
		problems = append(problems, "no target disk selected")
	}
	if !s.UEFI && bootloader.RequiresUEFI(s.Bootloader) {
		problems = append(problems, fmt.Sprintf("%s requires UEFI firmware; this machine booted in BIOS mode, choose grub", s.Bootloader))
	}
	if s.Manual {
		if disk.LayoutOf(s).Root == 0 {
			problems = append(problems, "manual layout has no root partition")
		}
		if esp := disk.LayoutOf(s).ESP; s.UEFI && esp == 0 {
			problems = append(problems, "manual layout has no EFI system partition")
		} else if s.UEFI {
			// загрузчики и проверка монтирования ждут ESP в /boot
			if mp := s.Partitions[esp-1].Mountpoint; path.Clean("/"+mp) != espMountpoint {
				problems = append(problems, fmt.Sprintf("EFI system partition must be mounted at %s, not %q", espMountpoint, mp))
			}
		}
	}
	if disk.RootEncrypted(s) && s.EncryptPassword == "" {
		problems = append(problems, "disk encryption is enabled but no passphrase was entered")
	}
	return problems
}

const espMountpoint = "/boot"

type phase struct {
	phase plan.Phase
	steps []plan.Step
}

// Compile строит план установки: разметка, монтирование, базовая система,
// загрузчик, fstab, настройка системы, пользователи. Для одинаковых
// снимков результат одинаков.
func Compile(ctx context.Context, s *snapshot.Snapshot, opts Options) (*Compiled, error) {
	if problems := Preflight(s); len(problems) > 0 {
		return nil, fmt.Errorf("snapshot is not installable: %s", strings.Join(problems, "; "))
	}

	q := opts.Query
	if opts.DryRun && q == nil {
		q = packages.NewPacmanQuery()
	}
	if !opts.DryRun {
		q = nil
	}
	pkgs, err := packages.Plan(ctx, s, q)
	if err != nil {
		return nil, fmt.Errorf("package set: %w", err)
	}

	phases := []phase{
		{plan.PhasePartition, disk.PlanPartitions(s)},
		{plan.PhaseMount, disk.PlanMounts(s)},
		{plan.PhaseBase, pkgs.Steps},
		{plan.PhaseBootloader, bootloader.Plan(s)},
		{plan.PhaseFstab, verify.Plan(s)},
		{plan.PhaseSysConfig, sysconfig.Plan(s)},
		{plan.PhaseUsers, users.Plan(s)},
	}

	p := &plan.Plan{}
	for _, ph := range phases {
		if err := p.Append(ph.phase, ph.steps...); err != nil {
			return nil, err
		}
	}
	return &Compiled{Plan: p, Packages: pkgs.Packages, Missing: pkgs.Missing}, nil
}
