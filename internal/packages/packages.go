// Package packages собирает набор пакетов целевой системы и строит шаги
// зеркал и pacstrap.
package packages

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

const mirrorList = "/etc/pacman.d/mirrorlist"

// Result - итог планирования пакетов
type Result struct {
	// Packages - пакеты, которые войдут в команду установки
	Packages []string
	// Missing - имена, не найденные в базе при проверке
	Missing []string
	Steps   []plan.Step
}

// Plan собирает пакеты и строит шаги установки базовой системы.
// Если q не nil (пробный прогон), каждое имя проверяется по базе pacman,
// а ненайденные исключаются из установки и возвращаются в Missing.
// Если q равен nil, проверка пропускается.
func Plan(ctx context.Context, s *snapshot.Snapshot, q Query) (*Result, error) {
	candidates := Collect(s)
	res := &Result{}

	if q == nil {
		res.Packages = candidates
	} else {
		for _, name := range candidates {
			_, err := q.Lookup(ctx, name)
			switch {
			case err == nil:
				res.Packages = append(res.Packages, name)
			case errors.Is(err, ErrNotFound):
				res.Missing = append(res.Missing, name)
			default:
				return nil, fmt.Errorf("lookup %s: %w", name, err)
			}
		}
	}

	res.Steps = append(res.Steps, MirrorSteps(s)...)
	if len(res.Packages) > 0 {
		res.Steps = append(res.Steps, InstallStep(res.Packages))
	}
	return res, nil
}

// MirrorSteps записывает список зеркал до pacstrap: явные серверы
// пользователя или результат reflector для выбранных регионов
func MirrorSteps(s *snapshot.Snapshot) []plan.Step {
	if len(s.MirrorServers) > 0 {
		lines := make([]string, 0, len(s.MirrorServers))
		for _, srv := range s.MirrorServers {
			lines = append(lines, plan.Quote("Server = "+strings.TrimSpace(srv)))
		}
		return []plan.Step{plan.HostStep(
			"Write custom mirror list",
			"printf '%s\\n' "+strings.Join(lines, " ")+" > "+mirrorList,
		)}
	}
	if len(s.MirrorRegions) > 0 {
		return []plan.Step{plan.HostStep(
			"Rank mirrors for "+strings.Join(s.MirrorRegions, ", "),
			fmt.Sprintf("reflector --country %s --protocol https --latest 20 --sort rate --save %s",
				plan.Quote(strings.Join(s.MirrorRegions, ",")), mirrorList),
		).Tolerant()}
	}
	return nil
}

// InstallStep устанавливает пакеты в /mnt. При ошибке база
// синхронизируется заново и установка повторяется один раз.
func InstallStep(pkgs []string) plan.Step {
	list := strings.Join(pkgs, " ")
	return plan.HostStep(
		fmt.Sprintf("Install %d packages into %s", len(pkgs), plan.ChrootRoot),
		fmt.Sprintf("pacstrap -K %[1]s %[2]s || (pacman -Syy --noconfirm && pacstrap -K %[1]s %[2]s)", plan.ChrootRoot, list),
	)
}
