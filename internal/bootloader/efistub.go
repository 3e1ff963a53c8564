package bootloader

import (
	"archweaver/internal/plan"
	"archweaver/internal/snapshot"
)

type efistubStrategy struct{}

func (efistubStrategy) Name() string { return "efistub" }

// Plan - EFISTUB пока не реализован. Шаг-маркер виден в плане, чтобы
// отсутствие загрузчика не прошло незамеченным.
func (efistubStrategy) Plan(s *snapshot.Snapshot) []plan.Step {
	return []plan.Step{
		plan.HostStep(
			"EFISTUB boot loader (not implemented)",
			"echo 'TODO: EFISTUB boot entry creation is not implemented; create the firmware boot entry for "+
				s.Device+" manually before rebooting' >&2",
		).Tolerant(),
	}
}
