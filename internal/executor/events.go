package executor

import (
	"fmt"

	"archweaver/internal/plan"
)

// EventKind - вид события выполнения
type EventKind int

const (
	SectionStart EventKind = iota
	SectionDone
	StepStart
	Output
	StepWarning
	StepFailed
	Finished
)

func (k EventKind) String() string {
	switch k {
	case SectionStart:
		return "section-start"
	case SectionDone:
		return "section-done"
	case StepStart:
		return "step"
	case Output:
		return "output"
	case StepWarning:
		return "warning"
	case StepFailed:
		return "failed"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Event - строка прогресса для слоя отображения. События идут от одного
// производителя к одному потребителю через канал.
type Event struct {
	Kind   EventKind
	Phase  plan.Phase
	Index  int
	Total  int
	Text   string
	DryRun bool
}

// String возвращает строку прогресса в читаемом виде
func (e Event) String() string {
	switch e.Kind {
	case SectionStart:
		return fmt.Sprintf("==> %s", e.Phase)
	case SectionDone:
		return fmt.Sprintf("<== %s done", e.Phase)
	case StepStart:
		return fmt.Sprintf("[%d/%d] %s", e.Index+1, e.Total, e.Text)
	case Output:
		return "    " + e.Text
	case StepWarning:
		return fmt.Sprintf("[%d/%d] warning: %s", e.Index+1, e.Total, e.Text)
	case StepFailed:
		return fmt.Sprintf("[%d/%d] failed: %s", e.Index+1, e.Total, e.Text)
	case Finished:
		if e.DryRun {
			return fmt.Sprintf("dry run: %d steps, nothing executed", e.Total)
		}
		return fmt.Sprintf("installation finished: %d steps", e.Total)
	}
	return e.Text
}
