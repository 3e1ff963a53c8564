package plan

import (
	"fmt"
	"strings"
)

// Phase - этап установки. Порядок фаз фиксирован.
type Phase int

const (
	PhasePartition Phase = iota
	PhaseMount
	PhaseBase
	PhaseBootloader
	PhaseFstab
	PhaseSysConfig
	PhaseUsers
)

var phaseNames = [...]string{
	PhasePartition:  "partitioning",
	PhaseMount:      "mounting",
	PhaseBase:       "base system",
	PhaseBootloader: "boot loader",
	PhaseFstab:      "fstab",
	PhaseSysConfig:  "system configuration",
	PhaseUsers:      "user setup",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Plan - упорядоченная последовательность шагов
type Plan struct {
	Steps []Step
}

// Section - непрерывная группа шагов одной фазы
type Section struct {
	Phase Phase
	Start int
	Steps []Step
}

// Append добавляет шаги фазы. Фазы должны идти в неубывающем порядке.
func (p *Plan) Append(phase Phase, steps ...Step) error {
	if n := len(p.Steps); n > 0 && p.Steps[n-1].Phase > phase {
		return fmt.Errorf("phase %s cannot follow phase %s", phase, p.Steps[n-1].Phase)
	}
	for _, s := range steps {
		p.Steps = append(p.Steps, s.InPhase(phase))
	}
	return nil
}

// Sections группирует шаги по фазам для маркеров начала и конца раздела
func (p *Plan) Sections() []Section {
	var sections []Section
	for i, s := range p.Steps {
		if n := len(sections); n > 0 && sections[n-1].Phase == s.Phase {
			sections[n-1].Steps = append(sections[n-1].Steps, s)
			continue
		}
		sections = append(sections, Section{Phase: s.Phase, Start: i, Steps: []Step{s}})
	}
	return sections
}

// Commands возвращает исполняемые строки
func (p *Plan) Commands() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Render()
	}
	return out
}

// Text - представление плана для пробного запуска, без секретов
func (p *Plan) Text() string {
	var b strings.Builder
	for _, sec := range p.Sections() {
		fmt.Fprintf(&b, "# === %s ===\n", sec.Phase)
		for i, s := range sec.Steps {
			if s.Description != "" {
				fmt.Fprintf(&b, "# [%d] %s (%s, %s)\n", sec.Start+i+1, s.Description, s.Context, s.Criticality)
			}
			b.WriteString(s.Display())
			b.WriteString("\n")
		}
	}
	return b.String()
}
