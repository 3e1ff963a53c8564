package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"archweaver/internal/executor"
	"archweaver/internal/plan"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

func printSection(title string) {
	fmt.Println()
	_, _ = headerColor.Printf("▸ %s\n", title)
}

func printSuccess(msg string) {
	_, _ = successColor.Printf("✓ %s\n", msg)
}

func printWarning(msg string) {
	_, _ = warningColor.Printf("⚠ %s\n", msg)
}

func printError(msg string) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ %s\n", msg)
}

func printLabelValue(label, value string) {
	_, _ = labelColor.Printf("  %s: ", label)
	fmt.Println(value)
}

// printPlan выводит план по фазам; секреты уже скрыты
func printPlan(p *plan.Plan) {
	total := len(p.Steps)
	for _, sec := range p.Sections() {
		printSection(sec.Phase.String())
		for i, step := range sec.Steps {
			_, _ = labelColor.Printf("  [%d/%d] %s", sec.Start+i+1, total, step.Description)
			_, _ = dimColor.Printf(" (%s, %s)\n", step.Context, step.Criticality)
			fmt.Printf("    %s\n", step.Display())
		}
	}
}

// printEvents читает события исполнителя до закрытия канала
func printEvents(events <-chan executor.Event) {
	for ev := range events {
		switch ev.Kind {
		case executor.SectionStart:
			printSection(ev.Phase.String())
		case executor.SectionDone:
			printSuccess(ev.String())
		case executor.StepWarning:
			printWarning(ev.String())
		case executor.StepFailed:
			printError(ev.String())
		case executor.Finished:
			fmt.Println()
			printSuccess(ev.String())
		case executor.Output:
			_, _ = dimColor.Println(ev.String())
		default:
			fmt.Println(ev.String())
		}
	}
}
