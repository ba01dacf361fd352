package main

import (
	"fmt"
	"io"

	"github.com/Cloudsky01/gh-buildtrigger/internal/console"
	"github.com/Cloudsky01/gh-buildtrigger/internal/orchestrator"
)

func printRunSummary(w io.Writer, result *orchestrator.Result, dryRun bool) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, console.Divider())

	switch {
	case result.BuildTriggered() && dryRun:
		fmt.Fprintln(w, console.WarnStyle.Render(fmt.Sprintf("⚠ Would trigger %s build (dry run)", result.Triggered)))
	case result.BuildTriggered():
		fmt.Fprintln(w, console.SuccessStyle.Render(fmt.Sprintf("✅ Triggered %s build", result.Triggered)))
	default:
		fmt.Fprintln(w, console.SuccessStyle.Render("✅ No build triggered"))
	}

	fmt.Fprintln(w, console.Divider())
	fmt.Fprintln(w)

	for _, d := range result.Decisions {
		label := console.LabelStyle.Render(fmt.Sprintf("%-9s", d.Variant.String()+":"))
		detail := fmt.Sprintf("latest %s, tested %s", d.Latest, d.Tested)
		fmt.Fprintln(w, label+" "+console.InfoStyle.Render(detail)+" "+outcomeLabel(d.Outcome))
	}
	fmt.Fprintln(w)
}

func outcomeLabel(outcome orchestrator.Outcome) string {
	if outcome == orchestrator.OutcomeTrigger {
		return console.HeaderStyle.Render("→ build")
	}
	return console.InfoStyle.Render("→ skip")
}

func printDurationsSummary(w io.Writer, path string, count int) {
	fmt.Fprintln(w, console.LabelStyle.Render("📁 Output file: ")+console.InfoStyle.Render(path))
	fmt.Fprintln(w, console.LabelStyle.Render("📊 Runs:        ")+console.InfoStyle.Render(fmt.Sprintf("%d", count)))
}
