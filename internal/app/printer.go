package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/execution"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/service"
	"github.com/felixgeelhaar/nodeexpoctor/internal/domain/step"
	"github.com/felixgeelhaar/nodeexpoctor/internal/provider/versionutil"
)

// Printer renders reports for a terminal.
type Printer struct {
	out     io.Writer
	verbose bool
	title   cases.Caser

	ok   *color.Color
	warn *color.Color
	bad  *color.Color
	dim  *color.Color
	bold *color.Color
}

// NewPrinter creates a Printer. Colour follows the terminal unless
// disabled with WithColor.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:   out,
		title: cases.Title(language.English),
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed, color.Bold),
		dim:   color.New(color.Faint),
		bold:  color.New(color.Bold),
	}
}

// WithColor forces colour on or off.
func (p *Printer) WithColor(enabled bool) *Printer {
	cp := *p
	cp.ok, cp.warn, cp.bad, cp.dim, cp.bold = clone(p.ok), clone(p.warn), clone(p.bad), clone(p.dim), clone(p.bold)
	for _, c := range []*color.Color{cp.ok, cp.warn, cp.bad, cp.dim, cp.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return &cp
}

// WithVerbose shows full error details.
func (p *Printer) WithVerbose(verbose bool) *Printer {
	cp := *p
	cp.verbose = verbose
	return &cp
}

func clone(c *color.Color) *color.Color {
	cp := *c
	return &cp
}

// PrintPlan outputs a human-readable plan.
func (p *Printer) PrintPlan(plan *execution.Plan, version string) {
	summary := plan.Summary()

	p.header(fmt.Sprintf("Install plan for node_exporter %s", version))

	if plan.UpToDate() {
		p.printf("Nothing to do. node_exporter %s is installed and running.\n", version)
		return
	}

	for _, entry := range plan.Entries() {
		id := entry.Step().ID().String()
		switch entry.Status() {
		case step.StatusSatisfied:
			p.printf("  %s %-22s %s\n", p.ok.Sprint("✓"), id, p.dim.Sprint("up to date"))
		case step.StatusNeedsApply:
			p.printf("  %s %-22s %s\n", p.warn.Sprint("+"), id, entry.Diff().Summary())
			if detail := entry.Diff().Detail(); detail != "" {
				p.printIndented(detail, "      ")
			}
		default:
			p.printf("  %s %-22s %s\n", p.bad.Sprint("?"), id, p.errorText(entry.Error()))
		}
		if p.verbose {
			if exp := entry.Explanation(); !exp.IsEmpty() {
				p.printf("      %s\n", p.dim.Sprint(exp.String()))
			}
		}
	}

	p.printf("\n%d to apply, %d up to date", summary.NeedsApply, summary.Satisfied)
	if summary.Unknown > 0 {
		p.printf(", %d unknown", summary.Unknown)
	}
	p.printf("\nRun 'nodeexpoctor install' to apply.\n")
}

// PrintResult outputs the step results of an install or removal.
func (p *Printer) PrintResult(operation string, r execution.ExecuteResult) {
	heading := p.title.String(operation)
	if r.DryRun {
		heading += " (dry run)"
	}
	p.header(heading)

	for _, res := range r.Results {
		id := res.StepID().String()
		switch {
		case res.Failed():
			p.printf("  %s %-22s %s\n", p.bad.Sprint("✗"), id, p.bad.Sprint(p.title.String(res.Kind().Label())))
			p.printErr(res.Error())
		case res.Skipped():
			p.printf("  %s %-22s %s\n", p.dim.Sprint("-"), id, p.dim.Sprint("skipped: "+res.Reason()))
		case res.Status().NeedsAction():
			p.printf("  %s %-22s %s\n", p.warn.Sprint("+"), id, res.Diff().Summary())
			if detail := res.Diff().Detail(); detail != "" && p.verbose {
				p.printIndented(detail, "      ")
			}
		case res.Changed():
			p.printf("  %s %-22s %s\n", p.ok.Sprint("✓"), id, "done")
		default:
			label := "unchanged"
			if c := res.Condition(); c != step.KindNone {
				label = c.Label()
			}
			p.printf("  %s %-22s %s\n", p.ok.Sprint("✓"), id, p.dim.Sprint(label))
		}
	}

	s := r.Summary()
	p.printf("\n%d changed, %d unchanged, %d failed, %d skipped\n", s.Changed, s.Unchanged, s.Failed, s.Skipped)
	switch {
	case r.Interrupted:
		p.printf("%s\n", p.bad.Sprint("Interrupted: remaining steps were not run."))
	case r.Aborted:
		p.printf("%s\n", p.bad.Sprintf("Aborted after %s failed.", r.AbortedBy))
	}
}

// PrintInstall outputs an install report, including any cleanup.
func (p *Printer) PrintInstall(r InstallReport) {
	p.PrintResult(OperationInstall, r.Result)
	if r.Removal != nil {
		p.printf("\n%s\n", p.warn.Sprint("Install failed; removing what was installed."))
		p.PrintResult(OperationRemove, *r.Removal)
	}
	if r.MetricsPath != "" && p.verbose {
		p.printf("\nRun metrics written to %s\n", r.MetricsPath)
	}
}

// PrintStatus outputs a status report.
func (p *Printer) PrintStatus(r StatusReport) {
	p.header("Status of " + r.Unit)

	var verdict string
	switch r.Verdict {
	case VerdictActive:
		verdict = p.ok.Sprint("Active")
	case VerdictRestarted:
		verdict = p.warn.Sprint("Restarted")
		if prev := previousLifecycle(r.Transitions); prev != "" {
			verdict += " (it was " + string(prev) + ")"
		}
	case VerdictFailed:
		verdict = p.bad.Sprint("Failed")
	case VerdictNotFound:
		verdict = p.warn.Sprint("Not installed")
	default:
		verdict = string(r.Verdict)
	}
	p.printf("  %-10s %s\n", "Verdict:", verdict)
	if r.State.Loaded() {
		p.printf("  %-10s %s (%s), %s\n", "Unit:", r.State.ActiveState, r.State.SubState, r.State.UnitFileState)
	}
	for _, err := range r.Errors {
		p.printf("  %s %s\n", p.warn.Sprint("!"), p.errorText(err))
	}

	if r.Verdict == VerdictNotFound {
		p.printf("\nRun 'nodeexpoctor install' to install it.\n")
		return
	}

	p.printf("\nJournal, last %s:\n", r.Window)
	switch {
	case r.LogsErr != nil:
		p.printf("  %s\n", p.warn.Sprint("could not read the journal: "+p.errorText(r.LogsErr)))
	case strings.TrimSpace(r.Logs) == "":
		p.printf("  %s\n", p.dim.Sprint("(no entries)"))
	default:
		p.printIndented(r.Logs, "  ")
	}
}

// PrintVersion outputs a version report.
func (p *Printer) PrintVersion(r VersionReport) {
	p.header("nodeexpoctor " + r.Build.Version)
	if r.Build.Commit != "" {
		p.printf("  %-20s %s (%s)\n", "Build:", r.Build.Commit, r.Build.Date)
	}
	p.printf("  %-20s %s\n", "Pinned exporter:", r.Pinned)

	installed := r.Installed
	if installed == "" {
		installed = "-"
	}
	var verdict string
	switch r.Verdict {
	case versionutil.UpToDate:
		verdict = p.ok.Sprint("up to date")
	case versionutil.Outdated:
		verdict = p.warn.Sprint("outdated, run 'nodeexpoctor install' to upgrade")
	case versionutil.Newer:
		verdict = p.warn.Sprint("newer than pinned")
	case versionutil.NotInstalled:
		verdict = p.dim.Sprint("not installed")
	default:
		verdict = p.dim.Sprint(string(r.Verdict))
	}
	p.printf("  %-20s %s (%s)\n", "Installed exporter:", installed, verdict)

	if r.OS.PrettyName != "" {
		p.printf("  %-20s %s\n", "OS:", r.OS.PrettyName)
	}
	if r.Machine != "" {
		machine := r.Machine
		if r.ArchMismatch {
			machine += " " + p.bad.Sprintf("(release arch %s does not match)", r.Arch)
		}
		p.printf("  %-20s %s\n", "Machine:", machine)
	}
	for _, err := range r.Errors {
		p.printf("  %s %s\n", p.warn.Sprint("!"), p.errorText(err))
	}
}

// PrintEdit outputs the result of an editor session.
func (p *Printer) PrintEdit(r EditReport) {
	if r.Invalid != nil {
		p.printf("%s %s\n", p.warn.Sprint("!"), p.errorText(r.Invalid))
		p.printf("node_exporter will refuse to start with this file. Run 'nodeexpoctor edit-config' to fix it.\n")
		return
	}
	p.printf("%s %s saved. Run 'nodeexpoctor status' to restart and check the exporter.\n", p.ok.Sprint("✓"), r.Path)
}

// PrintError outputs a failure with its suggestion.
func (p *Printer) PrintError(err error) {
	p.printf("%s %s\n", p.bad.Sprint("Error:"), p.errorText(err))
	var se *step.StepError
	if errors.As(err, &se) && se.Suggestion != "" {
		p.printf("\nSuggestion: %s\n", se.Suggestion)
	}
}

func (p *Printer) printErr(err error) {
	if err == nil {
		return
	}
	var se *step.StepError
	if !errors.As(err, &se) {
		p.printf("      %s\n", err)
		return
	}
	if p.verbose {
		p.printIndented(se.Format(), "      ")
		return
	}
	p.printf("      %s\n", se.Error())
	if se.Suggestion != "" {
		p.printf("      %s\n", p.dim.Sprint(se.Suggestion))
	}
}

// previousLifecycle is the state the unit left on its last transition.
func previousLifecycle(history []service.Transition) service.State {
	if len(history) < 2 {
		return ""
	}
	return history[len(history)-2].To
}

func (p *Printer) errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (p *Printer) header(title string) {
	p.printf("\n%s\n%s\n", p.bold.Sprint(title), strings.Repeat("=", len([]rune(title))))
}

func (p *Printer) printIndented(text, indent string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		p.printf("%s%s\n", indent, line)
	}
}

// printf writes to the output, ignoring errors.
func (p *Printer) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}
