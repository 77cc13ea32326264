package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wippyai/ctoreval/preexec"
	"github.com/wippyai/ctoreval/verify"
)

var numbers = message.NewPrinter(language.English)

type styles struct {
	title    lipgloss.Style
	folded   lipgloss.Style
	deferred lipgloss.Style
	symbol   lipgloss.Style
	dim      lipgloss.Style
}

// newStyles returns colored styles for a terminal and plain ones otherwise.
func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain}
	}
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		folded:   lipgloss.NewStyle().Foreground(lipgloss.Color("#90EE90")),
		deferred: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		symbol:   lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
		dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
}

func symbols(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "@" + n
	}
	return strings.Join(out, ", ")
}

func outcomeLabel(d preexec.Diagnostic, st styles) string {
	if d.Outcome == preexec.Folded {
		return st.folded.Render("folded")
	}
	return st.deferred.Render("deferred: " + d.Reason.String())
}

func renderReport(w io.Writer, r *preexec.Report, st styles) {
	fmt.Fprintf(w, "%s %s\n\n", st.title.Render("ctoreval"), r.Program)
	if len(r.Diagnostics) == 0 {
		fmt.Fprintln(w, "No constructors.")
		return
	}

	var steps, stores uint64
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "  %s %s %s\n",
			st.symbol.Render("@"+d.Constructor),
			st.dim.Render(fmt.Sprintf("[%d]", d.Priority)),
			outcomeLabel(d, st))
		if len(d.Modified) > 0 {
			fmt.Fprintf(w, "      writes %s\n", symbols(d.Modified))
		}
		if len(d.Synthesized) > 0 {
			fmt.Fprintf(w, "      adds   %s\n", symbols(d.Synthesized))
		}
		if d.Err != nil {
			fmt.Fprintf(w, "      %s\n", st.dim.Render(d.Err.Error()))
		}
		steps += uint64(d.Steps)
		stores += d.Stores
	}

	fmt.Fprintf(w, "\n%s folded, %s deferred, %s steps, %s stores\n",
		numbers.Sprintf("%d", r.Folded()),
		numbers.Sprintf("%d", r.Deferred()),
		numbers.Sprintf("%d", steps),
		numbers.Sprintf("%d", stores))
}

func renderVerify(w io.Writer, res *verify.Result, st styles) {
	fmt.Fprintln(w)
	if len(res.Mismatches) == 0 {
		fmt.Fprintf(w, "%s %s globals match their image (%s bytes)\n",
			st.folded.Render("verified"),
			numbers.Sprintf("%d", res.Checked),
			numbers.Sprintf("%d", res.Bytes))
		return
	}
	for _, m := range res.Mismatches {
		fmt.Fprintf(w, "  %s %s\n", st.deferred.Render("mismatch"), st.symbol.Render("@"+m.Global.Name))
		fmt.Fprintf(w, "      %s\n", st.dim.Render(m.Err.Error()))
	}
}
