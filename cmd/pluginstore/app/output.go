// Package app renders plugin store results for the terminal.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"pluginstore.shikanime.studio/internal/encoding"
	"pluginstore.shikanime.studio/internal/install"
	"pluginstore.shikanime.studio/internal/store"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

const defaultWidth = 80

// Width returns the column count of f, or 80 when f is not a terminal.
func Width(f *os.File) int {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// WithSpinner shows a spinner on stderr until stop is called. Nothing is
// drawn when stderr is not a terminal.
func WithSpinner(ctx context.Context, desc string) (stop func()) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}
	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = spinner.Finish()
				return
			default:
				_ = spinner.Add(1)
				time.Sleep(100 * time.Millisecond)
			}
		}
	}()
	return func() {
		close(done)
		_ = spinner.Finish()
	}
}

// Truncate shortens s to at most width runes, marking the cut with an ellipsis.
func Truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// PrintPlugins writes one block per plugin of res.
func PrintPlugins(w io.Writer, res *store.SearchResult, width int, now time.Time) {
	if res.Total == 0 {
		fmt.Fprintf(w, "%s No plugins found\n", dim("○"))
		return
	}
	fmt.Fprintf(w, "\nShowing %s of %s plugins\n\n", green(len(res.Items)), green(humanize.Comma(int64(res.Total))))
	for _, r := range res.Items {
		fmt.Fprintf(w, "%s %s %s\n", green("●"), bold(r.FullName), yellow("★ "+humanize.Comma(int64(r.Stars))))
		if r.Description != "" {
			fmt.Fprintf(w, "  %s\n", Truncate(r.Description, width-2))
		}
		if len(r.Tags) > 0 {
			fmt.Fprintf(w, "  %s %s\n", cyan("tags:"), strings.Join(r.Tags, ", "))
		}
		if !r.UpdatedAt.IsZero() {
			fmt.Fprintf(w, "  %s %s\n", cyan("updated:"), dim(humanize.RelTime(r.UpdatedAt, now, "ago", "from now")))
		}
		fmt.Fprintln(w)
	}
	if res.Total > len(res.Items) {
		fmt.Fprintf(w, "%s %d more available, use %s to see all\n",
			dim("..."), res.Total-len(res.Items), cyan(fmt.Sprintf("--limit %d", res.Total)))
	}
}

// PrintReadme writes README lines.
func PrintReadme(w io.Writer, lines []string) {
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// PrintOutline writes headings indented by level.
func PrintOutline(w io.Writer, headings []encoding.Heading) {
	for _, h := range headings {
		indent := strings.Repeat("  ", max(h.Level-1, 0))
		fmt.Fprintf(w, "%s%s %s\n", indent, dim(fmt.Sprintf("%4d", h.Line+1)), h.Text)
	}
}

// PrintSnippet writes an install snippet and where it belongs.
func PrintSnippet(w io.Writer, s install.Snippet) {
	header := fmt.Sprintf("%s (%s)", s.FullName, s.Manager)
	if s.MigratedFrom != "" {
		header += dim(fmt.Sprintf(" migrated from %s", s.MigratedFrom))
	}
	fmt.Fprintf(w, "%s %s\n", green("●"), bold(header))
	if s.TargetPath != "" {
		fmt.Fprintf(w, "  %s %s\n", cyan("target:"), s.TargetPath)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.TrimRight(s.Text, "\n"))
}

// PrintCacheUsage writes the disk usage of each cache class.
func PrintCacheUsage(w io.Writer, dir string, usage []store.CacheUsage) {
	var total int64
	fmt.Fprintf(w, "%s %s\n", cyan("dir:"), dir)
	for _, u := range usage {
		total += u.Bytes
		fmt.Fprintf(w, "  %-8s %s\n", u.Class, humanize.Bytes(uint64(u.Bytes)))
	}
	fmt.Fprintf(w, "  %-8s %s\n", bold("total"), bold(humanize.Bytes(uint64(total))))
}
