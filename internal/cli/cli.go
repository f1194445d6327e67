// Package cli renders routepack operations for direct command-line use,
// bypassing the MCP server entirely. The heavy lifting lives in the library
// packages; this is presentation only.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/routepack/routepack/internal/app"
	"github.com/routepack/routepack/internal/bundlestore"
	"github.com/routepack/routepack/internal/extract"
)

// OutputFormat controls how results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("ok")
	failMark = color.New(color.FgRed).Sprint("FAILED")
)

// Runner renders pipeline results to an output stream.
type Runner struct {
	app    *app.App
	out    io.Writer
	output OutputFormat
}

// NewRunner creates a Runner over a wired pipeline.
func NewRunner(a *app.App, output OutputFormat) *Runner {
	return &Runner{app: a, out: os.Stdout, output: output}
}

// Extract extracts every pattern and renders the batch result. A non-zero
// failure count is reported through the returned error so the process exits
// non-zero.
func (r *Runner) Extract(patterns []string, opts extract.Options) error {
	batch, err := r.app.Extractor.ExtractRoutes(patterns, opts)
	if err != nil {
		return err
	}

	if r.output == OutputJSON {
		if err := writeJSON(r.out, batch); err != nil {
			return err
		}
	} else {
		for _, res := range batch.Results {
			if res.Success {
				fmt.Fprintf(r.out, "%s  %s -> %s (%d files, %s)\n",
					okMark, res.Pattern, res.BundlePath, res.FileCount, humanize.Bytes(uint64(res.TotalSize)))
			} else {
				fmt.Fprintf(r.out, "%s  %s: %s\n", failMark, res.Pattern, res.Error)
			}
		}
		fmt.Fprintf(r.out, "\n%d succeeded, %d failed, %s total\n",
			batch.SuccessCount, batch.FailureCount, humanize.Bytes(uint64(batch.TotalSize)))
	}

	if batch.FailureCount > 0 {
		return fmt.Errorf("%d of %d extractions failed", batch.FailureCount, len(batch.Results))
	}
	return nil
}

// Routes lists routes matching the pattern (all routes when empty).
func (r *Runner) Routes(pattern string) error {
	matches, err := r.app.Routes.Search(pattern)
	if err != nil {
		return err
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, matches)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tCONTROLLER#ACTION\tNAME")
	for _, route := range matches {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", route.Method, route.Path, route.Pattern(), route.Name)
	}
	return w.Flush()
}

// Bundles lists the store contents and aggregate statistics.
func (r *Runner) Bundles() error {
	bundles, err := r.app.Store.List()
	if err != nil {
		return err
	}
	stats, err := r.app.Store.Statistics()
	if err != nil {
		return err
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, struct {
			Statistics bundlestore.Stats        `json:"statistics"`
			Bundles    []bundlestore.BundleInfo `json:"bundles"`
		}{stats, bundles})
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BUNDLE\tROUTE\tFILES\tSIZE\tCREATED\tSTATUS")
	for _, b := range bundles {
		created := ""
		if b.HasCreated {
			created = b.CreatedAt.Format(time.DateTime)
		}
		status := okMark
		if !b.Valid {
			status = color.New(color.FgRed).Sprintf("invalid: %s", b.Error)
		} else if b.Archived {
			status = "archived"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
			b.Name, b.Route, b.FileCount, humanize.Bytes(uint64(b.SizeBytes)), created, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "\n%d bundle(s), %s", stats.Count, stats.TotalSize)
	if !stats.Oldest.IsZero() {
		fmt.Fprintf(r.out, ", oldest %s, newest %s",
			stats.Oldest.Format(time.DateTime), stats.Newest.Format(time.DateTime))
	}
	fmt.Fprintln(r.out)
	return nil
}

// Cleanup applies the policy, prompting on the terminal unless forced.
func (r *Runner) Cleanup(policy bundlestore.CleanupPolicy) error {
	if !policy.Force && policy.Confirm == nil {
		policy.Confirm = promptYesNo
	}

	result, err := r.app.Store.Cleanup(policy)
	if err != nil {
		return err
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, result)
	}

	for _, name := range result.Removed {
		fmt.Fprintf(r.out, "removed %s\n", name)
	}
	for _, name := range result.Failed {
		fmt.Fprintf(r.out, "%s to remove %s\n", failMark, name)
	}
	fmt.Fprintf(r.out, "%d bundle(s) removed, %s freed\n", result.RemovedCount, result.SpaceFreed)
	return nil
}

func promptYesNo(prompt string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	var answer string
	if _, err := fmt.Scanln(&answer); err != nil {
		return false
	}
	return answer == "y" || answer == "Y" || answer == "yes"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
