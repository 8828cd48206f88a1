package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"easyapply-engine/internal/browser"
	"easyapply-engine/internal/browser/htmldriver"
	"easyapply-engine/internal/form"
	"easyapply-engine/internal/modal"
)

var inspectJobs int

var inspectCmd = &cobra.Command{
	Use:   "inspect <snapshot.html>...",
	Short: "Classify the required fields in saved Easy Apply pages",
	Long: `Loads HTML snapshots (for example debug_page.html) offline and prints the
required fields the classifier finds in each: kind, label, fill state,
constraint hint and options. No browser and no network are used.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectJobs, "jobs", "j", 4, "snapshots classified in parallel")
}

type snapshotReport struct {
	path   string
	fields []form.FieldDescriptor
}

func runInspect(cmd *cobra.Command, args []string) error {
	reports := make([]snapshotReport, len(args))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(inspectJobs, 1))
	for i, path := range args {
		g.Go(func() error {
			fields, err := inspectSnapshot(ctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = snapshotReport{path: path, fields: fields}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := table(cmd.OutOrStdout())
	for _, r := range reports {
		fmt.Fprintf(w, "== %s (%d required)\n", filepath.Base(r.path), len(r.fields))
		fmt.Fprintln(w, "ID\tKIND\tLABEL\tFILLED\tHINT\tOPTIONS")
		for _, f := range r.fields {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n", f.ID, f.Kind, f.Label, f.Filled, f.ConstraintHint, strings.Join(f.Options, " | "))
		}
	}
	return w.Flush()
}

// inspectSnapshot classifies one page on its own driver; drivers are never
// shared between goroutines.
func inspectSnapshot(ctx context.Context, path string) ([]form.FieldDescriptor, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := htmldriver.FromHTML(string(b))
	if err != nil {
		return nil, err
	}
	c := form.NewClassifier(d, logger)
	c.ProbeDelay = 0

	// a page without the dialog is inspected as a whole
	root, err := d.FindOne(ctx, nil, browser.CSS(modal.ModalSelector))
	if err != nil {
		root = nil
	}
	return c.Discover(ctx, root)
}
