package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crmextract/internal/dispatch"
	"crmextract/internal/export"
	"crmextract/internal/extracthtml"
	"crmextract/internal/notify"
	"crmextract/internal/records"
)

func newExtractCommand(a *app) *cobra.Command {
	var file, pageURL string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run one extraction trigger against a saved page snapshot",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ex, err := a.extractor()
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			a.startMetrics(ctx)

			notifier := notify.New(notify.LogHost{}, notify.WithDismissAfter(a.cfg.Notify.DismissAfter))
			defer notifier.Close()

			src := dispatch.SnapshotSource{Input: a.pageInput(file, pageURL)}
			resp := dispatch.New(src, ex, store, notifier).Handle(ctx, dispatch.Request{Action: dispatch.ActionExtract})
			if err := a.printJSON(resp); err != nil {
				return err
			}
			if resp.Status != dispatch.StatusSuccess {
				return errors.New(resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file (default: stdin)")
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL (default: discovered from the snapshot)")
	return cmd
}

func newDirCommand(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "dir <path>",
		Short: "Extract every snapshot in a directory and store the results",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ex, err := a.extractor()
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			a.startMetrics(ctx)

			total := 0
			n, err := ex.ExtractDir(ctx, args[0], func(r extracthtml.DirResult) error {
				res := r.Result
				fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%d\n", r.File, orNone(string(res.ObjectType)), res.Mode, len(res.Records))
				if dryRun || len(res.Records) == 0 {
					return nil
				}
				up, err := store.UpsertBatch(ctx, res.ObjectType, res.Records)
				if err != nil {
					return errors.Wrapf(err, "store %s", r.File)
				}
				total += up.Processed
				return nil
			})
			if err != nil {
				return err
			}
			zap.S().Infof("processed %d snapshots, stored %d records", n, total)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract and report without storing")
	return cmd
}

func newRecordsCommand(a *app) *cobra.Command {
	var typ, q string
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Print stored records as JSON",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			snap, err := store.Load(ctx)
			if err != nil {
				return err
			}
			if typ == "" {
				return a.printJSON(snap.Map(func(_ records.ObjectType, recs []records.Record) []records.Record {
					return export.Search(recs, q)
				}))
			}
			ot, err := records.ParseObjectType(typ)
			if err != nil {
				return usageError{err}
			}
			return a.printJSON(export.Search(snap.Records(ot), q))
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "object type (leads, contacts, accounts, opportunities, tasks)")
	cmd.Flags().StringVarP(&q, "q", "q", "", "case-insensitive search term")
	return cmd
}

// storeStatus is what "status" prints. Times are omitted when unknown.
type storeStatus struct {
	Key       string         `json:"key"`
	Counts    map[string]int `json:"counts"`
	Total     int            `json:"total"`
	LastSync  *time.Time     `json:"lastSync,omitempty"`
	LastWrite *time.Time     `json:"lastWrite,omitempty"`
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print per-type record counts and when the store was last written",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			snap, err := store.Load(ctx)
			if err != nil {
				return err
			}
			st := storeStatus{Key: store.Key(), Counts: make(map[string]int), Total: snap.Total()}
			for _, ot := range records.ObjectTypes {
				st.Counts[string(ot)] = len(snap.Records(ot))
			}
			if snap.LastSync > 0 {
				ts := time.UnixMilli(snap.LastSync).UTC()
				st.LastSync = &ts
			}
			ts, ok, err := store.LastWrite(ctx)
			if err != nil {
				return err
			}
			if ok {
				st.LastWrite = &ts
			}
			return a.printJSON(st)
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete one stored record by id",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ot, err := records.ParseObjectType(args[0])
			if err != nil {
				return usageError{err}
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			removed, err := store.Delete(ctx, ot, args[1])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(a.stdout, "no %s record with id %s\n", ot, args[1])
				return nil
			}
			fmt.Fprintf(a.stdout, "deleted %s %s\n", ot, args[1])
			return nil
		},
	}
}

func newClearCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored record",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if err := store.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "cleared")
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <json|csv|doc|print|md>",
		Short: "Export stored records",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(args[0])
			if err != nil {
				return usageError{err}
			}
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			snap, err := store.Load(ctx)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.Write(&buf, snap, f); err != nil {
				return err
			}
			if out == "" {
				_, err := a.stdout.Write(buf.Bytes())
				return err
			}
			if out == "." {
				out = export.FileName(f, time.Now())
			}
			if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
				return errors.Wrapf(err, "write %s", out)
			}
			fmt.Fprintf(a.stderr, "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", `output file ("." for the default name; default: stdout)`)
	return cmd
}

func newSelectCommand(a *app) *cobra.Command {
	var file string
	var textOnly bool
	cmd := &cobra.Command{
		Use:   "select <selector>",
		Short: "Debug: print the matches of a CSS selector in a snapshot",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.loadPage(cmd.Context(), file, "")
			if err != nil {
				return errors.Wrap(err, "load html")
			}
			if err := extracthtml.DebugPrintSelector(a.stdout, p.Doc, args[0], textOnly); err != nil {
				return usageError{err}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file (default: stdin)")
	cmd.Flags().BoolVar(&textOnly, "text", false, "print text instead of outer HTML")
	return cmd
}

func newPlanCommand(a *app) *cobra.Command {
	var file, pageURL string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Debug: print detection and layout decisions for a snapshot",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := a.extractor()
			if err != nil {
				return err
			}
			p, err := a.loadPage(cmd.Context(), file, pageURL)
			if err != nil {
				return errors.Wrap(err, "load html")
			}
			ex.DebugPrintPlan(a.stdout, p)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file (default: stdin)")
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL (default: discovered from the snapshot)")
	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
