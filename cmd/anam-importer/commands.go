package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yeleman/anam-desktop/internal/batch"
	"github.com/yeleman/anam-desktop/internal/service"
)

func newImportCmd(a *app) *cobra.Command {
	var opts service.ImportOptions

	cmd := &cobra.Command{
		Use:   "import COLLECT_ID",
		Short: "Import the indigent households of a collect",
		Long: "Imports every household flagged indigent into the case database, " +
			"committing every checkpoint_every households, then marks the collect imported.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.svc.Import(cmd.Context(), args[0], opts)
			if report == nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.Message())
			a.log.Info("Import finished",
				zap.String("collect_id", args[0]),
				zap.String("state", report.State.String()),
				zap.Int("committed", report.Committed))

			switch {
			case report.State == batch.StateSucceeded:
				return nil
			case report.DataWritten():
				return withCode(exitPartial, err)
			default:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&opts.ReportPath, "report", "", "Write the run workbook (.xlsx) to this path")
	cmd.Flags().BoolVar(&opts.SkipMark, "no-mark", false, "Do not mark the collect imported on the dataset service")
	return cmd
}

func newCollectsCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "collects",
		Short: "List collects available on the dataset service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			collects, err := a.svc.Collects(cmd.Context(), all)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCERCLE\tCOMMUNE\tFORM\tTARGETS\tRECEIVED\tARCHIVED")
			for _, c := range collects {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%t\n",
					c.ID, c.Cercle, c.Commune, c.OnaFormID, c.NbSubmissions, c.StartedOn, c.Archived)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include archived collects")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show COLLECT_ID",
		Short: "Summarize a collect before importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.svc.Collect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			eligible := len(c.Eligible())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Collect\t%s\n", c.Name())
			fmt.Fprintf(w, "Form\t%s\n", c.OnaFormID)
			fmt.Fprintf(w, "Received\t%s\n", c.StartedOn)
			fmt.Fprintf(w, "Submissions\t%d\n", c.NbSubmissions)
			fmt.Fprintf(w, "Targets\t%d\n", len(c.Dataset.Targets))
			fmt.Fprintf(w, "Indigents\t%d (%d men, %d women)\n", eligible, c.NbMale(), c.NbFemale())
			fmt.Fprintf(w, "Non indigents\t%d\n", c.NbNonIndigents)
			return w.Flush()
		},
	}
}

func newArchiveCmd(a *app, archive bool) *cobra.Command {
	use, short := "archive", "Archive a collect"
	if !archive {
		use, short = "unarchive", "Restore an archived collect"
	}
	return &cobra.Command{
		Use:   use + " COLLECT_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if archive {
				err = a.svc.Archive(cmd.Context(), args[0])
			} else {
				err = a.svc.Unarchive(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Collect %s %sd\n", args[0], use)
			return nil
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check connectivity to the dataset service and the case database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.svc.Check(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
}

func newProgressCmd(a *app) *cobra.Command {
	var count int64

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show the latest progress updates published by import runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := a.svc.RecentProgress(cmd.Context(), count)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tCOLLECT\tSTATE\tPROCESSED\tCOMMITTED")
			for _, p := range updates {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\n",
					p.RunID, p.CollectID, p.StateName, p.Processed, p.Total, p.Committed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int64Var(&count, "count", 20, "Number of updates to show")
	return cmd
}
