package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.trai.ch/jit/internal/core/domain"
	"go.trai.ch/jit/internal/ui/output"
	"go.trai.ch/jit/internal/ui/style"
)

func (c *CLI) newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the transform cache",
	}
	cmd.AddCommand(c.newCacheDirCmd())
	cmd.AddCommand(c.newCachePruneCmd())
	cmd.AddCommand(c.newCacheCleanCmd())
	cmd.AddCommand(c.newCacheWarmCmd())
	return cmd
}

func (c *CLI) newCacheDirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ov, err := overrides(cmd)
			if err != nil {
				return err
			}
			dir, err := c.app.CacheDir(ov)
			if err != nil {
				return err
			}
			if dir == "" {
				out := output.New(cmd.ErrOrStderr())
				_, _ = fmt.Fprintln(out, output.Paint(out, style.Warning+" cache is disabled", style.Yellow))
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
}

func (c *CLI) newCachePruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cache entries older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ov, err := overrides(cmd)
			if err != nil {
				return err
			}
			olderThan, _ := cmd.Flags().GetDuration("older-than")
			report, err := c.app.PruneCache(cmd.Context(), olderThan, ov)
			if err != nil {
				return err
			}
			printPruneReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().Duration("older-than", 0, "Remove entries older than this (default: configured retention)")
	return cmd
}

func (c *CLI) newCacheCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove every cache entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ov, err := overrides(cmd)
			if err != nil {
				return err
			}
			report, err := c.app.CleanCache(cmd.Context(), ov)
			if err != nil {
				return err
			}
			printPruneReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func (c *CLI) newCacheWarmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "warm [dir]",
		Short: "Transform every source file below dir ahead of time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ov, err := overrides(cmd)
			if err != nil {
				return err
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			report, err := c.app.WarmCache(cmd.Context(), dir, ov)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			_, _ = fmt.Fprintf(out, "%s transformed %d, skipped %d\n",
				output.Paint(out, style.Check, style.Green), report.Transformed, report.Skipped)
			for _, path := range report.Failed {
				_, _ = fmt.Fprintf(out, "%s %s\n", output.Paint(out, style.Cross, style.Red), path)
			}
			if len(report.Failed) > 0 {
				return domain.ErrWarmIncomplete
			}
			return nil
		},
	}
}

func printPruneReport(w io.Writer, report domain.PruneReport) {
	out := output.New(w)
	_, _ = fmt.Fprintf(out, "%s removed %d of %d entries (%s)\n",
		output.Paint(out, style.Check, style.Green),
		report.Removed, report.Scanned, humanize.Bytes(uint64(max(report.Bytes, 0))))
}
