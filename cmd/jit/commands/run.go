package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/jit/internal/app"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <entry>",
		Short: "Load and execute a module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				// Display command usage help without returning an error
				_ = cmd.Help()
				return nil
			}
			ov, err := overrides(cmd)
			if err != nil {
				return err
			}
			async, _ := cmd.Flags().GetBool("async")
			watch, _ := cmd.Flags().GetBool("watch")

			return c.app.Run(cmd.Context(), args[0], app.RunOptions{
				Async:     async,
				Watch:     watch,
				Overrides: ov,
			})
		},
	}
	cmd.Flags().BoolP("async", "a", false, "Load the entry asynchronously, allowing top-level await")
	cmd.Flags().BoolP("watch", "w", false, "Re-run the entry when files change")
	return cmd
}
