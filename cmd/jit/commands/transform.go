package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.trai.ch/jit/internal/app"
)

func (c *CLI) newTransformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform <file>",
		Short: "Print the code a module is executed as",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ov, err := overrides(cmd)
			if err != nil {
				return err
			}
			async, _ := cmd.Flags().GetBool("async")

			code, err := c.app.Transform(cmd.Context(), args[0], app.TransformOptions{
				Async:     async,
				Overrides: ov,
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), code)
			return nil
		},
	}
	cmd.Flags().BoolP("async", "a", false, "Transform for asynchronous loading")
	return cmd
}
