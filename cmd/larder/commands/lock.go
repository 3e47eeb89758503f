package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock",
		Short: "Resolve the specfile and write the lockfile",
		Long: "Resolve the dependencies of Larderfile.yaml and write Larderfile.lock.\n" +
			"Versions already locked are kept as long as they still satisfy the specfile.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := c.app.Lock(cmd.Context())
			return err
		},
	}
}

func (c *CLI) newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update [names...]",
		Short: "Re-resolve locked packages",
		Long: "Re-resolve the named packages, or every package when no name is given,\n" +
			"and write the lockfile. Each named package must already be locked.",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.app.Update(cmd.Context(), args)
			return err
		},
	}
}
