package cli

import (
	"fmt"
	"os"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a project config (.aurelis.yaml) in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}

		path, err := config.WriteProject(dir)
		if err != nil {
			return exitErr(ExitConfig, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "Set GITHUB_TOKEN or run `aurelis auth login` to authenticate.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
