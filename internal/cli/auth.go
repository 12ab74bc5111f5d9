package cli

import (
	"fmt"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/kanopusdev/aurelis/internal/github"
	"github.com/kanopusdev/aurelis/internal/logger"
	"github.com/spf13/cobra"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the GitHub access token",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with GitHub via the device-code flow",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logger.NewDevelopment()
		if err != nil {
			return err
		}
		defer log.Sync()

		store := github.NewTokenStore(config.HomeDir())
		cred, err := github.Login(cmd.Context(), store, log)
		if err != nil {
			return exitErr(ExitAuth, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\nLogin successful. Token %s saved to %s\n",
			github.MaskToken(cred.Token), config.HomeDir())
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which token is in use and where it came from",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return exitErr(ExitConfig, err)
		}

		store := github.NewTokenStore(config.HomeDir())
		token, source, err := github.ResolveToken(cfg.GitHub, store)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated.")
			fmt.Fprintln(cmd.OutOrStdout(), "Set GITHUB_TOKEN or run `aurelis auth login`.")
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Token:  %s\n", github.MaskToken(token))
		fmt.Fprintf(cmd.OutOrStdout(), "Source: %s\n", source)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := github.NewTokenStore(config.HomeDir())
		if err := store.Delete(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved token removed.")
		fmt.Fprintln(cmd.OutOrStdout(), "Note: a token set via GITHUB_TOKEN is unaffected.")
		return nil
	},
}

func init() {
	authCmd.AddCommand(authLoginCmd, authStatusCmd, authLogoutCmd)
	rootCmd.AddCommand(authCmd)
}
