package cli

import (
	"fmt"

	"github.com/kanopusdev/aurelis/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the fully resolved configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.Load(); err != nil {
			return exitErr(ExitConfig, err)
		}

		settings := viper.AllSettings()
		redactTokens(settings)

		out, err := yaml.Marshal(settings)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value (dotted key, e.g. models.primary)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if key == "github.token" {
			return exitErr(ExitInvalidInput, fmt.Errorf("the GitHub token is not readable via config get"))
		}

		value := viper.Get(key)
		if value == nil {
			return exitErr(ExitInvalidInput, fmt.Errorf("unknown config key: %s", key))
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist one value into the user config (~/.aurelis/config.yaml)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.SaveUser(args[0], args[1])
		if err != nil {
			return exitErr(ExitConfig, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s = %s to %s\n", args[0], args[1], path)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config resolution order and the file in use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "Resolution order:")
		fmt.Fprintln(cmd.OutOrStdout(), "  1. CLI flags")
		fmt.Fprintf(cmd.OutOrStdout(), "  2. Environment (%s_*, GITHUB_TOKEN)\n", config.EnvPrefix)
		fmt.Fprintln(cmd.OutOrStdout(), "  3. ./.aurelis.yaml")
		fmt.Fprintf(cmd.OutOrStdout(), "  4. %s/config.yaml\n", config.HomeDir())
		fmt.Fprintf(cmd.OutOrStdout(), "  5. %s/config.yaml\n", config.SystemConfigDir)
		fmt.Fprintln(cmd.OutOrStdout(), "  6. Built-in defaults")

		if used := viper.ConfigFileUsed(); used != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\nActive config file: %s\n", used)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "\nNo config file found, using defaults.")
		}
		return nil
	},
}

// redactTokens strips secrets before printing resolved settings.
func redactTokens(settings map[string]interface{}) {
	if gh, ok := settings["github"].(map[string]interface{}); ok {
		if tok, ok := gh["token"].(string); ok && tok != "" {
			gh["token"] = "<redacted>"
		}
	}
	if sec, ok := settings["security"].(map[string]interface{}); ok {
		if key, ok := sec["api_key"].(string); ok && key != "" {
			sec["api_key"] = "<redacted>"
		}
	}
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
