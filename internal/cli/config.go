package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/reviewgate/internal/config"
	"github.com/dshills/reviewgate/internal/firewall"
)

var flagConfigRepo bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage reviewgate configuration",
}

// targetConfigFile is the file config init and set write to.
func targetConfigFile() (string, error) {
	switch {
	case flagConfig != "":
		return flagConfig, nil
	case flagConfigRepo:
		return config.RepoFile, nil
	default:
		return config.ConfigPath()
	}
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigFile()
		if err != nil {
			return err
		}
		if err := config.Init(path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Config file created at %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Known keys:\n  " + strings.Join(config.Keys(), "\n  ") + "\n  agents.<name>.command\n  agents.<name>.args",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := targetConfigFile()
		if err != nil {
			return err
		}
		if err := checkProtectedTarget(args[0], path); err != nil {
			return err
		}
		if err := config.SetField(path, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s in %s\n", args[0], args[1], path)
		return nil
	},
}

// checkProtectedTarget refuses to write a protected key anywhere but the user
// config file, since Load would ignore it there.
func checkProtectedTarget(key, path string) error {
	if !firewall.ProtectedKey(key) {
		return nil
	}
	user, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if filepath.Clean(path) != filepath.Clean(user) {
		return fmt.Errorf("%s is read only from the user config file (%s)", key, user)
	}
	return nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.PersistentFlags().BoolVar(&flagConfigRepo, "repo", false, "Write the repository config file ("+config.RepoFile+") instead of the user file")
}
