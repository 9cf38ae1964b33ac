/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/itrek/trekd/params"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "trekd",
	Short: "Hiking routes backend",
	Long: `trekd stores, reduces and shares hiking routes.

Raw GPS traces are compressed on the way in, either by merging consecutive
points closer than a threshold or by density clustering in (lat, lng, order)
space. Points of interest always survive reduction.

Configuration comes from flags, TREKD_* environment variables
(e.g. TREKD_SMTP_HOST), or a trekd.yaml in the data directory.
`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pFlags := rootCmd.PersistentFlags()
	pFlags.StringVar(&cfgFile, "config", "", "config file (default is <datadir>/trekd.yaml)")
	pFlags.String("datadir", params.DefaultDatadirRoot, "Data directory for the database and images")
	pFlags.String("verbosity", "info", "Log level: debug, info, warn, error")
	pFlags.String("log-format", "text", "Log format: text or json")
	_ = viper.BindPFlags(pFlags)
}

// initConfig reads in the config file and TREKD_ env variables, then binds the command's own flags.
func initConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix("TREKD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("trekd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(dataDir())
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("config: %w", err)
		}
	} else {
		slog.Debug("Using config file", "file", viper.ConfigFileUsed())
	}
	return nil
}

// dataDir is the configured data directory, with ~ expanded.
func dataDir() string {
	d, err := homedir.Expand(viper.GetString("datadir"))
	if err != nil {
		slog.Warn("Failed to expand datadir", "datadir", viper.GetString("datadir"), "error", err)
		return viper.GetString("datadir")
	}
	return filepath.Clean(d)
}

func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(viper.GetString("verbosity"))); err != nil {
		slog.Warn("Invalid verbosity, using info", "verbosity", viper.GetString("verbosity"))
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch viper.GetString("log-format") {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler).With("cmd", cmd.Name()))
}
