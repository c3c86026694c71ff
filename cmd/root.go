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
	"log/slog"
	"os"

	"github.com/roamtrack/tripd/params"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var optVerbosity int

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tripd",
	Short: "Trip and driving-event processing for GPS devices",
	Long: `tripd ingests device location fixes and driving lifecycle events,
classifies anomalous fixes, tracks per-device trip state, and partitions
fix histories into dwells and drives.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.tripd.yaml)")
	rootCmd.PersistentFlags().CountVarP(&optVerbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
	rootCmd.PersistentFlags().String("datadir", params.DatadirRoot, "data directory root")
	_ = viper.BindPFlag("datadir", rootCmd.PersistentFlags().Lookup("datadir"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tripd")
	}

	viper.SetEnvPrefix("TRIPD")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		slog.Debug("Using config file", "path", viper.ConfigFileUsed())
	}
	if dir := viper.GetString("datadir"); dir != "" {
		params.DatadirRoot = dir
	}
}

// setDefaultSlog maps the -v count onto the default slog level.
func setDefaultSlog(cmd *cobra.Command, args []string) {
	level := slog.LevelInfo
	switch optVerbosity {
	case 0:
	case 1:
		level = slog.LevelDebug
	default:
		level = slog.LevelDebug - 4
	}
	slog.SetLogLoggerLevel(level)
}
