/*
Copyright © 2026 Paulo Suderio
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/suderio/draconic-bonus/internal/engine"
	"github.com/suderio/draconic-bonus/internal/features"
	"github.com/suderio/draconic-bonus/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "draconic-bonus",
	Short: "Resolve character sheet bonuses",
	Long: `draconic-bonus recomputes a character sheet from the feats, traits and
equipment attached to it, applying the ruleset's bonus stacking rules.`,
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

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.draconic-bonus.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("dev", false, "human-readable development logs")
	rootCmd.PersistentFlags().String("manifest", "", "feature manifest merged over the builtin features")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("dev", rootCmd.PersistentFlags().Lookup("dev"))
	_ = viper.BindPFlag("manifest", rootCmd.PersistentFlags().Lookup("manifest"))
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
		viper.SetConfigName(".draconic-bonus")
	}

	viper.SetEnvPrefix("DRACONIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newEngine builds the logger and an engine with the builtin features plus
// the configured manifest.
func newEngine() (*engine.Engine, *zap.Logger, error) {
	log, err := logging.New(viper.GetString("log_level"), viper.GetBool("dev"))
	if err != nil {
		return nil, nil, err
	}

	m, err := features.Builtin()
	if err != nil {
		return nil, nil, err
	}
	if path := viper.GetString("manifest"); path != "" {
		custom, err := features.LoadManifest(path)
		if err != nil {
			return nil, nil, err
		}
		custom.Merge(m)
		m = custom
	}

	e, err := engine.New(engine.Config{Logger: log})
	if err != nil {
		return nil, nil, err
	}
	if err := features.Register(e, m); err != nil {
		log.Warn("some features were not registered", zap.Error(err))
	}
	return e, log, nil
}
