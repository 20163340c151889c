package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/loom/internal/config"
	"github.com/zjrosen/loom/internal/log"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "loom",
	Short:   "Expand templated YAML job definitions into Jenkins XML",
	Long: `Loom reads declarative YAML job and view definitions, expands their
templates over every parameter combination, and renders one XML
configuration document per resolved record.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/loom/config.yaml)")
	rootCmd.PersistentFlags().Bool("allow-duplicates", false,
		"warn instead of fail on duplicate definitions")
	rootCmd.PersistentFlags().Bool("allow-empty-variables", false,
		"substitute missing parameters with the empty string")
	rootCmd.PersistentFlags().String("log-level", "",
		"log level: debug, info, warn or error")

	_ = viper.BindPFlag("allow_duplicates", rootCmd.PersistentFlags().Lookup("allow-duplicates"))
	_ = viper.BindPFlag("allow_empty_variables", rootCmd.PersistentFlags().Lookup("allow-empty-variables"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("allow_duplicates", defaults.AllowDuplicates)
	viper.SetDefault("allow_empty_variables", defaults.AllowEmptyVariables)
	viper.SetDefault("keep_descriptions", defaults.KeepDescriptions)
	viper.SetDefault("include_path", defaults.IncludePath)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .loom/config.yaml (current directory)
		// 2. ~/.config/loom/config.yaml (user config)
		if _, err := os.Stat(".loom/config.yaml"); err == nil {
			viper.SetConfigFile(".loom/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "loom"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn(log.CatConfig, "could not read config file", "error", err)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
