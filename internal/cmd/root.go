package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/atikulmunna/logbook/internal/config"
	"github.com/atikulmunna/logbook/internal/logging"
	"github.com/atikulmunna/logbook/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "logbook",
	Short: "Logbook: API log recorder and query tool",
	Long: `Logbook records log messages tagged by API identifier. Each API's level
and output file come from a properties file (<api>.level, <api>.filepath);
entries are kept in memory for querying and appended to their file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: $HOME/.logbook.yaml)")
	flags.StringP("properties", "p", config.DefaultPath, "per-API properties file")
	flags.StringP("output", "o", output.FormatPlain, "output format: plain, text, json")
	flags.String("log-level", logging.LevelInfo, "diagnostic log level: debug, info, warn, error")
	flags.String("log-format", logging.FormatText, "diagnostic log format: text, json")

	for _, name := range []string{"properties", "output", "log-level", "log-format"} {
		cobra.CheckErr(viper.BindPFlag(name, flags.Lookup(name)))
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".logbook")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("logbook")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

// newLogger builds the diagnostic logger from settings; it writes to stderr.
func newLogger(cmd *cobra.Command) *logging.Logger {
	return logging.New(cmd.ErrOrStderr(), viper.GetString("log-level"), viper.GetString("log-format"))
}
