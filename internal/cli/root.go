package cli

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/lacquerai/dashwire/internal/style"
)

var (
	// Global flags
	cfgFile        string
	logLevel       string
	outputFormat   string
	quiet          bool
	verbose        bool
	locale         string
	currencySymbol string
	storeKind      string
	storePath      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dashwire",
	Short: "dashwire - Live dashboards from any JSON API",
	Long: `dashwire turns JSON API responses into dashboard widgets.

Widgets poll an endpoint, pick values out of the response with dotted paths
and render them as cards, tables or charts. The dashwire CLI serves the
dashboard API, explores responses to find fields worth mapping, and manages
the stored dashboard.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		showUpdateNotificationIfAvailable(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return fang.Execute(context.Background(), rootCmd, fang.WithColorSchemeFunc(func(lightDark lipgloss.LightDarkFunc) fang.ColorScheme {
		return fang.ColorScheme{
			Base:           style.PrimaryTextColor,
			Title:          style.AccentColor,
			Description:    style.PrimaryTextColor,
			Codeblock:      style.CodeColor,
			Program:        style.AccentColor,
			DimmedArgument: style.MutedColor,
			Comment:        style.MutedColor,
			Flag:           style.InfoColor,
			FlagDefault:    style.MutedColor,
			Command:        style.SuccessColor,
			QuotedString:   style.WarningColor,
			Argument:       style.PrimaryTextColor,
			Help:           style.InfoColor,
			Dash:           style.MutedColor,
			ErrorHeader:    [2]color.Color{style.ErrorColor, style.ErrorBgColor},
			ErrorDetails:   style.ErrorColor,
		}
	}))
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dashwire/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "disabled", "log level (debug, info, warn, error) (default: disabled)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "text", "output format (text, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "en-US", "locale used to group digits in formatted values")
	rootCmd.PersistentFlags().StringVar(&currencySymbol, "currency-symbol", "", "symbol prefixed to currency values")
	rootCmd.PersistentFlags().StringVar(&storeKind, "store", "file", "dashboard storage (file, sqlite, memory)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store-path", "", "dashboard file or database path (default is $HOME/.dashwire/dashboard.json)")

	// Bind flags to viper
	for _, name := range []string{"log-level", "output", "quiet", "verbose", "locale", "currency-symbol", "store", "store-path"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(filepath.Join(home, ".dashwire"))
		viper.AddConfigPath(".")
		viper.AddConfigPath(".dashwire")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// DASHWIRE_STORE_PATH maps to store-path
	viper.SetEnvPrefix("DASHWIRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if !viper.GetBool("quiet") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// initLogging configures the global logger
func initLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch viper.GetString("log-level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.Disabled)
	}

	// Configure console output for better readability
	if !viper.GetBool("quiet") && viper.GetString("output") == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// getVersion returns the version information
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, go: %s)", Version, Commit, Date, GoVersion)
}

// showUpdateNotificationIfAvailable prints a hint when the cached release
// check found a newer version. It never touches the network.
func showUpdateNotificationIfAvailable(cmd *cobra.Command) {
	if viper.GetBool("quiet") || viper.GetString("output") != "text" {
		return
	}

	if info := ShouldShowUpdateNotification(); info != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n%s A newer version (%s) is available! Run 'dashwire update' to upgrade.\n",
			style.InfoIcon(), info.LatestVersion)
	}
}
