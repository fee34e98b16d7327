package cli

import (
	"fmt"
	"io"
	"runtime"

	"github.com/lacquerai/dashwire/internal/style"
	"github.com/lacquerai/dashwire/internal/widget"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Build-time variables (set by goreleaser or build scripts)
var (
	Version   = "dev"
	Commit    = "unknown"
	Date      = "unknown"
	BuiltBy   = "unknown"
	GoVersion = runtime.Version()
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display version information for dashwire, including build details and the dashboard config format version.`,
	Example: `
  dashwire version               # Show the version
  dashwire version --output json # Show build details as JSON`,
	Run: func(cmd *cobra.Command, args []string) {
		showVersion(cmd)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// VersionInfo represents version information
type VersionInfo struct {
	Version       string `json:"version" yaml:"version"`
	Commit        string `json:"commit" yaml:"commit"`
	Date          string `json:"date" yaml:"date"`
	BuiltBy       string `json:"built_by" yaml:"built_by"`
	GoVersion     string `json:"go_version" yaml:"go_version"`
	Platform      string `json:"platform" yaml:"platform"`
	ConfigVersion string `json:"config_version" yaml:"config_version"`
}

func showVersion(cmd *cobra.Command) {
	versionInfo := VersionInfo{
		Version:       Version,
		Commit:        Commit,
		Date:          Date,
		BuiltBy:       BuiltBy,
		GoVersion:     GoVersion,
		Platform:      fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		ConfigVersion: widget.ConfigVersion,
	}

	switch viper.GetString("output") {
	case "json":
		style.PrintJSON(cmd.OutOrStdout(), versionInfo)
	case "yaml":
		style.PrintYAML(cmd.OutOrStdout(), versionInfo)
	default:
		printText(cmd.OutOrStdout(), versionInfo)
	}
}

func printText(w io.Writer, info VersionInfo) {
	fmt.Fprintf(w, "%s", info.Version)
	if viper.GetBool("verbose") {
		fmt.Fprintf(w, " (commit: %s, built: %s by %s, %s, %s, config format %s)",
			info.Commit, info.Date, info.BuiltBy, info.GoVersion, info.Platform, info.ConfigVersion)
	}
	fmt.Fprintln(w)
}
