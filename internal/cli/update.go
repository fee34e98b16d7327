package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/minio/selfupdate"
	"github.com/spf13/cobra"

	"github.com/lacquerai/dashwire/internal/style"
)

const (
	updateCacheFile = ".dashwire/update_cache.json"
	cacheExpiry     = 2 * time.Hour
)

// githubAPIURL is a variable so tests can point it at a local server.
var githubAPIURL = "https://api.github.com/repos/lacquerai/dashwire/releases/latest"

type UpdateInfo struct {
	LastChecked   time.Time `json:"last_checked"`
	LatestVersion string    `json:"latest_version"`
	CurrentIsOld  bool      `json:"current_is_old"`
	DownloadURL   string    `json:"download_url"`
}

type GitHubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update dashwire to the latest version",
	Long: `Update dashwire to the latest version available on GitHub.

This command checks the latest release, downloads the binary for your
platform and replaces the running executable.`,
	Example: `
  dashwire update          # Update to latest version
  dashwire update --check  # Only check for updates
  dashwire update --force  # Reinstall even if already on the latest version`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		checkOnly, _ := cmd.Flags().GetBool("check")
		force, _ := cmd.Flags().GetBool("force")

		if checkOnly {
			if checkForUpdate(cmd, true) == nil {
				return fmt.Errorf("failed to check for updates")
			}
			return nil
		}

		return performUpdate(cmd, force)
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().Bool("check", false, "only check for updates without updating")
	updateCmd.Flags().Bool("force", false, "force update even if already on latest version")
}

// checkForUpdate checks if a newer version is available
func checkForUpdate(cmd *cobra.Command, verbose bool) *UpdateInfo {
	updateInfo := loadUpdateCache()

	if updateInfo == nil || time.Since(updateInfo.LastChecked) >= cacheExpiry {
		latest, downloadURL, err := fetchLatestVersion()
		if err != nil {
			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s Failed to check for updates: %s\n", style.ErrorIcon(), err)
			}
			return nil
		}

		updateInfo = &UpdateInfo{
			LastChecked:   time.Now(),
			LatestVersion: latest,
			CurrentIsOld:  isOutdated(Version, latest),
			DownloadURL:   downloadURL,
		}
		saveUpdateCache(updateInfo)
	}

	if verbose {
		if updateInfo.CurrentIsOld {
			fmt.Fprintf(cmd.OutOrStdout(), "%s A newer version (%s) is available!\n", style.InfoIcon(), updateInfo.LatestVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "Run 'dashwire update' to upgrade.\n")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s You are running the latest version (%s)\n", style.SuccessIcon(), Version)
		}
	}

	return updateInfo
}

// isOutdated compares versions as semver, falling back to string
// inequality when either does not parse. Development builds never are.
func isOutdated(current, latest string) bool {
	currentSemver, err1 := semver.NewVersion(normalizeVersion(current))
	latestSemver, err2 := semver.NewVersion(normalizeVersion(latest))
	if err1 == nil && err2 == nil {
		return currentSemver.LessThan(latestSemver)
	}
	return current != "dev" && normalizeVersion(current) != normalizeVersion(latest)
}

// performUpdate downloads and installs the latest version
func performUpdate(cmd *cobra.Command, force bool) error {
	updateInfo := checkForUpdate(cmd, false)
	if updateInfo == nil {
		return fmt.Errorf("failed to check for updates")
	}

	if !updateInfo.CurrentIsOld && !force {
		fmt.Fprintf(cmd.OutOrStdout(), "%s You are already running the latest version (%s)\n", style.SuccessIcon(), Version)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Downloading dashwire %s...\n", style.InfoIcon(), updateInfo.LatestVersion)

	resp, err := http.Get(updateInfo.DownloadURL) // #nosec G107 - URL comes from the release API
	if err != nil {
		return fmt.Errorf("failed to download update: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	if err := selfupdate.Apply(resp.Body, selfupdate.Options{}); err != nil {
		if rerr := selfupdate.RollbackError(err); rerr != nil {
			return fmt.Errorf("failed to roll back broken update: %w", rerr)
		}
		return fmt.Errorf("failed to replace binary: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Successfully updated to dashwire %s!\n", style.SuccessIcon(), updateInfo.LatestVersion)
	return nil
}

// fetchLatestVersion gets the latest version from GitHub API
func fetchLatestVersion() (version, downloadURL string, err error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(githubAPIURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch release info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", "", fmt.Errorf("failed to decode release info: %w", err)
	}

	assetName := fmt.Sprintf("dashwire_%s_%s", runtime.GOOS, runtime.GOARCH)
	if runtime.GOOS == "windows" {
		assetName += ".exe"
	}

	for _, asset := range release.Assets {
		if strings.Contains(asset.Name, assetName) {
			return release.TagName, asset.BrowserDownloadURL, nil
		}
	}

	return "", "", fmt.Errorf("no binary found for platform %s/%s", runtime.GOOS, runtime.GOARCH)
}

// normalizeVersion removes 'v' prefix from version strings
func normalizeVersion(version string) string {
	return strings.TrimPrefix(version, "v")
}

// loadUpdateCache loads cached update information
func loadUpdateCache() *UpdateInfo {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(homeDir, updateCacheFile))
	if err != nil {
		return nil
	}

	var updateInfo UpdateInfo
	if err := json.Unmarshal(data, &updateInfo); err != nil {
		return nil
	}

	return &updateInfo
}

// saveUpdateCache saves update information to cache
func saveUpdateCache(updateInfo *UpdateInfo) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return
	}

	cacheFile := filepath.Join(homeDir, updateCacheFile)
	_ = os.MkdirAll(filepath.Dir(cacheFile), 0750)

	data, err := json.MarshalIndent(updateInfo, "", "  ")
	if err != nil {
		return
	}

	_ = os.WriteFile(cacheFile, data, 0600)
}

// ShouldShowUpdateNotification reports a cached newer release. It never
// performs network calls so it cannot slow down other commands.
func ShouldShowUpdateNotification() *UpdateInfo {
	updateInfo := loadUpdateCache()
	if updateInfo == nil || time.Since(updateInfo.LastChecked) > cacheExpiry {
		return nil
	}

	if updateInfo.CurrentIsOld {
		return updateInfo
	}

	return nil
}
