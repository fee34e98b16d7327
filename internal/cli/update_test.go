package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"v1.0.0", "1.0.0"},
		{"1.0.0", "1.0.0"},
		{"v2.1.3", "2.1.3"},
		{"dev", "dev"},
	}

	for _, test := range tests {
		assert.Equal(t, test.expected, normalizeVersion(test.input))
	}
}

func TestIsOutdated(t *testing.T) {
	tests := []struct {
		current, latest string
		want            bool
	}{
		{"v1.0.0", "v1.1.0", true},
		{"1.2.0", "v1.1.9", false},
		{"v1.1.0", "1.1.0", false},
		{"dev", "v1.0.0", false},
		{"nightly", "v1.0.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.current+"->"+tt.latest, func(t *testing.T) {
			assert.Equal(t, tt.want, isOutdated(tt.current, tt.latest))
		})
	}
}

func TestUpdateCacheOperations(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	updateInfo := &UpdateInfo{
		LastChecked:   time.Now(),
		LatestVersion: "v1.2.3",
		CurrentIsOld:  true,
		DownloadURL:   "https://example.com/download",
	}

	saveUpdateCache(updateInfo)
	assert.FileExists(t, filepath.Join(home, updateCacheFile))

	loadedInfo := loadUpdateCache()
	require.NotNil(t, loadedInfo)
	assert.Equal(t, updateInfo.LatestVersion, loadedInfo.LatestVersion)
	assert.Equal(t, updateInfo.CurrentIsOld, loadedInfo.CurrentIsOld)
	assert.Equal(t, updateInfo.DownloadURL, loadedInfo.DownloadURL)
	assert.WithinDuration(t, updateInfo.LastChecked, loadedInfo.LastChecked, time.Second)
}

func TestUpdateCacheExpiry(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	saveUpdateCache(&UpdateInfo{
		LastChecked:   time.Now().Add(-3 * time.Hour),
		LatestVersion: "v1.0.0",
		CurrentIsOld:  true,
	})
	assert.Nil(t, ShouldShowUpdateNotification(), "expired cache is ignored")

	saveUpdateCache(&UpdateInfo{
		LastChecked:   time.Now().Add(-30 * time.Minute),
		LatestVersion: "v1.2.0",
		CurrentIsOld:  true,
	})
	notification := ShouldShowUpdateNotification()
	require.NotNil(t, notification)
	assert.Equal(t, "v1.2.0", notification.LatestVersion)
}

func TestLoadUpdateCacheWithInvalidJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cacheFile := filepath.Join(home, updateCacheFile)
	require.NoError(t, os.MkdirAll(filepath.Dir(cacheFile), 0750))
	require.NoError(t, os.WriteFile(cacheFile, []byte("invalid json"), 0600))

	assert.Nil(t, loadUpdateCache())
}

func TestLoadUpdateCacheWithNonexistentFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	assert.Nil(t, loadUpdateCache())
}

func TestFetchLatestVersion(t *testing.T) {
	asset := fmt.Sprintf("dashwire_%s_%s", runtime.GOOS, runtime.GOARCH)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		release := map[string]any{
			"tag_name": "v9.9.9",
			"assets": []map[string]string{
				{"name": "dashwire_plan9_mips.tar.gz", "browser_download_url": "https://example.com/other"},
				{"name": asset, "browser_download_url": "https://example.com/ours"},
			},
		}
		_ = json.NewEncoder(w).Encode(release)
	}))
	defer srv.Close()

	original := githubAPIURL
	githubAPIURL = srv.URL
	defer func() { githubAPIURL = original }()

	version, url, err := fetchLatestVersion()
	require.NoError(t, err)
	assert.Equal(t, "v9.9.9", version)
	assert.Equal(t, "https://example.com/ours", url)
}

func TestFetchLatestVersionErrors(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"tag_name": "v1.0.0", "assets": []}`))
	}))
	defer srv.Close()

	original := githubAPIURL
	githubAPIURL = srv.URL
	defer func() { githubAPIURL = original }()

	_, _, err := fetchLatestVersion()
	assert.ErrorContains(t, err, "status 500")

	status = http.StatusOK
	_, _, err = fetchLatestVersion()
	assert.ErrorContains(t, err, "no binary found")
}

func TestUpdateCheckUsesCache(t *testing.T) {
	setupCLI(t)

	saveUpdateCache(&UpdateInfo{
		LastChecked:   time.Now(),
		LatestVersion: "v99.0.0",
		CurrentIsOld:  true,
	})

	out, err := executeCommand(rootCmd, "update", "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "A newer version (v99.0.0) is available!")
}
