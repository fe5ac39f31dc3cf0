package props

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "profile.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "com.relaxationapp.relaxsleep", p.BundleID)
	assert.Equal(t, p.BundleID, p.StoreID)
	assert.Equal(t, "Android", p.OS)
	assert.Empty(t, p.FirebaseProjectID)
}

func TestLoad_OverlayAndEnv(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "profile.yaml")
	writeFile(t, base, "bundleId: com.example.sleep\nfirebaseProjectId: sleep-1\n")
	writeFile(t, filepath.Join(dir, "profile.staging.yaml"), "firebaseProjectId: sleep-staging\n")

	t.Setenv("ENV", "staging")
	t.Setenv("PROFILE_OS", "iOS")

	p, err := Load(base)
	require.NoError(t, err)

	assert.Equal(t, "com.example.sleep", p.BundleID)
	assert.Equal(t, "com.example.sleep", p.StoreID)
	assert.Equal(t, "sleep-staging", p.FirebaseProjectID)
	assert.Equal(t, "iOS", p.OS)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	writeFile(t, path, "bundleId: [unterminated\n")

	_, err := Load(path)
	assert.Error(t, err)
}
