package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventpoints/internal/civil"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\nbackend_url: http://api.example.edu/\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "http://api.example.edu", cfg.BackendURL)
	assert.Equal(t, "America/Denver", cfg.Timezone)
	assert.Equal(t, civil.DefaultZone().Offsets, cfg.Offsets)
	assert.Equal(t, 1, cfg.DefaultPoints)
	assert.Equal(t, 1000, cfg.MaxInstances)
	require.NoError(t, cfg.Validate())
}

func TestLoadCustomZone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `timezone: Australia/Adelaide
offsets:
  - name: ACST
    utc_offset: 34200
  - name: ACDT
    utc_offset: 37800
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	zone := cfg.Zone()
	assert.Equal(t, "Australia/Adelaide", zone.Name)
	assert.Equal(t, []civil.Offset{{Name: "ACST", Seconds: 34200}, {Name: "ACDT", Seconds: 37800}}, zone.Offsets)
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsZoneWithoutOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Europe/Berlin\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Offsets = []civil.Offset{{Name: "CET", Seconds: 3600}}
	cfg.Timezone = "Not/AZone"
	assert.Error(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o600))

	t.Setenv(EnvListen, "0.0.0.0:8081")
	t.Setenv(EnvBackendURL, "https://backend.example.edu/")
	t.Setenv(EnvDefaultPts, "")
	// Registered for cleanup, then unset so the .env file can supply it.
	t.Setenv(EnvBackendToken, "placeholder")
	require.NoError(t, os.Unsetenv(EnvBackendToken))

	// .env fills only what the process environment leaves unset.
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("EVENTPOINTS_LISTEN=ignored:1\nEVENTPOINTS_BACKEND_TOKEN=from-dotenv\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8081", cfg.Listen)
	assert.Equal(t, "https://backend.example.edu", cfg.BackendURL)
	assert.Equal(t, "from-dotenv", cfg.BackendToken)
	assert.Equal(t, 1, cfg.DefaultPoints)
}

func TestEnvRejectsBadPoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o600))
	t.Setenv(EnvDefaultPts, "zero")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BackendToken = "secret"
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", Password: "pw"}
	cfg.RefreshCron = "@hourly"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	assert.Error(t, Save("", cfg))
	assert.Error(t, Save(path, nil))
}

func TestEnvTimezoneReplacesFileOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o600))
	t.Setenv(EnvTimezone, "Asia/Seoul")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, []civil.Offset{{Name: "KST", Seconds: 9 * 3600}}, cfg.Offsets)
	require.NoError(t, cfg.Validate())

	r, err := civil.NewResolver(cfg.Zone())
	require.NoError(t, err)
	want := civil.Date(2024, 1, 1, 10, 0)
	u, err := r.CivilToUTC(want)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T01:00:00Z", u.Format(time.RFC3339))
	assert.Equal(t, want, r.UTCToCivil(u))
}

func TestEnvOffsets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o600))
	t.Setenv(EnvTimezone, "Asia/Seoul")

	// Offsets that belong to another zone load but do not validate.
	t.Setenv(EnvOffsets, "MST=-25200, MDT=-21600")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), civil.ErrZoneMismatch)

	t.Setenv(EnvOffsets, "KST=32400")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	t.Setenv(EnvOffsets, "KST")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestValidateRejectsForeignOffsetsInFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "timezone: Asia/Seoul\noffsets:\n  - {name: MST, utc_offset: -25200}\n  - {name: MDT, utc_offset: -21600}\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), civil.ErrZoneMismatch)
}
