package config

import (
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validTestConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080, MaxThreads: 4, MaxQueued: 10},
		Paths:   PathsConfig{Episodes: "./videos/episodes", VideoList: "./data/videoList_original.rmdj"},
		Remote:  RemoteConfig{Timeout: 20 * time.Second},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.GreaterOrEqual(t, cfg.Server.MaxThreads, 2)
	assert.Equal(t, 100, cfg.Server.MaxQueued)
	assert.False(t, cfg.Server.OfflineMode)
	assert.True(t, cfg.Server.Metrics)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

	assert.Equal(t, "./videos/episodes", cfg.Paths.Episodes)
	assert.Equal(t, "./data/videoList_original.rmdj", cfg.Paths.VideoList)
	assert.Equal(t, "./data/videoList.rmdj", cfg.Paths.PatchedVideoList)
	assert.True(t, cfg.Catalog.Patch)
	assert.Equal(t, 20*time.Second, cfg.Remote.Timeout)

	assert.False(t, cfg.Subtitles.ClosedCaptioning)
	assert.True(t, cfg.Subtitles.MusicNotes)
	assert.True(t, cfg.Subtitles.EpisodeTitles)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "smoothstreamd", cfg.Telemetry.ServiceName)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoothstreamd.yaml")
	content := `
server:
  port: 8123
  offline_mode: true
remote:
  timeout: 5s
subtitles:
  closed_captioning: true
  music_notes: false
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("SMOOTHSTREAMD_SERVER_MAX_QUEUED", "7")
	t.Setenv("SMOOTHSTREAMD_SUBTITLES_EPISODE_TITLES", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8123, cfg.Server.Port)
	assert.True(t, cfg.Server.OfflineMode)
	assert.Equal(t, 7, cfg.Server.MaxQueued)
	assert.Equal(t, 5*time.Second, cfg.Remote.Timeout)
	assert.True(t, cfg.Subtitles.ClosedCaptioning)
	assert.False(t, cfg.Subtitles.MusicNotes)
	assert.False(t, cfg.Subtitles.EpisodeTitles)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "127.0.0.1:8123", cfg.Server.Address())
}

func TestLoadWith_OverridesWinOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "smoothstreamd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0o644))

	v := viper.New()
	v.Set("server.port", 9000)
	cfg, err := LoadWith(v, path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("server: [unterminated"), 0o644))
	_, err := Load(broken)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("server:\n  port: 70000\n"), 0o644))
	_, err = Load(invalid)
	assert.ErrorContains(t, err, "server.port")
}

func TestValidate(t *testing.T) {
	require.NoError(t, validTestConfig().Validate())

	cases := map[string]func(c *Config){
		"negative port":          func(c *Config) { c.Server.Port = -1 },
		"port too large":         func(c *Config) { c.Server.Port = 65536 },
		"no workers":             func(c *Config) { c.Server.MaxThreads = 0 },
		"negative queue":         func(c *Config) { c.Server.MaxQueued = -1 },
		"negative rate limit":    func(c *Config) { c.Server.RateLimit = -1 },
		"zero timeout":           func(c *Config) { c.Remote.Timeout = 0 },
		"no episodes path":       func(c *Config) { c.Paths.Episodes = "" },
		"no video list":          func(c *Config) { c.Paths.VideoList = "" },
		"bad level":              func(c *Config) { c.Logging.Level = "trace" },
		"bad format":             func(c *Config) { c.Logging.Format = "xml" },
		"telemetry without name": func(c *Config) { c.Telemetry.Enabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := validTestConfig()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
