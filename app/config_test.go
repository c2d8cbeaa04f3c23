package chathub

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "0.0.0.0", config.Hostname)
	assert.Len(t, config.Auth.Secret, 32)
	assert.Equal(t, 10*time.Second, config.Auth.Timeout)
	assert.Equal(t, "lobby", config.Chat.DefaultRoom)
	assert.True(t, config.Filters.Escape.Enabled)
	assert.True(t, config.Filters.RateLimit.Enabled)
	assert.Equal(t, 3, config.Filters.RateLimit.Burst)
	assert.Equal(t, 10*time.Second, config.Filters.RateLimit.Interval)
	assert.True(t, config.Filters.Spam.Enabled)
	assert.Equal(t, 3, config.Filters.Spam.Threshold)

	assert.NoError(t, config.Validate())
}

func TestValidateRejectsBadPort(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	config.Port = 70000
	err = config.Validate()
	require.Error(t, err)
	assert.Contains(t, FormatValidationErrors(err), "port")
}

func TestValidateRejectsBadHostname(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	config.Hostname = "not a host!"
	err = config.Validate()
	require.Error(t, err)
	assert.Contains(t, FormatValidationErrors(err), "hostname")
}

func TestEnvConfigLoaderDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PORT=9090\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("PORT")
	})

	loader := &EnvConfigLoader{}
	config, err := loader.Load()
	require.NoError(t, err)

	// explicit value wins, everything else mirrors the file-loader defaults
	assert.Equal(t, 9090, config.Port)
	assert.Equal(t, "0.0.0.0", config.Hostname)
	assert.Len(t, config.Auth.Secret, 32)
	assert.Equal(t, 10*time.Second, config.Auth.Timeout)
	assert.Equal(t, "lobby", config.Chat.DefaultRoom)
	assert.True(t, config.Filters.Escape.Enabled)
	assert.True(t, config.Filters.RateLimit.Enabled)
	assert.Equal(t, 3, config.Filters.RateLimit.Burst)
	assert.Equal(t, 10*time.Second, config.Filters.RateLimit.Interval)
	assert.True(t, config.Filters.Spam.Enabled)
	assert.Equal(t, 3, config.Filters.Spam.Threshold)
	assert.Equal(t, []string{"*"}, config.AllowedOrigins)

	assert.NoError(t, config.Validate())
}

func TestBase64Encoded(t *testing.T) {
	var b Base64Encoded
	require.NoError(t, b.UnmarshalText([]byte("aGVsbG8=")))
	assert.Equal(t, []byte("hello"), []byte(b))

	assert.Error(t, b.UnmarshalText([]byte("not base64!!")))
}
