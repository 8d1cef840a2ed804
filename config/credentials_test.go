package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/ini.v1"
)

func TestWriteDefaultCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path, err := WriteDefaultCredentials("AKIAEXAMPLE", "secret-key", "session-token")
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, ".aws", "credentials"), path)

	cfg, err := ini.Load(path)
	require.NoError(t, err)

	section := cfg.Section("default")
	assert.Equal(t, "AKIAEXAMPLE", section.Key("aws_access_key_id").String())
	assert.Equal(t, "secret-key", section.Key("aws_secret_access_key").String())
	assert.Equal(t, "session-token", section.Key("aws_session_token").String())
}

func TestWriteDefaultCredentials_OverwritesWholeFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	awsDir := filepath.Join(home, ".aws")
	require.NoError(t, os.MkdirAll(awsDir, 0700))
	existing := "[other]\naws_access_key_id = OLD\n\n[default]\naws_access_key_id = STALE\n"
	require.NoError(t, os.WriteFile(filepath.Join(awsDir, "credentials"), []byte(existing), 0600))

	path, err := WriteDefaultCredentials("AKIANEW", "new-secret", "new-token")
	require.NoError(t, err)

	cfg, err := ini.Load(path)
	require.NoError(t, err)

	// The write replaces the file: no merge with pre-existing profiles.
	_, err = cfg.GetSection("other")
	assert.Error(t, err)
	assert.Equal(t, "AKIANEW", cfg.Section("default").Key("aws_access_key_id").String())
}

func TestDefaultSink(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path, err := DefaultSink{}.PersistDefault("AKIA", "secret", "token")
	require.NoError(t, err)
	assert.FileExists(t, path)
}
