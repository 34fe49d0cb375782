package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WritesToLogsFolder(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOGS_FOLDER", dir)

	require.NoError(t, Init(true))
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	log.Info().Msg("hello")
	assert.FileExists(t, filepath.Join(dir, FileName))
}

func TestInit_UnwritableFolder(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	t.Setenv("LOGS_FOLDER", filepath.Join(blocker, "logs"))

	assert.Error(t, Init(false), "log folder cannot be created under a file")
}
