package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_WritesJSONToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")

	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("delivery failed", zap.Uint("entry_id", 7))
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"delivery failed"`)
	assert.Contains(t, string(content), `"entry_id":7`)
	assert.NotContains(t, string(content), "hidden")
}

func TestNew_FileOutputRequiresPath(t *testing.T) {
	_, err := New(config.LoggingConfig{Output: "both"})
	assert.Error(t, err)
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	logger, err := New(config.LoggingConfig{Level: "verbose", Output: "stdout"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}
