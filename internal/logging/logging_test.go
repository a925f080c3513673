package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phaseline/internal/logging"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pl.log")
	log, err := logging.New(logging.Config{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	log.Info("transition executed")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"transition executed"`)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, logging.Config{}.Validate())
	assert.NoError(t, logging.Config{Level: "warn", Format: "console"}.Validate())
	assert.Error(t, logging.Config{Level: "loud"}.Validate())
	assert.Error(t, logging.Config{Format: "xml"}.Validate())
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, logging.OrNop(nil))
}
