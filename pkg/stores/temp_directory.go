package stores

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// TempDirectory is the per-installation scratch directory shared by all
// phases of one installation: <base>/<product>_Installation.
type TempDirectory struct {
	Path string
}

// NewTempDirectory resolves the temp directory for a product.
func NewTempDirectory(baseTemp, productName string) TempDirectory {
	if baseTemp == "" {
		baseTemp = os.TempDir()
	}
	return TempDirectory{Path: filepath.Join(baseTemp, productName+"_Installation")}
}

// Join returns a path inside the temp directory.
func (d TempDirectory) Join(elem ...string) string {
	return filepath.Join(append([]string{d.Path}, elem...)...)
}

// StateStore returns the state store kept in this directory.
func (d TempDirectory) StateStore(logger zerolog.Logger) *TempDirStore {
	return NewTempDirStore(d.Path, logger)
}

// CleanUp recursively removes the directory. A failure is logged and
// swallowed.
func (d TempDirectory) CleanUp(logger zerolog.Logger) {
	if _, err := os.Stat(d.Path); os.IsNotExist(err) {
		return
	}
	if err := os.RemoveAll(d.Path); err != nil {
		logger.Warn().Err(err).Str("dir", d.Path).Msg("Failed to clean up temporary installation directory")
		return
	}
	logger.Debug().Str("dir", d.Path).Msg("Removed temporary installation directory")
}
