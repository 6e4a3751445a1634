// Package artifact caches derived tables on disk so the pipeline can skip
// expensive rebuilds when the raw input has not changed.
package artifact

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "donorcli/internal/errors"
)

// Fingerprint identifies a raw input file's state. Size plus modification
// time is enough to catch the monthly export refresh this pipeline sees; a
// content hash would cost a full read of the raw file on every check.
type Fingerprint struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mod_time_unix_nano"`
}

// FingerprintOf computes the fingerprint for a raw input file.
func FingerprintOf(path string) (Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Fingerprint{}, apperrors.NewStorageError(fmt.Sprintf("failed to stat raw input %s", path), err)
	}
	return Fingerprint{
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
	}, nil
}

// BuildFunc produces artifact content from the raw input.
type BuildFunc func() ([]byte, error)

// Cache mediates artifact reuse. Force bypasses the cache entirely;
// StalenessCheck compares the raw input's fingerprint against the one
// recorded when the artifact was built.
type Cache struct {
	Force          bool
	StalenessCheck bool
	logger         *slog.Logger
}

// NewCache creates an artifact cache.
func NewCache(force, stalenessCheck bool, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		Force:          force,
		StalenessCheck: stalenessCheck,
		logger:         logger,
	}
}

// GetOrBuild returns the cached artifact at cachePath when it is present and
// fresh, otherwise runs build and persists the result. Build failures
// propagate and leave any existing artifact untouched.
func (c *Cache) GetOrBuild(rawPath, cachePath string, build BuildFunc) ([]byte, error) {
	if !c.Force {
		if content, ok := c.load(rawPath, cachePath); ok {
			return content, nil
		}
	}

	content, err := build()
	if err != nil {
		return nil, err
	}

	if err := c.store(rawPath, cachePath, content); err != nil {
		return nil, err
	}
	return content, nil
}

// load returns the cached content if it exists and passes the staleness check.
func (c *Cache) load(rawPath, cachePath string) ([]byte, bool) {
	content, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}

	if c.StalenessCheck {
		recorded, err := readFingerprint(sidecarPath(cachePath))
		if err != nil {
			c.logger.Warn("artifact fingerprint unreadable, rebuilding",
				slog.String("artifact", cachePath))
			return nil, false
		}
		current, err := FingerprintOf(rawPath)
		if err != nil || current != recorded {
			c.logger.Info("artifact stale, rebuilding",
				slog.String("artifact", cachePath))
			return nil, false
		}
	}

	c.logger.Debug("artifact cache hit", slog.String("artifact", cachePath))
	return content, true
}

// store writes content through a temp file and atomic rename, then records
// the raw input's fingerprint alongside.
func (c *Cache) store(rawPath, cachePath string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return apperrors.NewStorageError("failed to create artifact directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(cachePath), ".artifact_*")
	if err != nil {
		return apperrors.NewStorageError("failed to create temp artifact file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to close temp artifact file", err)
	}
	if err := os.Rename(tmpName, cachePath); err != nil {
		os.Remove(tmpName)
		return apperrors.NewStorageError("failed to replace artifact", err)
	}

	if c.StalenessCheck {
		fp, err := FingerprintOf(rawPath)
		if err != nil {
			return err
		}
		if err := writeFingerprint(sidecarPath(cachePath), fp); err != nil {
			return err
		}
	}
	return nil
}

// sidecarPath is where the raw input fingerprint lives for an artifact.
func sidecarPath(cachePath string) string {
	return cachePath + ".src.json"
}

func readFingerprint(path string) (Fingerprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fingerprint{}, err
	}
	var fp Fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return Fingerprint{}, err
	}
	return fp, nil
}

func writeFingerprint(path string, fp Fingerprint) error {
	data, err := json.Marshal(fp)
	if err != nil {
		return apperrors.NewStorageError("failed to encode fingerprint", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write fingerprint", err)
	}
	return nil
}
