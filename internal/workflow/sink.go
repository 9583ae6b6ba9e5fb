package workflow

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactSink persists downloaded model blobs on the host.
type ArtifactSink interface {
	Persist(ctx context.Context, blob []byte) (ArtifactRecord, error)
}

// FileSink writes artifacts into a directory.
type FileSink struct {
	Dir       string
	FileName  string
	Overwrite bool
	now       func() time.Time
}

// NewFileSink constructs a sink writing fileName under dir.
func NewFileSink(dir, fileName string, overwrite bool) *FileSink {
	return &FileSink{Dir: dir, FileName: fileName, Overwrite: overwrite, now: time.Now}
}

// Persist writes blob atomically. When overwriting is disabled and the target
// exists, a " (N)" suffix is appended before the extension.
func (s *FileSink) Persist(ctx context.Context, blob []byte) (ArtifactRecord, error) {
	if err := ctx.Err(); err != nil {
		return ArtifactRecord{}, err
	}
	name := strings.TrimSpace(s.FileName)
	if name == "" {
		return ArtifactRecord{}, errors.New("artifact file name is empty")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return ArtifactRecord{}, fmt.Errorf("create artifact directory: %w", err)
	}

	target := filepath.Join(s.Dir, name)
	if !s.Overwrite {
		var err error
		target, err = nextAvailablePath(target)
		if err != nil {
			return ArtifactRecord{}, err
		}
	}

	tmp, err := os.CreateTemp(s.Dir, ".artifact-*")
	if err != nil {
		return ArtifactRecord{}, fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		cleanup()
		return ArtifactRecord{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return ArtifactRecord{}, fmt.Errorf("sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return ArtifactRecord{}, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return ArtifactRecord{}, fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return ArtifactRecord{}, fmt.Errorf("move artifact into place: %w", err)
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	return ArtifactRecord{Path: target, Bytes: int64(len(blob)), At: now().UTC()}, nil
}

func nextAvailablePath(path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 1; i < 10000; i++ {
		_, err := os.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat artifact path: %w", err)
		}
		candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
	}
	return "", fmt.Errorf("no free artifact name for %s", path)
}
