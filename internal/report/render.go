package report

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/breachscan/internal/model"
)

// DefaultBaseName returns the default artifact base name for a run started at t.
func DefaultBaseName(t time.Time) string {
	return "breach-report-" + t.Format("20060102-150405")
}

// ArtifactPath joins dir, base and the extension of format.
func ArtifactPath(dir, base string, format model.Format) string {
	return filepath.Join(dir, base+format.Extension())
}

// Render writes rows to path in the given format, creating parent
// directories as needed. Every I/O failure matches ErrWrite and leaves
// no file behind at path.
func Render(rows []model.ReportRow, format model.Format, path string) (model.Artifact, error) {
	return render(rows, format, path, createFile)
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path) //nolint:gosec // Output path is chosen by the user
}

func render(
	rows []model.ReportRow,
	format model.Format,
	path string,
	create func(string) (io.WriteCloser, error),
) (artifact model.Artifact, err error) {
	if _, err := NewWriter(format, io.Discard); err != nil {
		return model.Artifact{}, err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return model.Artifact{}, fmt.Errorf("%w: failed to create %s: %w", ErrWrite, dir, err)
		}
	}

	f, err := create(path)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	closed := false
	defer func() {
		if !closed {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("%w: failed to close %s: %w", ErrWrite, path, cerr)
			}
		}
		if err != nil {
			artifact = model.Artifact{}
			_ = os.Remove(path)
		}
	}()

	buf := bufio.NewWriter(f)
	w, err := NewWriter(format, buf)
	if err != nil {
		return model.Artifact{}, err
	}
	if _, err := w.Write(rows); err != nil {
		return model.Artifact{}, fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err := buf.Flush(); err != nil {
		return model.Artifact{}, fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	closed = true
	if err := f.Close(); err != nil {
		return model.Artifact{}, fmt.Errorf("%w: failed to close %s: %w", ErrWrite, path, err)
	}

	digest, err := Digest(path)
	if err != nil {
		return model.Artifact{}, fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return model.Artifact{Format: format, Path: path, Digest: digest}, nil
}

// Digest returns the hex-encoded SHA3-256 of the file at path.
func Digest(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is an artifact written by Render
	if err != nil {
		return "", err
	}
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
