// Package storage keeps uploaded screenshot files.
package storage

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/teamclock/teamclock/internal/apperr"
)

const defaultDir = ".config/teamclock/screenshots"

// MaxUploadBytes bounds a single screenshot upload.
const MaxUploadBytes = 10 << 20

// Screenshots stores files under /<user>/<entry>/<name> and hands out URLs
// under a public prefix.
type Screenshots struct {
	fs     afero.Fs
	prefix string
}

// NewScreenshots returns a store rooted at dir on the OS filesystem. An
// empty dir means ~/.config/teamclock/screenshots.
func NewScreenshots(dir, prefix string) (*Screenshots, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get home directory")
		}
		dir = filepath.Join(home, defaultDir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create screenshot directory")
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), dir), prefix), nil
}

// New wraps an arbitrary filesystem. Tests pass afero.NewMemMapFs().
func New(fs afero.Fs, prefix string) *Screenshots {
	if prefix == "" {
		prefix = "/screenshots/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Screenshots{fs: fs, prefix: prefix}
}

// Save writes r and returns the public URL of the stored file.
func (s *Screenshots) Save(userID, entryID, filename string, r io.Reader) (string, error) {
	name := sanitize(filename)
	rel := path.Join("/", sanitize(userID), sanitize(entryID), name)

	if err := s.fs.MkdirAll(path.Dir(rel), 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create screenshot directory")
	}
	f, err := s.fs.Create(rel)
	if err != nil {
		return "", errors.Wrap(err, "failed to create screenshot file")
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return "", errors.Wrap(err, "failed to write screenshot")
	}
	if n > MaxUploadBytes {
		_ = s.fs.Remove(rel)
		return "", apperr.Invalid("Screenshot exceeds the %d MB upload limit", MaxUploadBytes>>20)
	}
	return s.prefix + strings.TrimPrefix(rel, "/"), nil
}

// Open returns the stored file behind a URL produced by Save.
func (s *Screenshots) Open(url string) (afero.File, error) {
	rel := strings.TrimPrefix(url, s.prefix)
	if rel == url || strings.Contains(rel, "..") {
		return nil, os.ErrNotExist
	}
	return s.fs.Open("/" + rel)
}

// FS exposes the underlying filesystem for serving.
func (s *Screenshots) FS() afero.Fs {
	return s.fs
}

func (s *Screenshots) Prefix() string {
	return s.prefix
}

// sanitize reduces a client-supplied name to a single safe path element.
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
