package storage_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamclock/teamclock/internal/storage"
)

func TestSaveAndOpen(t *testing.T) {
	t.Parallel()
	s := storage.New(afero.NewMemMapFs(), "/screenshots")

	url, err := s.Save("u1", "e1", "shot.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/screenshots/u1/e1/shot.png", url)

	f, err := s.Open(url)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestSaveSanitizesNames(t *testing.T) {
	t.Parallel()
	s := storage.New(afero.NewMemMapFs(), "")

	url, err := s.Save("u1", "e1", "../../etc/pass wd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/screenshots/u1/e1/pass_wd", url)

	_, err = s.Open("/screenshots/../secret")
	assert.Error(t, err)
	_, err = s.Open("/elsewhere/u1/e1/pass_wd")
	assert.Error(t, err)
}

func TestSaveRejectsOversize(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	s := storage.New(fs, "")

	_, err := s.Save("u1", "e1", "big.png", bytes.NewReader(make([]byte, storage.MaxUploadBytes+1)))
	require.Error(t, err)

	exists, err := afero.Exists(fs, "/u1/e1/big.png")
	require.NoError(t, err)
	assert.False(t, exists)
}
