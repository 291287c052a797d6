package media

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_RejectsTraversal(t *testing.T) {
	s := NewStorage("/srv/media")

	for _, p := range []string{"", "../etc/passwd", "a/../../b", "a\\b", "..", "a/.."} {
		_, err := s.Resolve(p)
		assert.ErrorIs(t, err, ErrBadPath, p)
	}

	full, err := s.Resolve("dashcam/dev-1/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/media", "dashcam", "dev-1", "a.mp4"), full)
}

func TestServeFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dashcam"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dashcam", "a.jpg"), []byte("jpegbytes"), 0o644))

	s := NewStorage(root)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media/dashcam/a.jpg", nil)
	require.NoError(t, s.ServeFile(rec, req, "dashcam/a.jpg"))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpegbytes", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

	err := s.ServeFile(httptest.NewRecorder(), req, "dashcam")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
