package downloads

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bathy-export/internal/geo"
)

func TestErrorKindMatching(t *testing.T) {
	base := NewError(KindHTTPError, "status 404")
	wrapped := fmt.Errorf("fetching tile 3: %w", base)

	assert.Equal(t, KindHTTPError, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindHTTPError}))
	assert.False(t, errors.Is(wrapped, &Error{Kind: KindNetworkError}))

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	assert.Equal(t, "status 404", e.Message)
}

func TestWrapErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(KindNetworkError, "request failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "request failed")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(Cancelled))
	assert.True(t, IsCancelled(fmt.Errorf("run: %w", Cancelled)))
	assert.False(t, IsCancelled(NewError(KindHTTPError, "x")))
	assert.False(t, IsCancelled(errors.New("plain")))
}

func TestRequestValidate(t *testing.T) {
	valid := Request{
		BBox:      geo.BoundingBox{XMin: -10, YMin: 40, XMax: 0, YMax: 50},
		Width:     100,
		Height:    100,
		OutputDir: "/tmp/out",
		CRS:       "EPSG:4326",
	}
	assert.NoError(t, valid.Validate())

	bad := valid
	bad.Width = 0
	assert.Equal(t, KindUnexpectedShape, KindOf(bad.Validate()))

	bad = valid
	bad.BBox.XMax = bad.BBox.XMin
	assert.Equal(t, KindUnexpectedShape, KindOf(bad.Validate()))

	bad = valid
	bad.OutputDir = ""
	assert.Equal(t, KindWriteFailure, KindOf(bad.Validate()))

	bad = valid
	bad.CRS = "WGS84"
	assert.Equal(t, KindUnexpectedShape, KindOf(bad.Validate()))
}

func TestValidateOutputPath(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, ValidateOutputPath(dir, filepath.Join(dir, "out.tif")))
	assert.Error(t, ValidateOutputPath(dir, filepath.Join(dir, "..", "escape.tif")))
	assert.Error(t, ValidateOutputPath("", "x"))
}
