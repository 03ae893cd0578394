package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesRange(t *testing.T) {
	_, err := New(0, 0, 0)
	require.NoError(t, err)

	_, err = New(3, 8, 0) // x out of range for z=3 (0..7)
	require.Error(t, err)
	var ierr ErrInvalidTile
	require.ErrorAs(t, err, &ierr)

	_, err = New(31, 0, 0)
	require.Error(t, err)
}

func TestTightBBoxZoomZeroCoversWorld(t *testing.T) {
	id, err := New(0, 0, 0)
	require.NoError(t, err)
	box := id.TightBBox()
	assert.InDelta(t, -20037508.342789244, box.MinX, 1e-3)
	assert.InDelta(t, 20037508.342789244, box.MaxX, 1e-3)
	assert.InDelta(t, -20037508.342789244, box.MinY, 1e-3)
	assert.InDelta(t, 20037508.342789244, box.MaxY, 1e-3)
}

func TestBufferedBBoxGrowsBeyondTight(t *testing.T) {
	id, err := New(4, 3, 3)
	require.NoError(t, err)
	tight := id.TightBBox()
	buf := id.BufferedBBox(4096, 64)
	assert.Less(t, buf.MinX, tight.MinX)
	assert.Greater(t, buf.MaxX, tight.MaxX)
	assert.Less(t, buf.MinY, tight.MinY)
	assert.Greater(t, buf.MaxY, tight.MaxY)
}

func TestTransformProjectsTightBoxToExtent(t *testing.T) {
	id, err := New(4, 3, 3)
	require.NoError(t, err)
	box := id.TightBBox()
	tr := id.Transform(4096)

	x0, y0 := tr.Project(box.MinX, box.MaxY) // top-left
	assert.InDelta(t, 0, x0, 1e-6)
	assert.InDelta(t, 0, y0, 1e-6)

	x1, y1 := tr.Project(box.MaxX, box.MinY) // bottom-right
	assert.InDelta(t, 4096, x1, 1e-6)
	assert.InDelta(t, 4096, y1, 1e-6)
}
