package recast

import (
	"testing"

	"github.com/gorustyt/gorerecast/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalcGridSize(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, 2, 3}, Max: common.Vec3{1, 2, 6}}
	width, height := CalcGridSize(aabb, 1.5)
	assertTrue(t, width == 1, "computes the size of an x & z axis grid")
	assertTrue(t, height == 2, "computes the size of an x & z axis grid")
}

func TestNewHeightfield(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, 2, 3}, Max: common.Vec3{1, 2, 6}}
	hf, err := NewHeightfield(aabb, 1.5, 2)
	require.NoError(t, err)

	msg := "create a heightfield"
	assertTrue(t, hf.Width == 1, msg)
	assertTrue(t, hf.Height == 2, msg)
	assertTrue(t, hf.Aabb == aabb, msg)
	assertTrue(t, hf.Cs == 1.5, msg)
	assertTrue(t, hf.Ch == 2, msg)
	assertTrue(t, len(hf.Spans) == 2, msg)
	assertTrue(t, hf.pools == nil, msg)
	assertTrue(t, hf.freelist == nil, msg)

	_, err = NewHeightfield(aabb, 0, 2)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, StageHeightfield, StageOf(err))

	flat := Aabb3d{Min: common.Vec3{0, 0, 0}, Max: common.Vec3{0, 1, 0}}
	_, err = NewHeightfield(flat, 1, 1)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func newTestHeightfield(t *testing.T) *Heightfield {
	t.Helper()
	aabb := Aabb3d{Min: common.Vec3{0, 0, 0}, Max: common.Vec3{2, 10, 2}}
	hf, err := NewHeightfield(aabb, 1, 1)
	require.NoError(t, err)
	return hf
}

func columnSpans(hf *Heightfield, x, z int) []Span {
	var spans []Span
	for s := hf.Column(x, z); s != nil; s = s.Next {
		spans = append(spans, Span{Smin: s.Smin, Smax: s.Smax, Area: s.Area})
	}
	return spans
}

func TestAddSpan(t *testing.T) {
	hf := newTestHeightfield(t)

	hf.AddSpan(0, 0, 0, 2, 1, 1)
	hf.AddSpan(0, 0, 4, 6, 1, 1)
	assert.Equal(t, []Span{{Smin: 0, Smax: 2, Area: 1}, {Smin: 4, Smax: 6, Area: 1}}, columnSpans(hf, 0, 0),
		"disjoint spans stay separate and sorted")

	hf.AddSpan(0, 0, 1, 5, 3, 1)
	assert.Equal(t, []Span{{Smin: 0, Smax: 6, Area: 3}}, columnSpans(hf, 0, 0),
		"an overlapping span merges everything it touches")

	hf.AddSpan(1, 1, 0, 2, 9, 1)
	hf.AddSpan(1, 1, 0, 5, 2, 1)
	assert.Equal(t, []Span{{Smin: 0, Smax: 5, Area: 2}}, columnSpans(hf, 1, 1),
		"area only merges when the tops are within the threshold")

	hf.AddSpan(1, 0, 0, 5, 2, 1)
	hf.AddSpan(1, 0, 0, 4, 9, 1)
	assert.Equal(t, []Span{{Smin: 0, Smax: 5, Area: 9}}, columnSpans(hf, 1, 0))

	assert.Equal(t, 3, hf.SpanCount())
}

func TestSpansNeverOverlap(t *testing.T) {
	hf := newTestHeightfield(t)
	ranges := [][2]uint16{{5, 7}, {0, 1}, {3, 4}, {9, 9}, {2, 3}, {8, 8}, {6, 9}}
	for _, r := range ranges {
		hf.AddSpan(0, 0, r[0], r[1], RC_WALKABLE_AREA, 0)
	}
	spans := columnSpans(hf, 0, 0)
	require.NotEmpty(t, spans)
	for i := 1; i < len(spans); i++ {
		assert.Less(t, spans[i-1].Smax, spans[i].Smin)
	}
}

func TestRasterizeTriangle(t *testing.T) {
	aabb := Aabb3d{Min: common.Vec3{0, 0, -1}, Max: common.Vec3{1, 0, 0}}
	solid, err := NewHeightfield(aabb, 0.5, 0.5)
	require.NoError(t, err)
	width := solid.Width

	area := AreaType(42)
	solid.RasterizeTriangle(common.Vec3{0, 0, 0}, common.Vec3{1, 0, 0}, common.Vec3{0, 0, -1}, area, 1)

	msg := "Rasterize a triangle"
	assertTrue(t, solid.Spans[0+0*width] != nil, msg)
	assertTrue(t, solid.Spans[1+0*width] == nil, msg)
	assertTrue(t, solid.Spans[0+1*width] != nil, msg)
	assertTrue(t, solid.Spans[1+1*width] != nil, msg)

	for _, idx := range []int{0 + 0*width, 0 + 1*width, 1 + 1*width} {
		span := solid.Spans[idx]
		assertTrue(t, span.Smin == 0, msg)
		assertTrue(t, span.Smax == 1, msg)
		assertTrue(t, span.Area == area, msg)
		assertTrue(t, span.Next == nil, msg)
	}
}

func TestRasterizeTriangleOutsideBounds(t *testing.T) {
	hf := newTestHeightfield(t)
	hf.RasterizeTriangle(common.Vec3{10, 0, 10}, common.Vec3{11, 0, 10}, common.Vec3{10, 0, 11}, RC_WALKABLE_AREA, 1)
	assert.Zero(t, hf.SpanCount())
}

func TestRasterizeTrianglesRejectsInvalidMesh(t *testing.T) {
	hf := newTestHeightfield(t)
	err := hf.RasterizeTriangles(&TriMesh{
		Vertices: []common.Vec3{{0, 0, 0}},
		Indices:  [][3]uint32{{0, 0, 4}},
	}, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, StageRasterize, StageOf(err))
}

func TestDividePoly(t *testing.T) {
	in := []float32{
		0, 0, 0,
		2, 0, 0,
		2, 0, 2,
		0, 0, 2,
	}
	left := make([]float32, 7*3)
	right := make([]float32, 7*3)
	n1, n2 := dividePoly(in, 4, left, right, 1, axisX)
	assert.Equal(t, 4, n1)
	assert.Equal(t, 4, n2)
	for i := 0; i < n1; i++ {
		assert.LessOrEqual(t, left[i*3], float32(1))
	}
	for i := 0; i < n2; i++ {
		assert.GreaterOrEqual(t, right[i*3], float32(1))
	}
}
