package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func assertTrue(t *testing.T, value bool, msg string) {
	t.Helper()
	if !value {
		t.Error(msg)
	}
}

func TestClamp(t *testing.T) {
	assertTrue(t, Clamp(2, 0, 1) == 1, "Higher than range error")
	assertTrue(t, Clamp(1, 0, 2) == 1, "Within range error")
	assertTrue(t, Clamp(0, 1, 2) == 1, "Lower than range error")
}

func TestSqrAbs(t *testing.T) {
	assertTrue(t, Sqr(2) == 4, "Sqr squares a number")
	assertTrue(t, Sqr(-4) == 16, "Sqr squares a number")
	assertTrue(t, Abs(-3) == 3, "Abs of negative")
	assertTrue(t, Abs(float32(2.5)) == 2.5, "Abs of positive")
}

func TestVcross(t *testing.T) {
	result := make([]float32, 3)
	Vcross(result, []float32{3, -3, 1}, []float32{4, 9, 2})
	assert.Equal(t, []float32{-15, -2, 39}, result)
}

func TestDirOffsets(t *testing.T) {
	for dir := 0; dir < 4; dir++ {
		dx, dz := GetDirOffsetX(dir), GetDirOffsetY(dir)
		assert.Equal(t, 1, Abs(dx)+Abs(dz), "dir %d must move one cell", dir)
		assert.Equal(t, dir, GetDirForOffset(dx, dz))
		// opposite direction cancels out
		assert.Equal(t, 0, dx+GetDirOffsetX(dir+2))
		assert.Equal(t, 0, dz+GetDirOffsetY(dir+2))
	}
}

func TestNextPrev(t *testing.T) {
	assert.Equal(t, 0, Next(2, 3))
	assert.Equal(t, 2, Prev(0, 3))
	assert.Equal(t, 1, Next(0, 3))
}

func TestIntersect(t *testing.T) {
	a := []int{0, 0, 0, 0}
	b := []int{4, 0, 4, 0}
	c := []int{0, 0, 4, 0}
	d := []int{4, 0, 0, 0}
	assert.True(t, Intersect(a, b, c, d))
	assert.True(t, IntersectProp(a, b, c, d))

	e := []int{5, 0, 5, 0}
	f := []int{6, 0, 6, 0}
	assert.False(t, Intersect(a, b, e, f))

	// touching at an end point is an improper intersection
	g := []int{4, 0, 8, 0}
	assert.True(t, Intersect(a, b, b, g))
	assert.False(t, IntersectProp(a, b, b, g))
}

func TestCalcAreaOfPolygon2D(t *testing.T) {
	ccw := []int{
		0, 0, 0, 0,
		0, 0, 4, 0,
		4, 0, 4, 0,
		4, 0, 0, 0,
	}
	assert.Greater(t, CalcAreaOfPolygon2D(ccw, 4), 0)

	cw := []int{
		0, 0, 0, 0,
		4, 0, 0, 0,
		4, 0, 4, 0,
		0, 0, 4, 0,
	}
	assert.Less(t, CalcAreaOfPolygon2D(cw, 4), 0)
}

func TestCircumCircle(t *testing.T) {
	c := make([]float32, 3)
	r, ok := CircumCircle([]float32{0, 0, 0}, []float32{2, 0, 0}, []float32{0, 0, 2}, c)
	assert.True(t, ok)
	assert.InDelta(t, 1, c[0], 1e-5)
	assert.InDelta(t, 1, c[2], 1e-5)
	assert.InDelta(t, 1.41421, r, 1e-4)

	_, ok = CircumCircle([]float32{0, 0, 0}, []float32{1, 0, 0}, []float32{2, 0, 0}, c)
	assert.False(t, ok)
}

func TestDistToPoly(t *testing.T) {
	square := []float32{
		0, 0, 0,
		0, 0, 2,
		2, 0, 2,
		2, 0, 0,
	}
	assert.Less(t, DistToPoly(4, square, []float32{1, 0, 1}), float32(0))
	assert.InDelta(t, 1, DistToPoly(4, square, []float32{3, 0, 1}), 1e-6)
}

func TestDistPtTri(t *testing.T) {
	a := []float32{0, 1, 0}
	b := []float32{0, 1, 4}
	c := []float32{4, 1, 0}
	assert.InDelta(t, 2, DistPtTri([]float32{1, 3, 1}, a, b, c), 1e-5)
	assert.Greater(t, DistPtTri([]float32{5, 1, 5}, a, b, c), float32(1e30))
}
