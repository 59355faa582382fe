package common

import "math"

// Last time I checked the if version got compiled using cmov, which was a lot faster than module (with idiv).
func Prev(i, n int) int {
	if i-1 >= 0 {
		return i - 1
	}
	return n - 1
}

func Next(i, n int) int {
	if i+1 < n {
		return i + 1
	}
	return 0
}

func Area2(a, b, c []int) int {
	return (b[0]-a[0])*(c[2]-a[2]) - (c[0]-a[0])*(b[2]-a[2])
}

// Returns true iff c is strictly to the left of the directed
// line through a to b.
func Left(a, b, c []int) bool {
	return Area2(a, b, c) < 0
}

func LeftOn(a, b, c []int) bool {
	return Area2(a, b, c) <= 0
}

func Collinear(a, b, c []int) bool {
	return Area2(a, b, c) == 0
}

// Exclusive or: true iff exactly one argument is true.
func Xorb(x, y bool) bool {
	return x != y
}

// Returns true iff ab properly intersects cd: they share
// a point interior to both segments.  The properness of the
// intersection is ensured by using strict leftness.
func IntersectProp(a, b, c, d []int) bool {
	// Eliminate improper cases.
	if Collinear(a, b, c) || Collinear(a, b, d) ||
		Collinear(c, d, a) || Collinear(c, d, b) {
		return false
	}
	return Xorb(Left(a, b, c), Left(a, b, d)) && Xorb(Left(c, d, a), Left(c, d, b))
}

// Returns T iff (a,b,c) are collinear and point c lies
// on the closed segement ab.
func Between(a, b, c []int) bool {
	if !Collinear(a, b, c) {
		return false
	}
	// If ab not vertical, check betweenness on x; else on y.
	if a[0] != b[0] {
		return ((a[0] <= c[0]) && (c[0] <= b[0])) || ((a[0] >= c[0]) && (c[0] >= b[0]))
	}
	return ((a[2] <= c[2]) && (c[2] <= b[2])) || ((a[2] >= c[2]) && (c[2] >= b[2]))
}

// Returns true iff segments ab and cd intersect, properly or improperly.
func Intersect(a, b, c, d []int) bool {
	if IntersectProp(a, b, c, d) {
		return true
	}
	return Between(a, b, c) || Between(a, b, d) || Between(c, d, a) || Between(c, d, b)
}

// Vequal compares two grid vertices on the xz-plane.
func Vequal(a, b []int) bool {
	return a[0] == b[0] && a[2] == b[2]
}

// Uleft is Left for the unsigned polygon mesh vertices.
func Uleft(a, b, c []uint16) bool {
	return (int(b[0])-int(a[0]))*(int(c[2])-int(a[2]))-(int(c[0])-int(a[0]))*(int(b[2])-int(a[2])) < 0
}

// CalcAreaOfPolygon2D returns the signed area of a contour (4 ints per vertex).
// Negative area means the contour is wound clockwise, a hole.
func CalcAreaOfPolygon2D(verts []int, nverts int) int {
	area := 0
	for i, j := 0, nverts-1; i < nverts; j, i = i, i+1 {
		vi := GetVert4(verts, i)
		vj := GetVert4(verts, j)
		area += vi[0]*vj[2] - vj[0]*vi[2]
	}
	return (area + 1) / 2
}

// IntersectSegContour tests segment d0-d1 against every edge of a contour,
// skipping the edges incident to vertex i.
func IntersectSegContour(d0, d1 []int, i, n int, verts []int) bool {
	// For each edge (k,k+1) of P
	for k := 0; k < n; k++ {
		k1 := Next(k, n)
		// Skip edges incident to i.
		if i == k || i == k1 {
			continue
		}
		p0 := GetVert4(verts, k)
		p1 := GetVert4(verts, k1)
		if Vequal(d0, p0) || Vequal(d1, p0) || Vequal(d0, p1) || Vequal(d1, p1) {
			continue
		}
		if Intersect(d0, d1, p0, p1) {
			return true
		}
	}
	return false
}

// ContourDistancePtSeg is the squared xz distance from (x,z) to segment p-q.
func ContourDistancePtSeg(x, z, px, pz, qx, qz int) float32 {
	pqx := float32(qx - px)
	pqz := float32(qz - pz)
	dx := float32(x - px)
	dz := float32(z - pz)
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = float32(px) + t*pqx - float32(x)
	dz = float32(pz) + t*pqz - float32(z)
	return dx*dx + dz*dz
}

func Vcross2(p1, p2, p3 []float32) float32 {
	u1 := p2[0] - p1[0]
	v1 := p2[2] - p1[2]
	u2 := p3[0] - p1[0]
	v2 := p3[2] - p1[2]
	return u1*v2 - v1*u2
}

func Vdot2(a, b []float32) float32 {
	return a[0]*b[0] + a[2]*b[2]
}

func VdistSq2(p, q []float32) float32 {
	dx := q[0] - p[0]
	dy := q[2] - p[2]
	return dx*dx + dy*dy
}

func Vdist2(p, q []float32) float32 {
	return float32(math.Sqrt(float64(VdistSq2(p, q))))
}

// CircumCircle writes the xz circumcircle of p1,p2,p3 into c and returns its radius.
func CircumCircle(p1, p2, p3, c []float32) (r float32, ok bool) {
	const EPS = 1e-6
	// Calculate the circle relative to p1, to avoid some precision issues.
	v1 := []float32{0, 0, 0}
	v2 := make([]float32, 3)
	v3 := make([]float32, 3)
	Vsub(v2, p2, p1)
	Vsub(v3, p3, p1)

	cp := Vcross2(v1, v2, v3)
	if Abs(cp) > EPS {
		v1Sq := Vdot2(v1, v1)
		v2Sq := Vdot2(v2, v2)
		v3Sq := Vdot2(v3, v3)
		c[0] = (v1Sq*(v2[2]-v3[2]) + v2Sq*(v3[2]-v1[2]) + v3Sq*(v1[2]-v2[2])) / (2 * cp)
		c[1] = 0
		c[2] = (v1Sq*(v3[0]-v2[0]) + v2Sq*(v1[0]-v3[0]) + v3Sq*(v2[0]-v1[0])) / (2 * cp)
		r = Vdist2(c, v1)
		Vadd(c, c, p1)
		return r, true
	}
	copy(c, p1[:3])
	return 0, false
}

// DistPtTri returns the vertical distance from p to triangle abc, or MaxFloat32
// when p is outside the triangle on the xz-plane.
func DistPtTri(p, a, b, c []float32) float32 {
	var v0, v1, v2 [3]float32
	Vsub(v0[:], c, a)
	Vsub(v1[:], b, a)
	Vsub(v2[:], p, a)

	dot00 := Vdot2(v0[:], v0[:])
	dot01 := Vdot2(v0[:], v1[:])
	dot02 := Vdot2(v0[:], v2[:])
	dot11 := Vdot2(v1[:], v1[:])
	dot12 := Vdot2(v1[:], v2[:])

	// Compute barycentric coordinates
	invDenom := 1.0 / (dot00*dot11 - dot01*dot01)
	u := (dot11*dot02 - dot01*dot12) * invDenom
	v := (dot00*dot12 - dot01*dot02) * invDenom

	// If point lies inside the triangle, return interpolated y-coord.
	const EPS = 1e-4
	if u >= -EPS && v >= -EPS && (u+v) <= 1+EPS {
		y := a[1] + v0[1]*u + v1[1]*v
		return Abs(y - p[1])
	}
	return math.MaxFloat32
}

func DistancePtSeg(pt, p, q []float32) float32 {
	pqx := q[0] - p[0]
	pqy := q[1] - p[1]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dy := pt[1] - p[1]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqy*pqy + pqz*pqz
	t := pqx*dx + pqy*dy + pqz*dz
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = p[0] + t*pqx - pt[0]
	dy = p[1] + t*pqy - pt[1]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dy*dy + dz*dz
}

func DistancePtSeg2d(pt, p, q []float32) float32 {
	pqx := q[0] - p[0]
	pqz := q[2] - p[2]
	dx := pt[0] - p[0]
	dz := pt[2] - p[2]
	d := pqx*pqx + pqz*pqz
	t := pqx*dx + pqz*dz
	if d > 0 {
		t /= d
	}
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	dx = p[0] + t*pqx - pt[0]
	dz = p[2] + t*pqz - pt[2]
	return dx*dx + dz*dz
}

// DistToTriMesh returns the smallest vertical distance from p to the
// triangles (4 ints per triangle), or -1 if p is above none of them.
func DistToTriMesh(p, verts []float32, tris []int, ntris int) float32 {
	dmin := float32(math.MaxFloat32)
	for i := 0; i < ntris; i++ {
		va := GetVert3(verts, tris[i*4+0])
		vb := GetVert3(verts, tris[i*4+1])
		vc := GetVert3(verts, tris[i*4+2])
		d := DistPtTri(p, va, vb, vc)
		if d < dmin {
			dmin = d
		}
	}
	if dmin == math.MaxFloat32 {
		return -1
	}
	return dmin
}

// DistToPoly returns the squared xz distance to the polygon outline,
// negative when p lies inside.
func DistToPoly(nvert int, verts []float32, p []float32) float32 {
	dmin := float32(math.MaxFloat32)
	c := false
	for i, j := 0, nvert-1; i < nvert; j, i = i, i+1 {
		vi := GetVert3(verts, i)
		vj := GetVert3(verts, j)
		if ((vi[2] > p[2]) != (vj[2] > p[2])) &&
			(p[0] < (vj[0]-vi[0])*(p[2]-vi[2])/(vj[2]-vi[2])+vi[0]) {
			c = !c
		}
		dmin = min(dmin, DistancePtSeg2d(p, vj, vi))
	}
	if c {
		return -dmin
	}
	return dmin
}
