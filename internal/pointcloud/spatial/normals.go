package spatial

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateNormal is returned whenever a point's neighborhood is too
// sparse or too planar-degenerate to yield a stable principal direction.
var degenerateNormal = r3.Vec{X: 0, Y: 1, Z: 0}

// EstimateNormals computes a per-point normal via PCA over each point's
// k nearest neighbors (excluding itself). Points with fewer than 3
// neighbors get degenerateNormal. The covariance matrix's smallest
// eigenvector is taken as the normal, solved analytically (no iterative
// solver, no external linear-algebra dependency needed for a fixed 3x3),
// then oriented to point away from the neighborhood centroid.
func EstimateNormals(points []r3.Vec, grid *Grid, k int) []r3.Vec {
	normals := make([]r3.Vec, len(points))
	for i, p := range points {
		neighborIdx := grid.KNearest(p, k, i)
		if len(neighborIdx) < 3 {
			normals[i] = degenerateNormal
			continue
		}
		normals[i] = estimateOne(p, neighborIdx, points)
	}
	return normals
}

func estimateOne(p r3.Vec, neighborIdx []int, points []r3.Vec) r3.Vec {
	var centroid r3.Vec
	for _, idx := range neighborIdx {
		q := points[idx]
		centroid.X += q.X
		centroid.Y += q.Y
		centroid.Z += q.Z
	}
	n := float64(len(neighborIdx))
	centroid.X /= n
	centroid.Y /= n
	centroid.Z /= n

	var a, b, c, d, e, f float64 // symmetric 3x3: [a b c; b d e; c e f]
	for _, idx := range neighborIdx {
		q := points[idx]
		dx, dy, dz := q.X-centroid.X, q.Y-centroid.Y, q.Z-centroid.Z
		a += dx * dx
		b += dx * dy
		c += dx * dz
		d += dy * dy
		e += dy * dz
		f += dz * dz
	}
	a /= n
	b /= n
	c /= n
	d /= n
	e /= n
	f /= n

	normal, ok := smallestEigenvector(a, b, c, d, e, f)
	if !ok {
		return degenerateNormal
	}

	toPoint := r3.Vec{X: p.X - centroid.X, Y: p.Y - centroid.Y, Z: p.Z - centroid.Z}
	if dot(normal, toPoint) < 0 {
		normal = r3.Vec{X: -normal.X, Y: -normal.Y, Z: -normal.Z}
	}
	return normal
}

// smallestEigenvector solves for the eigenvector of the smallest
// eigenvalue of the symmetric matrix M = [a b c; b d e; c e f] using the
// closed-form trigonometric solution for symmetric 3x3 matrices: trace
// q = (a+d+f)/3, scale p = sqrt(sum of squared deviations / 6), and the
// smallest root λ = q + 2p·cos(φ + 2π/3) where φ comes from the
// normalized determinant of (M - qI)/p. The corresponding eigenvector is
// any nonzero cross product of two rows of (M - λI); all three row pairs
// are tried since one pair alone can be degenerate.
func smallestEigenvector(a, b, c, d, e, f float64) (r3.Vec, bool) {
	q := (a + d + f) / 3
	pSq := ((a-q)*(a-q) + (d-q)*(d-q) + (f-q)*(f-q) + 2*(b*b+c*c+e*e)) / 6
	if pSq < 0 {
		pSq = 0
	}
	p := math.Sqrt(pSq)
	if p < 1e-15 {
		return r3.Vec{}, false
	}

	// B = (M - qI) / p
	ba, bb, bc := (a-q)/p, b/p, c/p
	bd, be := (d-q)/p, e/p
	bf := (f - q) / p

	det := ba*(bd*bf-be*be) - bb*(bb*bf-be*bc) + bc*(bb*be-bd*bc)
	r := det / 2
	if r > 1 {
		r = 1
	}
	if r < -1 {
		r = -1
	}
	phi := math.Acos(r) / 3

	lambda := q + 2*p*math.Cos(phi+2*math.Pi/3)

	// M - λI
	ma, md, mf := a-lambda, d-lambda, f-lambda
	rows := [3][3]float64{
		{ma, b, c},
		{b, md, e},
		{c, e, mf},
	}

	pairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
	for _, pr := range pairs {
		r1, r2 := rows[pr[0]], rows[pr[1]]
		v := r3.Vec{
			X: r1[1]*r2[2] - r1[2]*r2[1],
			Y: r1[2]*r2[0] - r1[0]*r2[2],
			Z: r1[0]*r2[1] - r1[1]*r2[0],
		}
		norm := math.Sqrt(dot(v, v))
		if norm >= 1e-12 {
			return r3.Vec{X: v.X / norm, Y: v.Y / norm, Z: v.Z / norm}, true
		}
	}
	return r3.Vec{}, false
}

func dot(a, b r3.Vec) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}
