package decode

// Apply4x4 applies a row-major 4x4 transform (translation in the last
// column) to a point, per spec.md §4.1 PTX. Grounded on the same
// transform-application idiom as the pose-application helper in the
// teacher's coordinate math.
func Apply4x4(x, y, z float64, m [16]float64) (ox, oy, oz float64) {
	ox = m[0]*x + m[1]*y + m[2]*z + m[3]
	oy = m[4]*x + m[5]*y + m[6]*z + m[7]
	oz = m[8]*x + m[9]*y + m[10]*z + m[11]
	return
}

// ApplyQuaternionPose rotates (x,y,z) by quaternion (qw,qx,qy,qz) then
// translates by (tx,ty,tz), per spec.md §4.1 PCD/E57 pose/viewpoint
// handling.
func ApplyQuaternionPose(x, y, z, qw, qx, qy, qz, tx, ty, tz float64) (ox, oy, oz float64) {
	// Standard quaternion-vector rotation v' = v + 2*qw*(q×v) + 2*q×(q×v).
	crossX := qy*z - qz*y
	crossY := qz*x - qx*z
	crossZ := qx*y - qy*x

	cross2X := qy*crossZ - qz*crossY
	cross2Y := qz*crossX - qx*crossZ
	cross2Z := qx*crossY - qy*crossX

	rx := x + 2*qw*crossX + 2*cross2X
	ry := y + 2*qw*crossY + 2*cross2Y
	rz := z + 2*qw*crossZ + 2*cross2Z

	return rx + tx, ry + ty, rz + tz
}

// Identity4x4 is the row-major identity, used to detect and skip a no-op
// PTX per-scan transform.
var Identity4x4 = [16]float64{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}
