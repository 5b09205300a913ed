package decode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApply4x4Identity(t *testing.T) {
	x, y, z := Apply4x4(1, 2, 3, Identity4x4)
	require.InDelta(t, 1.0, x, 1e-9)
	require.InDelta(t, 2.0, y, 1e-9)
	require.InDelta(t, 3.0, z, 1e-9)
}

func TestApply4x4Translation(t *testing.T) {
	m := Identity4x4
	m[3], m[7], m[11] = 10, 20, 30
	x, y, z := Apply4x4(1, 1, 1, m)
	require.InDelta(t, 11.0, x, 1e-9)
	require.InDelta(t, 21.0, y, 1e-9)
	require.InDelta(t, 31.0, z, 1e-9)
}

func TestApplyQuaternionPoseIdentity(t *testing.T) {
	x, y, z := ApplyQuaternionPose(1, 2, 3, 1, 0, 0, 0, 0, 0, 0)
	require.InDelta(t, 1.0, x, 1e-9)
	require.InDelta(t, 2.0, y, 1e-9)
	require.InDelta(t, 3.0, z, 1e-9)
}

func TestApplyQuaternionPoseTranslationOnly(t *testing.T) {
	x, y, z := ApplyQuaternionPose(0, 0, 0, 1, 0, 0, 0, 5, 6, 7)
	require.InDelta(t, 5.0, x, 1e-9)
	require.InDelta(t, 6.0, y, 1e-9)
	require.InDelta(t, 7.0, z, 1e-9)
}

func TestApplyQuaternionPose90DegAboutZ(t *testing.T) {
	// 90 deg about Z: qw=cos(45deg), qz=sin(45deg)
	half := math.Pi / 4
	qw := math.Cos(half)
	qz := math.Sin(half)
	x, y, z := ApplyQuaternionPose(1, 0, 0, qw, 0, 0, qz, 0, 0, 0)
	require.InDelta(t, 0.0, x, 1e-9)
	require.InDelta(t, 1.0, y, 1e-9)
	require.InDelta(t, 0.0, z, 1e-9)
}
