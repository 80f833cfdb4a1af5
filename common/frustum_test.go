package common

import (
	"math"
	"testing"
)

func testFrustum() Frustum {
	proj := make([]float32, 16)
	view := make([]float32, 16)
	vp := make([]float32, 16)
	Perspective(proj, float32(math.Pi/2), 1, 0.1, 100)
	LookAt(view, 0, 0, 10, 0, 0, 0, 0, 1, 0)
	Mul4(vp, proj, view)
	return ExtractFrustumFromMatrix(vp)
}

func TestFrustumContainsVisibleBox(t *testing.T) {
	f := testFrustum()
	if !f.ContainsAABB([3]float32{-1, -1, -1}, [3]float32{1, 1, 1}) {
		t.Error("box in front of the camera should be inside")
	}
}

func TestFrustumRejectsBoxBehindCamera(t *testing.T) {
	f := testFrustum()
	if f.ContainsAABB([3]float32{-1, -1, 20}, [3]float32{1, 1, 22}) {
		t.Error("box behind the camera should be outside")
	}
}

func TestFrustumRejectsBoxOutsideSidePlanes(t *testing.T) {
	f := testFrustum()
	// With a 90 degree FOV at distance 10 the half-width is 10.
	if f.ContainsAABB([3]float32{50, -1, -1}, [3]float32{52, 1, 1}) {
		t.Error("box far to the right should be outside")
	}
	if f.ContainsAABB([3]float32{-52, -1, -1}, [3]float32{-50, 1, 1}) {
		t.Error("box far to the left should be outside")
	}
}

func TestFrustumKeepsStraddlingBox(t *testing.T) {
	f := testFrustum()
	// A box crossing the left plane is conservatively kept.
	if !f.ContainsAABB([3]float32{-15, -1, -1}, [3]float32{-5, 1, 1}) {
		t.Error("box straddling a plane should be reported inside")
	}
}

func TestFrustumPlanesAreNormalized(t *testing.T) {
	f := testFrustum()
	for i, p := range f.Planes {
		lenSq := p.Normal[0]*p.Normal[0] + p.Normal[1]*p.Normal[1] + p.Normal[2]*p.Normal[2]
		if math.Abs(float64(lenSq)-1) > 1e-4 {
			t.Errorf("plane %d normal length squared: got %v, want 1", i, lenSq)
		}
	}
}
