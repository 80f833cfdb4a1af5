package common

import (
	"math"
	"testing"
)

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-5
}

func TestIdentityAndIsIdentity(t *testing.T) {
	m := make([]float32, 16)
	Identity(m)
	if !IsIdentity(m) {
		t.Error("Identity should produce an identity matrix")
	}
	m[12] = 3
	if IsIdentity(m) {
		t.Error("translated matrix must not be identity")
	}
}

func TestMul4Translation(t *testing.T) {
	a := make([]float32, 16)
	b := make([]float32, 16)
	Identity(a)
	Identity(b)
	a[12] = 1
	b[12] = 2

	out := make([]float32, 16)
	Mul4(out, a, b)
	if out[12] != 3 {
		t.Errorf("composed translation: got %v, want 3", out[12])
	}
}

func TestMul4AllowsAliasedOutput(t *testing.T) {
	a := make([]float32, 16)
	b := make([]float32, 16)
	Identity(a)
	Identity(b)
	a[12] = 1
	b[13] = 2

	Mul4(a, a, b)
	if a[12] != 1 || a[13] != 2 {
		t.Errorf("aliased multiply: got (%v,%v), want (1,2)", a[12], a[13])
	}
}

func TestTransformPoint(t *testing.T) {
	m := make([]float32, 16)
	BuildModelMatrix(m, 10, 0, 0, 0, 0, 0, 2, 2, 2)

	x, y, z := TransformPoint(m, 1, 1, 1)
	if !almostEqual(x, 12) || !almostEqual(y, 2) || !almostEqual(z, 2) {
		t.Errorf("got (%v,%v,%v), want (12,2,2)", x, y, z)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := make([]float32, 16)
	Identity(m)
	m[12], m[13], m[14] = 5, 6, 7

	x, y, z := TransformDirection(m, 0, 0, 1)
	if x != 0 || y != 0 || z != 1 {
		t.Errorf("got (%v,%v,%v), want (0,0,1)", x, y, z)
	}
}

func TestNormalize3(t *testing.T) {
	v := Normalize3(3, 0, 4)
	if !almostEqual(v[0], 0.6) || !almostEqual(v[2], 0.8) {
		t.Errorf("got %v, want (0.6,0,0.8)", v)
	}
	if Normalize3(0, 0, 0) != ([3]float32{}) {
		t.Error("zero vector should normalize to zero")
	}
}

func TestScaleOf(t *testing.T) {
	m := make([]float32, 16)
	BuildModelMatrix(m, 0, 0, 0, 0.3, 0.7, 0.1, 2, 3, 4)

	sx, sy, sz := ScaleOf(m)
	if !almostEqual(sx, 2) || !almostEqual(sy, 3) || !almostEqual(sz, 4) {
		t.Errorf("got (%v,%v,%v), want (2,3,4)", sx, sy, sz)
	}
}

func TestRotationOnlyStripsScaleAndTranslation(t *testing.T) {
	m := make([]float32, 16)
	BuildModelMatrix(m, 5, 6, 7, 0, float32(math.Pi/2), 0, 3, 3, 3)

	rot := make([]float32, 16)
	RotationOnly(rot, m)

	// A 90 degree yaw sends +X to -Z with unit length.
	x, y, z := TransformDirection(rot, 1, 0, 0)
	if !almostEqual(x, 0) || !almostEqual(y, 0) || !almostEqual(z, -1) {
		t.Errorf("rotated direction: got (%v,%v,%v), want (0,0,-1)", x, y, z)
	}
	if rot[12] != 0 || rot[13] != 0 || rot[14] != 0 {
		t.Error("rotation-only matrix must drop translation")
	}
}

func TestInvert4RoundTrip(t *testing.T) {
	m := make([]float32, 16)
	BuildModelMatrix(m, 1, 2, 3, 0.5, 1.1, 0.2, 2, 2, 2)

	inv := make([]float32, 16)
	if !Invert4(inv, m) {
		t.Fatal("well-formed transform should be invertible")
	}

	out := make([]float32, 16)
	Mul4(out, inv, m)
	for i := 0; i < 16; i++ {
		want := float32(0)
		if i%5 == 0 {
			want = 1
		}
		if !almostEqual(out[i], want) {
			t.Fatalf("inv*m element %d: got %v, want %v", i, out[i], want)
		}
	}
}

func TestInvert4Singular(t *testing.T) {
	m := make([]float32, 16) // all zero
	inv := make([]float32, 16)
	if Invert4(inv, m) {
		t.Error("singular matrix should not invert")
	}
}
