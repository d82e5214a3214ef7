package math3d

import (
	"math"
	"testing"
)

func vecNear(a, b Vec3, eps float64) bool {
	return math.Abs(a.X-b.X) <= eps && math.Abs(a.Y-b.Y) <= eps && math.Abs(a.Z-b.Z) <= eps
}

func TestFromQuatIdentity(t *testing.T) {
	m := FromQuat([4]float64{0, 0, 0, 1})
	if m != Identity() {
		t.Errorf("identity quaternion = %v, want identity matrix", m)
	}
}

func TestFromQuatMatchesRotateY(t *testing.T) {
	angle := 0.7
	q := [4]float64{0, math.Sin(angle / 2), 0, math.Cos(angle / 2)}
	got := FromQuat(q).MulVec3Dir(V3(1, 0, 0))
	want := RotateY(angle).MulVec3Dir(V3(1, 0, 0))
	if !vecNear(got, want, 1e-12) {
		t.Errorf("FromQuat rotated x = %v, want %v", got, want)
	}
}

func TestTRSOrder(t *testing.T) {
	// Scale first, then rotate a quarter turn about Y, then translate.
	q := [4]float64{0, math.Sin(math.Pi / 4), 0, math.Cos(math.Pi / 4)}
	m := TRS(V3(10, 0, 0), q, V3(2, 2, 2))
	got := m.MulVec3(V3(1, 0, 0))
	want := V3(10, 0, -2)
	if !vecNear(got, want, 1e-9) {
		t.Errorf("TRS point = %v, want %v", got, want)
	}
}

func TestViewFromBasisMapsForwardToMinusZ(t *testing.T) {
	eye := V3(1, 2, 3)
	view := ViewFromBasis(eye, V3(1, 0, 0), V3(0, -1, 0), V3(0, 0, -1))

	got := view.MulVec3(eye.Add(V3(5, 0, 0)))
	if !vecNear(got, V3(0, 0, -5), 1e-12) {
		t.Errorf("point ahead of eye = %v, want (0, 0, -5)", got)
	}

	if got := view.MulVec3(eye); !vecNear(got, Zero3(), 1e-12) {
		t.Errorf("eye in view space = %v, want origin", got)
	}
}

func TestLookAtAgreesWithViewFromBasis(t *testing.T) {
	eye := V3(0, 0, 5)
	a := LookAt(eye, Zero3(), Up())
	b := ViewFromBasis(eye, V3(0, 0, -1), V3(0, 1, 0), V3(1, 0, 0))
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			t.Fatalf("element %d: LookAt %v, ViewFromBasis %v", i, a[i], b[i])
		}
	}
}

func TestInverseRoundTrip(t *testing.T) {
	m := Translate(V3(1, 2, 3)).Mul(RotateY(0.5)).Mul(Scale(V3(2, 3, 4)))
	p := V3(-1, 0.5, 7)
	back := m.Inverse().MulVec3(m.MulVec3(p))
	if !vecNear(back, p, 1e-9) {
		t.Errorf("inverse round trip = %v, want %v", back, p)
	}
}

func TestNormalMatrixNonUniformScale(t *testing.T) {
	// A 45 degree plane squashed along Y keeps its normal perpendicular.
	m := Scale(V3(1, 0.5, 1))
	tangent := m.MulVec3Dir(V3(1, 1, 0))
	normal := m.NormalMatrix().MulVec3Dir(V3(1, -1, 0))
	if d := tangent.Dot(normal); math.Abs(d) > 1e-12 {
		t.Errorf("transformed normal not perpendicular, dot = %v", d)
	}
}

func TestVec3ClampAndAxis(t *testing.T) {
	v := V3(-1, 5, 0.5).Clamp(Zero3(), V3(2, 2, 2))
	if v != V3(0, 2, 0.5) {
		t.Errorf("Clamp = %v, want (0, 2, 0.5)", v)
	}
	for i, want := range []float64{0, 2, 0.5} {
		if v.Axis(i) != want {
			t.Errorf("Axis(%d) = %v, want %v", i, v.Axis(i), want)
		}
	}
}
