package model

import (
	"math"
	"testing"
)

func almostEq(a float32, b float32) bool {
	return math.Abs(float64(a)-float64(b)) < 1e-5
}

func TestNewTransformDefaults(t *testing.T) {
	tr := NewTransform(4, -2)
	if tr.Position[0] != 4 || tr.Position[1] != -2 {
		t.Errorf("New transform should sit at [4 -2] but sits at %v", tr.Position)
	}
	if tr.Rotation != 0 {
		t.Errorf("New transform should not be rotated but has %f degrees", tr.Rotation)
	}
	if tr.Scale[0] != 1 || tr.Scale[1] != 1 {
		t.Errorf("New transform should have unit scale but has %v", tr.Scale)
	}
}

func TestModelMatrixIdentity(t *testing.T) {
	tr := NewTransform(0, 0)
	m := tr.ModelMatrix()
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			want := float32(0)
			if c == r {
				want = 1
			}
			if !almostEq(m[c][r], want) {
				t.Errorf("Default transform should produce the identity, m[%d][%d] was %f", c, r, m[c][r])
			}
		}
	}
}

func TestModelMatrixTranslation(t *testing.T) {
	tr := NewTransform(10, 20)
	m := tr.ModelMatrix()
	if !almostEq(m[3][0], 10) || !almostEq(m[3][1], 20) {
		t.Errorf("Translation should land in the last column, got [%f %f]", m[3][0], m[3][1])
	}
	if !almostEq(m[0][0], 1) || !almostEq(m[1][1], 1) {
		t.Errorf("Pure translation should keep a unit basis, got %f and %f on the diagonal", m[0][0], m[1][1])
	}
}

func TestModelMatrixRotation(t *testing.T) {
	tr := NewTransform(0, 0)
	tr.Rotation = 90
	m := tr.ModelMatrix()

	// 90 degrees counter clockwise maps the x-axis onto the y-axis.
	if !almostEq(m[0][0], 0) || !almostEq(m[0][1], 1) {
		t.Errorf("Rotated x-axis should be [0 1], got [%f %f]", m[0][0], m[0][1])
	}
	if !almostEq(m[1][0], -1) || !almostEq(m[1][1], 0) {
		t.Errorf("Rotated y-axis should be [-1 0], got [%f %f]", m[1][0], m[1][1])
	}
}

func TestModelMatrixScale(t *testing.T) {
	tr := NewTransform(0, 0)
	tr.Scale = [2]float32{2, 3}
	m := tr.ModelMatrix()
	if !almostEq(m[0][0], 2) || !almostEq(m[1][1], 3) {
		t.Errorf("Scale should stretch the basis to [2 3], got [%f %f]", m[0][0], m[1][1])
	}
}

func TestViewMatrixInvertsPosition(t *testing.T) {
	cam := NewTransform(10, 20)
	m := cam.ViewMatrix()
	if !almostEq(m[3][0], -10) || !almostEq(m[3][1], -20) {
		t.Errorf("Moving the camera right should move the world left, got [%f %f]", m[3][0], m[3][1])
	}
}

func TestViewMatrixInvertsRotation(t *testing.T) {
	cam := NewTransform(0, 0)
	cam.Rotation = 90
	m := cam.ViewMatrix()

	// The world should appear rotated 90 degrees clockwise.
	if !almostEq(m[0][0], 0) || !almostEq(m[0][1], -1) {
		t.Errorf("Viewed x-axis should be [0 -1], got [%f %f]", m[0][0], m[0][1])
	}
	if !almostEq(m[1][0], 1) || !almostEq(m[1][1], 0) {
		t.Errorf("Viewed y-axis should be [1 0], got [%f %f]", m[1][0], m[1][1])
	}
}

func TestViewMatrixCentersOnCamera(t *testing.T) {
	cam := NewTransform(5, -3)
	cam.Rotation = 30
	m := cam.ViewMatrix()

	// A point at the camera's own position has to land on the origin no
	// matter how the camera is rotated.
	x := m[0][0]*5 + m[1][0]*(-3) + m[3][0]
	y := m[0][1]*5 + m[1][1]*(-3) + m[3][1]
	if !almostEq(x, 0) || !almostEq(y, 0) {
		t.Errorf("Camera position should map onto the origin, got [%f %f]", x, y)
	}
}
