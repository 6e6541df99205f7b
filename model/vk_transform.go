package model

import (
	lm "github.com/xlab/linmath"
)

// Transform is a 2D position, rotation and scale, usable both for placing
// instances in the world and, inverted, as the camera.
type Transform struct {
	Position [2]float32
	Rotation float32 // degrees, counter clockwise
	Scale    [2]float32
}

func NewTransform(x float32, y float32) Transform {
	return Transform{
		Position: [2]float32{x, y},
		Scale:    [2]float32{1, 1},
	}
}

// ModelMatrix composes translation * rotation * scale, the usual order for
// placing an object in the world.
func (t *Transform) ModelMatrix() lm.Mat4x4 {
	var base, m lm.Mat4x4
	base.Identity()
	m.Rotate(&base, 0, 0, 1, lm.DegreesToRadians(t.Rotation))

	// Mat4x4 is column major: m[col][row].
	for r := 0; r < 3; r++ {
		m[0][r] *= t.Scale[0]
		m[1][r] *= t.Scale[1]
	}
	m[3][0] = t.Position[0]
	m[3][1] = t.Position[1]
	return m
}

// ViewMatrix composes rotation * translation * scale with position and
// rotation negated, turning the transform into a camera: moving the camera
// right moves the world left.
func (t *Transform) ViewMatrix() lm.Mat4x4 {
	var base, m lm.Mat4x4
	base.Identity()
	m.Rotate(&base, 0, 0, 1, lm.DegreesToRadians(-t.Rotation))

	// Translation happens before the rotation here, so the negated position
	// has to pass through the rotated basis first.
	px, py := -t.Position[0], -t.Position[1]
	m[3][0] = m[0][0]*px + m[1][0]*py
	m[3][1] = m[0][1]*px + m[1][1]*py

	for r := 0; r < 3; r++ {
		m[0][r] *= t.Scale[0]
		m[1][r] *= t.Scale[1]
	}
	return m
}
