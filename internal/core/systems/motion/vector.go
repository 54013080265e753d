package motion

import "math"

type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (v Vec2) Add(o Vec2) Vec2         { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec2) Scale(f float64) Vec2    { return Vec2{X: v.X * f, Y: v.Y * f} }
func (v Vec2) Distance(o Vec2) float64 { return math.Hypot(o.X-v.X, o.Y-v.Y) }
func (v Vec2) Length() float64         { return math.Hypot(v.X, v.Y) }
