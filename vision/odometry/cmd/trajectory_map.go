package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
	"github.com/lucasb-eyer/go-colorful"

	"go.viam.com/monovo/rimage"
)

const (
	mapSize    = 600
	mapOffsetX = 290
	mapOffsetY = 90
	// the first frames draw at the origin while the engine bootstraps
	firstDrawnFrame = 3
)

var (
	mapBackground = color.Black
	referenceDot  = color.RGBA{R: 255, A: 255}
	bannerRect    = image.Rect(10, 20, mapSize, 60)
	rampStart     = colorful.Color{G: 1}
	rampEnd       = colorful.Color{B: 1}
)

// trajectoryMap is a top view of the x/z plane with the estimated and the reference positions of every frame.
type trajectoryMap struct {
	dc     *gg.Context
	frames int
}

func newTrajectoryMap(frames int) *trajectoryMap {
	dc := gg.NewContext(mapSize, mapSize)
	dc.SetColor(mapBackground)
	dc.Clear()
	return &trajectoryMap{dc: dc, frames: frames}
}

func mapPoint(t r3.Vector) image.Point {
	return image.Pt(int(t.X)+mapOffsetX, int(t.Z)+mapOffsetY)
}

// rampColor blends from green on the first frame to blue on the last one.
func (m *trajectoryMap) rampColor(frameID int) color.Color {
	last := m.frames - 1
	if last < 1 {
		last = 1
	}
	return rampStart.BlendRgb(rampEnd, float64(frameID)/float64(last)).Clamped()
}

// Add draws the positions of frameID and refreshes the banner.
func (m *trajectoryMap) Add(frameID int, estimate, reference r3.Vector) {
	if frameID < firstDrawnFrame {
		estimate = r3.Vector{}
	}
	rimage.DrawDot(m.dc, mapPoint(estimate), 1, m.rampColor(frameID))
	rimage.DrawDot(m.dc, mapPoint(reference), 2, referenceDot)
	rimage.DrawFilledRectangle(m.dc, bannerRect, mapBackground)
	text := fmt.Sprintf("Coordinates: x=%.2fm y=%.2fm z=%.2fm", estimate.X, estimate.Y, estimate.Z)
	rimage.DrawString(m.dc, text, image.Pt(20, 30), color.White, 12)
}

func (m *trajectoryMap) Image() image.Image {
	return m.dc.Image()
}

func (m *trajectoryMap) SavePNG(path string) error {
	return m.dc.SavePNG(path)
}
