package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font used for annotations.
func Font() *truetype.Font {
	return font
}

// DrawString writes text with its top left corner at p, wrapping at the width of the context.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()), 1, gg.AlignLeft)
}

// DrawFilledRectangle paints r with c.
func DrawFilledRectangle(dc *gg.Context, r image.Rectangle, c color.Color) {
	dc.SetColor(c)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Fill()
}

// DrawDot paints a disc of the given radius centered on p. Dots outside the context are clipped.
func DrawDot(dc *gg.Context, p image.Point, radius float64, c color.Color) {
	dc.SetColor(c)
	dc.DrawCircle(float64(p.X), float64(p.Y), radius)
	dc.Fill()
}
