// Package size resolves the layout size of feed items, either straight from
// declared metadata or by probing the referenced image, and applies the
// footer compensation used by cards that reserve text space below the image.
package size

import "fmt"

// LayoutSize is the width/height contract handed to the layout engine.
// Both dimensions are strictly positive; the aspect ratio is derived.
type LayoutSize struct {
	Width  float64
	Height float64
}

func (s LayoutSize) Valid() bool { return s.Width > 0 && s.Height > 0 }

// Ratio returns height/width.
func (s LayoutSize) Ratio() float64 {
	if s.Width <= 0 {
		return 0
	}
	return s.Height / s.Width
}

// ScaleToWidth returns the height the item takes when the engine renders it
// at the given column width.
func (s LayoutSize) ScaleToWidth(width float64) float64 {
	return width * s.Ratio()
}

func (s LayoutSize) String() string {
	return fmt.Sprintf("%gx%g", s.Width, s.Height)
}

// Adjuster turns a measured natural size into the size given to the layout.
type Adjuster interface {
	Adjust(natural LayoutSize) LayoutSize
}

// FooterAdjuster reserves a fixed-height footer under the image.
//
// The engine scales every item to the reference column width, so the footer
// is expressed in natural coordinates as Footer*(w/Reference); after scaling
// it comes out at exactly Footer regardless of the image's native width.
// This assumes the engine always normalizes width to Reference.
type FooterAdjuster struct {
	Footer    float64
	Reference float64
}

func (a FooterAdjuster) Adjust(natural LayoutSize) LayoutSize {
	if a.Reference <= 0 || a.Footer == 0 {
		return natural
	}
	return LayoutSize{
		Width:  natural.Width,
		Height: natural.Height + a.Footer*(natural.Width/a.Reference),
	}
}

// AdjusterFunc adapts a plain function to Adjuster.
type AdjusterFunc func(LayoutSize) LayoutSize

func (f AdjusterFunc) Adjust(natural LayoutSize) LayoutSize { return f(natural) }
