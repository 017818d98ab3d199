// Package placeholder hands out skeleton geometry for items whose real size
// is not known yet. The mapping from slot to size is pure: the same slot
// always yields the same size, so repeated layout passes do not jitter.
package placeholder

import (
	"errors"

	"github.com/matheuskafuri/pinfeed/internal/size"
)

var (
	ErrNoRatios     = errors.New("placeholder: at least one ratio is required")
	ErrBadRatio     = errors.New("placeholder: ratios must be positive")
	ErrBadReference = errors.New("placeholder: reference width must be positive")
)

// DefaultRatios are height/width ratios of typical pin images.
var DefaultRatios = []float64{1.5, 1.25, 1.0, 1.75, 1.33, 0.75}

type Provider struct {
	reference float64
	ratios    []float64
}

// New returns a provider cycling through ratios (height/width) at the given
// reference width.
func New(reference float64, ratios []float64) (*Provider, error) {
	if reference <= 0 {
		return nil, ErrBadReference
	}
	if len(ratios) == 0 {
		return nil, ErrNoRatios
	}
	for _, r := range ratios {
		if r <= 0 {
			return nil, ErrBadRatio
		}
	}
	return &Provider{reference: reference, ratios: append([]float64(nil), ratios...)}, nil
}

// Size returns the placeholder for a slot. Slots wrap modulo the ratio cycle,
// negative ones included.
func (p *Provider) Size(slot int) size.LayoutSize {
	n := len(p.ratios)
	i := slot % n
	if i < 0 {
		i += n
	}
	return size.LayoutSize{Width: p.reference, Height: p.reference * p.ratios[i]}
}

// Skeletons returns the placeholder sizes for slots 0..count-1.
func (p *Provider) Skeletons(count int) []size.LayoutSize {
	if count <= 0 {
		return nil
	}
	out := make([]size.LayoutSize, count)
	for i := range out {
		out[i] = p.Size(i)
	}
	return out
}

func (p *Provider) CycleLen() int { return len(p.ratios) }

func (p *Provider) Reference() float64 { return p.reference }
