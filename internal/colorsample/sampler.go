// Package colorsample reduces a decoded pixel grid to one representative
// color under a selectable weighting strategy.
package colorsample

import (
	"image"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Strategy selects how sampled pixels are weighted before aggregation.
type Strategy string

const (
	StrategyEdge       Strategy = "edge"
	StrategyCenter     Strategy = "center"
	StrategyAverage    Strategy = "average"
	StrategySaturation Strategy = "saturation"
)

const (
	// gridStride skips pixels for performance; the result only needs to be
	// representative, not exhaustive.
	gridStride = 4
	// alphaThreshold discards near-transparent pixels (16-bit alpha scale).
	alphaThreshold = 0x2000
	// brightness gates drop near-black and near-white pixels that would
	// otherwise dominate icons with large flat backgrounds.
	minLuminance = 0.05
	maxLuminance = 0.95
	// quantShift collapses each 8-bit channel to 3 significant bits so
	// visually similar pixels land in one bucket.
	quantShift = 5
)

// ParseStrategy maps a configuration string to a Strategy. Unrecognized
// values fall back to the average strategy.
func ParseStrategy(value string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyEdge:
		return StrategyEdge
	case StrategyCenter:
		return StrategyCenter
	case StrategySaturation:
		return StrategySaturation
	case StrategyAverage:
		return StrategyAverage
	default:
		return StrategyAverage
	}
}

type bucket struct {
	weight    float64
	sumR      float64
	sumG      float64
	sumB      float64
	sumWeight float64
}

// Sample returns the representative color of the image under the strategy.
// The second return is false when no pixel survives the alpha and
// brightness gates. The result is deterministic: the same grid and
// strategy always produce the same color, with ties broken by the first
// maximum in scan order.
func Sample(img image.Image, strategy Strategy) (colorful.Color, bool) {
	bounds := img.Bounds()
	center := image.Point{
		X: bounds.Min.X + bounds.Dx()/2,
		Y: bounds.Min.Y + bounds.Dy()/2,
	}
	maxDistance := math.Hypot(float64(bounds.Dx())/2, float64(bounds.Dy())/2)
	if maxDistance == 0 {
		maxDistance = 1
	}

	buckets := make(map[uint32]*bucket)
	order := make([]uint32, 0, 64)

	for y := bounds.Min.Y; y < bounds.Max.Y; y += gridStride {
		for x := bounds.Min.X; x < bounds.Max.X; x += gridStride {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if a16 < alphaThreshold {
				continue
			}
			r := float64(r16) / 0xffff
			g := float64(g16) / 0xffff
			b := float64(b16) / 0xffff
			luminance := 0.299*r + 0.587*g + 0.114*b
			if luminance < minLuminance || luminance > maxLuminance {
				continue
			}

			weight := pixelWeight(strategy, x, y, center, maxDistance, r, g, b)
			key := quantKey(r16, g16, b16)
			entry, ok := buckets[key]
			if !ok {
				entry = &bucket{}
				buckets[key] = entry
				order = append(order, key)
			}
			entry.weight += weight
			entry.sumR += r * weight
			entry.sumG += g * weight
			entry.sumB += b * weight
			entry.sumWeight += weight
		}
	}

	var winner *bucket
	for _, key := range order {
		entry := buckets[key]
		if winner == nil || entry.weight > winner.weight {
			winner = entry
		}
	}
	if winner == nil || winner.sumWeight == 0 {
		return colorful.Color{}, false
	}

	// Weight-average inside the winning bucket rather than returning the
	// bucket's quantization anchor; this keeps perceptual accuracy despite
	// the coarse bucketing.
	return colorful.Color{
		R: winner.sumR / winner.sumWeight,
		G: winner.sumG / winner.sumWeight,
		B: winner.sumB / winner.sumWeight,
	}, true
}

// SampleHex is Sample with the result rendered as a #rrggbb string.
func SampleHex(img image.Image, strategy Strategy) (string, bool) {
	color, ok := Sample(img, strategy)
	if !ok {
		return "", false
	}
	return color.Clamped().Hex(), true
}

func pixelWeight(strategy Strategy, x, y int, center image.Point, maxDistance, r, g, b float64) float64 {
	switch strategy {
	case StrategyEdge:
		distance := math.Hypot(float64(x-center.X), float64(y-center.Y))
		return 0.1 + distance/maxDistance
	case StrategyCenter:
		distance := math.Hypot(float64(x-center.X), float64(y-center.Y))
		return 0.1 + (1 - distance/maxDistance)
	case StrategySaturation:
		_, saturation, _ := colorful.Color{R: r, G: g, B: b}.Hsv()
		return 0.1 + saturation
	default:
		return 1
	}
}

func quantKey(r16, g16, b16 uint32) uint32 {
	r := uint32(r16>>8) >> quantShift
	g := uint32(g16>>8) >> quantShift
	b := uint32(b16>>8) >> quantShift
	return r<<16 | g<<8 | b
}
