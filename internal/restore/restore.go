// Package restore recombines an original image with an inpainted rendition
// using the mask that drove the inpainting: inpainted pixels stay inside the
// masked region, original pixels are composited back everywhere else, and the
// boundary between the two is feathered so no hard seam survives.
package restore

import (
	"fmt"
	"image"
	"math"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// MaskChannel selects which channel of the mask image carries the region.
type MaskChannel string

const (
	ChannelRed   MaskChannel = "red"
	ChannelGreen MaskChannel = "green"
	ChannelBlue  MaskChannel = "blue"
	ChannelAlpha MaskChannel = "alpha"

	// ChannelAuto picks alpha when the mask actually varies there,
	// otherwise red. Grayscale PNG masks decode with constant alpha, so
	// red is the right channel for the common case.
	ChannelAuto MaskChannel = "auto"
)

// BlendMode shapes the feathered transition between original and inpainted.
type BlendMode string

const (
	// BlendLinear interpolates proportionally to the feathered mask value.
	BlendLinear BlendMode = "linear"

	// BlendSmooth applies a smoothstep curve for a softer visual ramp.
	BlendSmooth BlendMode = "smooth"
)

// Options tunes one restoration pass.
type Options struct {
	// FeatherRadius is the blur radius, in pixels, applied to the mask
	// before blending. Zero keeps the mask edge exact.
	FeatherRadius int

	BlendMode   BlendMode
	MaskChannel MaskChannel
}

// DefaultOptions returns the restoration defaults.
func DefaultOptions() Options {
	return Options{FeatherRadius: 2, BlendMode: BlendSmooth, MaskChannel: ChannelAuto}
}

// ParseBlendMode validates a user-supplied blend mode, defaulting empty input.
func ParseBlendMode(s string) (BlendMode, error) {
	switch BlendMode(s) {
	case "":
		return DefaultOptions().BlendMode, nil
	case BlendLinear, BlendSmooth:
		return BlendMode(s), nil
	}
	return "", fmt.Errorf("unknown blend mode %q (want linear or smooth)", s)
}

// ParseMaskChannel validates a user-supplied mask channel, defaulting empty
// input.
func ParseMaskChannel(s string) (MaskChannel, error) {
	switch MaskChannel(s) {
	case "":
		return DefaultOptions().MaskChannel, nil
	case ChannelRed, ChannelGreen, ChannelBlue, ChannelAlpha, ChannelAuto:
		return MaskChannel(s), nil
	}
	return "", fmt.Errorf("unknown mask channel %q (want red, green, blue, alpha or auto)", s)
}

// Restore composites original pixels back outside the masked region of the
// inpainted image. All three images must share pixel dimensions.
func Restore(originalData, maskData, inpaintedData []byte, opts Options) ([]byte, error) {
	const op = "restore.Restore"

	original, _, err := utils.DecodeImageBytes(originalData)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, op, "failed to decode original image", err)
	}
	mask, _, err := utils.DecodeImageBytes(maskData)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, op, "failed to decode mask image", err)
	}
	inpainted, _, err := utils.DecodeImageBytes(inpaintedData)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, op, "failed to decode inpainted image", err)
	}

	// A mismatch means the caller handed us artifacts from different runs;
	// that is a processing failure, not bad request syntax.
	ob, mb, ib := original.Bounds(), mask.Bounds(), inpainted.Bounds()
	if ob.Dx() != mb.Dx() || ob.Dy() != mb.Dy() || ob.Dx() != ib.Dx() || ob.Dy() != ib.Dy() {
		return nil, apperr.New(apperr.Internal, op, fmt.Sprintf(
			"image dimensions differ: original %dx%d, mask %dx%d, inpainted %dx%d",
			ob.Dx(), ob.Dy(), mb.Dx(), mb.Dy(), ib.Dx(), ib.Dy()))
	}

	result := Blend(original, mask, inpainted, opts)

	out, err := utils.EncodePNG(result)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, op, "failed to encode restored image", err)
	}
	return out, nil
}

// Blend performs the pixel recombination on decoded images. Dimensions must
// already agree.
func Blend(original, mask, inpainted image.Image, opts Options) *image.RGBA {
	if opts.BlendMode == "" {
		opts.BlendMode = DefaultOptions().BlendMode
	}
	if opts.MaskChannel == "" {
		opts.MaskChannel = DefaultOptions().MaskChannel
	}

	w, h := original.Bounds().Dx(), original.Bounds().Dy()
	weights := maskWeights(mask, resolveChannel(mask, opts.MaskChannel))
	if opts.FeatherRadius > 0 {
		weights = boxBlur(weights, w, h, opts.FeatherRadius)
	}

	orig := toRGBA(original)
	inp := toRGBA(inpainted)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := weights[y*w+x]
			if opts.BlendMode == BlendSmooth {
				t = smoothstep(t)
			}
			oi := orig.PixOffset(x, y)
			ii := inp.PixOffset(x, y)
			di := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				dst.Pix[di+c] = mix(orig.Pix[oi+c], inp.Pix[ii+c], t)
			}
		}
	}
	return dst
}

// resolveChannel turns ChannelAuto into a concrete channel by inspecting the
// mask: alpha when it varies, red otherwise.
func resolveChannel(mask image.Image, ch MaskChannel) MaskChannel {
	if ch != ChannelAuto {
		return ch
	}
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := mask.At(x, y).RGBA(); a != 0xffff {
				return ChannelAlpha
			}
		}
	}
	return ChannelRed
}

// maskWeights extracts the selected channel as per-pixel weights in [0,1],
// where 1 means "keep the inpainted pixel".
func maskWeights(mask image.Image, ch MaskChannel) []float64 {
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	weights := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, a := mask.At(b.Min.X+x, b.Min.Y+y).RGBA()
			var v uint32
			switch ch {
			case ChannelGreen:
				v = g
			case ChannelBlue:
				v = bl
			case ChannelAlpha:
				v = a
			default:
				v = r
			}
			weights[y*w+x] = float64(v) / 0xffff
		}
	}
	return weights
}

// boxBlur feathers the weight map with a separable box filter. Samples past
// the border clamp to the edge so the mask does not darken at the frame.
func boxBlur(src []float64, w, h, radius int) []float64 {
	tmp := make([]float64, len(src))
	dst := make([]float64, len(src))
	norm := 1.0 / float64(2*radius+1)

	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += src[row+clampIndex(x+k, w)]
			}
			tmp[row+x] = sum * norm
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += tmp[clampIndex(y+k, h)*w+x]
			}
			dst[y*w+x] = sum * norm
		}
	}
	return dst
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// smoothstep maps t through 3t^2-2t^3. Endpoints stay exact, so a binary
// mask with zero feathering still reproduces each source verbatim.
func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// mix interpolates two channel bytes; t=0 returns a exactly, t=1 returns b
// exactly.
func mix(a, b uint8, t float64) uint8 {
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	v := float64(a) + (float64(b)-float64(a))*t
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return dst
}
