package restore

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BilalWohlig/labelwipe/internal/apperr"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// solid builds a w x h image filled with one color.
func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// binaryMask builds a grayscale mask that is white inside rect, black outside.
func binaryMask(w, h int, rect image.Rectangle) *image.Gray {
	m := image.NewGray(image.Rect(0, 0, w, h))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			m.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return m
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var (
	red  = color.RGBA{R: 200, G: 10, B: 10, A: 255}
	blue = color.RGBA{R: 10, G: 10, B: 200, A: 255}
)

func TestBlend_BinaryMaskNoFeather(t *testing.T) {
	for _, mode := range []BlendMode{BlendLinear, BlendSmooth} {
		t.Run(string(mode), func(t *testing.T) {
			original := solid(20, 20, red)
			inpainted := solid(20, 20, blue)
			mask := binaryMask(20, 20, image.Rect(5, 5, 15, 15))

			out := Blend(original, mask, inpainted, Options{
				FeatherRadius: 0,
				BlendMode:     mode,
				MaskChannel:   ChannelAuto,
			})

			// Inside the mask the inpainted pixel survives verbatim,
			// outside the original does.
			assert.Equal(t, blue, out.RGBAAt(10, 10))
			assert.Equal(t, blue, out.RGBAAt(5, 5))
			assert.Equal(t, blue, out.RGBAAt(14, 14))
			assert.Equal(t, red, out.RGBAAt(0, 0))
			assert.Equal(t, red, out.RGBAAt(4, 10))
			assert.Equal(t, red, out.RGBAAt(19, 19))
		})
	}
}

func TestBlend_FeatherSoftensEdge(t *testing.T) {
	original := solid(20, 20, red)
	inpainted := solid(20, 20, blue)
	mask := binaryMask(20, 20, image.Rect(5, 5, 15, 15))

	out := Blend(original, mask, inpainted, Options{
		FeatherRadius: 2,
		BlendMode:     BlendLinear,
		MaskChannel:   ChannelRed,
	})

	// Deep inside and far outside stay pure.
	assert.Equal(t, blue, out.RGBAAt(10, 10))
	assert.Equal(t, red, out.RGBAAt(0, 0))

	// A boundary pixel is a mixture of both.
	edge := out.RGBAAt(5, 10)
	assert.Greater(t, edge.R, blue.R)
	assert.Less(t, edge.R, red.R)
	assert.Greater(t, edge.B, red.B)
	assert.Less(t, edge.B, blue.B)
}

func TestBlend_ChannelSelection(t *testing.T) {
	original := solid(4, 4, red)
	inpainted := solid(4, 4, blue)

	// Mask carries the region in the green channel only.
	mask := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			mask.SetRGBA(x, y, color.RGBA{G: 255, A: 255})
		}
	}

	outGreen := Blend(original, mask, inpainted, Options{BlendMode: BlendLinear, MaskChannel: ChannelGreen})
	assert.Equal(t, blue, outGreen.RGBAAt(2, 2))

	outRed := Blend(original, mask, inpainted, Options{BlendMode: BlendLinear, MaskChannel: ChannelRed})
	assert.Equal(t, red, outRed.RGBAAt(2, 2))
}

func TestResolveChannel_Auto(t *testing.T) {
	// Opaque grayscale mask: alpha is constant, so auto picks red.
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	assert.Equal(t, ChannelRed, resolveChannel(gray, ChannelAuto))

	// Mask with varying alpha: auto picks alpha.
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.SetRGBA(1, 1, color.RGBA{A: 128})
	assert.Equal(t, ChannelAlpha, resolveChannel(rgba, ChannelAuto))

	// Explicit channels pass through untouched.
	assert.Equal(t, ChannelBlue, resolveChannel(gray, ChannelBlue))
}

func TestRestore_RoundTrip(t *testing.T) {
	original := encodePNG(t, solid(16, 16, red))
	inpainted := encodePNG(t, solid(16, 16, blue))
	mask := encodePNG(t, binaryMask(16, 16, image.Rect(4, 4, 12, 12)))

	out, err := Restore(original, mask, inpainted, Options{BlendMode: BlendSmooth, MaskChannel: ChannelAuto})
	require.NoError(t, err)

	img, _, err := utils.DecodeImageBytes(out)
	require.NoError(t, err)

	r, _, _, _ := img.At(8, 8).RGBA()
	assert.EqualValues(t, uint32(blue.R)*0x101, r)
	r, _, _, _ = img.At(0, 0).RGBA()
	assert.EqualValues(t, uint32(red.R)*0x101, r)
}

func TestRestore_DecodeErrors(t *testing.T) {
	valid := encodePNG(t, solid(4, 4, red))

	for _, tt := range []struct {
		name                      string
		original, mask, inpainted []byte
	}{
		{"bad original", []byte("junk"), valid, valid},
		{"bad mask", valid, []byte("junk"), valid},
		{"bad inpainted", valid, valid, []byte("junk")},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Restore(tt.original, tt.mask, tt.inpainted, DefaultOptions())
			require.Error(t, err)
			assert.Equal(t, apperr.Validation, apperr.KindOf(err))
		})
	}
}

func TestRestore_DimensionMismatch(t *testing.T) {
	original := encodePNG(t, solid(16, 16, red))
	inpainted := encodePNG(t, solid(16, 16, blue))
	mask := encodePNG(t, binaryMask(8, 8, image.Rect(0, 0, 4, 4)))

	_, err := Restore(original, mask, inpainted, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "dimensions differ")
}

func TestParseBlendMode(t *testing.T) {
	m, err := ParseBlendMode("")
	require.NoError(t, err)
	assert.Equal(t, BlendSmooth, m)

	m, err = ParseBlendMode("linear")
	require.NoError(t, err)
	assert.Equal(t, BlendLinear, m)

	_, err = ParseBlendMode("cubic")
	assert.Error(t, err)
}

func TestParseMaskChannel(t *testing.T) {
	ch, err := ParseMaskChannel("")
	require.NoError(t, err)
	assert.Equal(t, ChannelAuto, ch)

	ch, err = ParseMaskChannel("alpha")
	require.NoError(t, err)
	assert.Equal(t, ChannelAlpha, ch)

	_, err = ParseMaskChannel("luma")
	assert.Error(t, err)
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, smoothstep(-0.5))
	assert.Equal(t, 0.0, smoothstep(0))
	assert.Equal(t, 1.0, smoothstep(1))
	assert.Equal(t, 1.0, smoothstep(1.5))
	assert.InDelta(t, 0.5, smoothstep(0.5), 1e-9)
	assert.Less(t, smoothstep(0.25), 0.25)
	assert.Greater(t, smoothstep(0.75), 0.75)
}

func TestMix(t *testing.T) {
	assert.EqualValues(t, 10, mix(10, 200, 0))
	assert.EqualValues(t, 200, mix(10, 200, 1))
	assert.EqualValues(t, 105, mix(10, 200, 0.5))
	assert.EqualValues(t, 10, mix(10, 200, -0.1))
	assert.EqualValues(t, 200, mix(10, 200, 1.1))
}
