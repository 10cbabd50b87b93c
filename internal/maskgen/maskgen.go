// Package maskgen turns reconciled field selections into the binary raster
// mask driven into the inpainting model, and a colored highlight overlay for
// diagnostics.
package maskgen

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/BilalWohlig/labelwipe/internal/reconcile"
	"github.com/BilalWohlig/labelwipe/internal/utils"
)

// DefaultPadding is the pixel padding applied around each field box.
const DefaultPadding = 5

// palette holds the translucent highlight colors, cycled per field index.
var palette = []color.NRGBA{
	{R: 255, G: 64, B: 64, A: 110},
	{R: 64, G: 160, B: 255, A: 110},
	{R: 64, G: 220, B: 96, A: 110},
	{R: 255, G: 200, B: 0, A: 110},
	{R: 200, G: 96, B: 255, A: 110},
	{R: 0, G: 210, B: 210, A: 110},
}

// BuildMask paints a white rectangle over every selected field's padded,
// clamped bounding box on a black canvas of the given size. Painting order
// follows the input order; overlaps are harmless since the mask is binary.
func BuildMask(width, height int, selected []reconcile.SelectedField, padding int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	// NewGray zeroes the buffer, so the background is already black.
	for _, sf := range selected {
		rect := paddedRect(sf, padding, mask.Bounds())
		draw.Draw(mask, rect, image.NewUniform(color.Gray{Y: 255}), image.Point{}, draw.Src)
	}
	return mask
}

// BuildHighlight returns a copy of img with each selected field's padded box
// tinted with a distinct translucent palette color and outlined.
func BuildHighlight(img image.Image, selected []reconcile.SelectedField, padding int) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	for i, sf := range selected {
		col := palette[i%len(palette)]
		rect := paddedRect(sf, padding, dst.Bounds())
		tint := image.NewUniform(col)
		draw.Draw(dst, rect, tint, image.Point{}, draw.Over)
		border := col
		border.A = 255
		utils.DrawRect(dst, rect, border, 2)
	}
	return dst
}

// paddedRect computes the padded, clamped pixel rectangle for a selection.
func paddedRect(sf reconcile.SelectedField, padding int, bounds image.Rectangle) image.Rectangle {
	box := utils.BoundingBox(sf.CombinedCoordinates)
	return box.Pad(float64(padding)).ToRect(bounds)
}
