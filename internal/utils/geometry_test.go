package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBox_OrdersCoordinates(t *testing.T) {
	b := NewBox(10, 20, 2, 4)
	assert.Equal(t, Box{MinX: 2, MinY: 4, MaxX: 10, MaxY: 20}, b)
}

func TestBox_Dimensions(t *testing.T) {
	b := NewBox(1, 2, 5, 10)
	assert.InDelta(t, 4.0, b.Width(), 1e-9)
	assert.InDelta(t, 8.0, b.Height(), 1e-9)
	assert.Equal(t, Point{X: 3, Y: 6}, b.Center())
}

func TestBox_Pad(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		pad  float64
		want Box
	}{
		{
			name: "expand",
			box:  NewBox(10, 10, 20, 20),
			pad:  5,
			want: Box{MinX: 5, MinY: 5, MaxX: 25, MaxY: 25},
		},
		{
			name: "shrink",
			box:  NewBox(10, 10, 20, 20),
			pad:  -2,
			want: Box{MinX: 12, MinY: 12, MaxX: 18, MaxY: 18},
		},
		{
			name: "shrink past center collapses to center",
			box:  NewBox(10, 10, 20, 20),
			pad:  -50,
			want: Box{MinX: 15, MinY: 15, MaxX: 15, MaxY: 15},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Pad(tt.pad))
		})
	}
}

func TestBox_Union(t *testing.T) {
	a := NewBox(0, 0, 10, 10)
	b := NewBox(5, -5, 20, 8)
	assert.Equal(t, Box{MinX: 0, MinY: -5, MaxX: 20, MaxY: 10}, a.Union(b))
}

func TestBox_ToRect_Clamps(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)

	tests := []struct {
		name string
		box  Box
		want image.Rectangle
	}{
		{
			name: "inside",
			box:  NewBox(10.2, 5.7, 30.1, 20.3),
			want: image.Rect(10, 5, 31, 21),
		},
		{
			name: "overflows right and bottom",
			box:  NewBox(90, 40, 200, 100),
			want: image.Rect(90, 40, 100, 50),
		},
		{
			name: "negative origin",
			box:  NewBox(-10, -10, 5, 5),
			want: image.Rect(0, 0, 5, 5),
		},
		{
			name: "fully outside collapses to empty",
			box:  NewBox(200, 200, 300, 300),
			want: image.Rect(100, 50, 100, 50),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.ToRect(bounds))
		})
	}
}

func TestBox_Corners_Clockwise(t *testing.T) {
	b := NewBox(1, 2, 3, 4)
	corners := b.Corners()
	require.Len(t, corners, 4)
	assert.Equal(t, Point{X: 1, Y: 2}, corners[0])
	assert.Equal(t, Point{X: 3, Y: 2}, corners[1])
	assert.Equal(t, Point{X: 3, Y: 4}, corners[2])
	assert.Equal(t, Point{X: 1, Y: 4}, corners[3])
}

func TestBoundingBox(t *testing.T) {
	tests := []struct {
		name string
		pts  []Point
		want Box
	}{
		{name: "empty", pts: nil, want: Box{}},
		{name: "single", pts: []Point{{X: 3, Y: 7}}, want: Box{MinX: 3, MinY: 7, MaxX: 3, MaxY: 7}},
		{
			name: "scattered",
			pts:  []Point{{X: 5, Y: 1}, {X: -2, Y: 8}, {X: 3, Y: -4}},
			want: Box{MinX: -2, MinY: -4, MaxX: 5, MaxY: 8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BoundingBox(tt.pts))
		})
	}
}

func TestCentroid(t *testing.T) {
	assert.Equal(t, Point{}, Centroid(nil))

	c := Centroid([]Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}})
	assert.Equal(t, Point{X: 5, Y: 5}, c)
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Distance(Point{X: 0, Y: 0}, Point{X: 3, Y: 4}), 1e-9)
	assert.InDelta(t, 0.0, Distance(Point{X: 2, Y: 2}, Point{X: 2, Y: 2}), 1e-9)
}

func TestDrawRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))

	DrawRect(img, image.Rect(5, 5, 15, 15), color.White, 2)

	// Border pixels are painted, interior stays zero.
	_, _, _, a := img.At(5, 5).RGBA()
	assert.NotZero(t, a)
	_, _, _, a = img.At(6, 6).RGBA()
	assert.NotZero(t, a)
	_, _, _, a = img.At(10, 10).RGBA()
	assert.Zero(t, a)
}
