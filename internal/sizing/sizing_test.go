package sizing

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func dims(img image.Image) (int, int) {
	b := img.Bounds()
	return b.Dx(), b.Dy()
}

func TestPreShape_NoOpWhenWithinBounds(t *testing.T) {
	p := Policy{MaxInputPixels: 1500 * 1500, MinHeight: 300}

	img := testImage(800, 600)
	out, err := p.PreShape(img)
	require.NoError(t, err)
	assert.Same(t, img, out)
}

func TestPreShape_CapsLargeInput(t *testing.T) {
	p := Policy{MaxInputPixels: 1500 * 1500, MinHeight: 300}

	out, err := p.PreShape(testImage(2000, 2000))
	require.NoError(t, err)
	w, h := dims(out)

	assert.LessOrEqual(t, w*h, 1500*1500)
	assert.LessOrEqual(t, w, 1500)
	assert.LessOrEqual(t, h, 1500)

	// Aspect ratio preserved within a pixel of rounding.
	assert.InDelta(t, float64(w), float64(h), 1.0)
}

func TestPreShape_CapPreservesAspectRatio(t *testing.T) {
	p := Policy{MaxInputPixels: 1500 * 1500, MinHeight: 300}

	out, err := p.PreShape(testImage(4000, 1000))
	require.NoError(t, err)
	w, h := dims(out)

	assert.LessOrEqual(t, w*h, 1500*1500)
	assert.InDelta(t, 4.0, float64(w)/float64(h), 0.01)
}

func TestPreShape_MinHeightRule(t *testing.T) {
	p := Policy{MaxInputPixels: 1500 * 1500, MinHeight: 300}

	// Height at the threshold skips the pre-upsample.
	out, err := p.PreShape(testImage(100, 400))
	require.NoError(t, err)
	w, h := dims(out)
	assert.Equal(t, 100, w)
	assert.Equal(t, 400, h)

	// Below the threshold gets exactly 2x.
	out, err = p.PreShape(testImage(100, 200))
	require.NoError(t, err)
	w, h = dims(out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 400, h)
}

func TestPreShape_CapThenUpsample(t *testing.T) {
	// A huge-but-short image is first capped, then re-upsampled because the
	// capped height falls under the minimum. Rules apply in that order.
	p := Policy{MaxInputPixels: 1000 * 1000, MinHeight: 300}

	in := testImage(8000, 500) // 4M pixels, ratio 16:1
	out, err := p.PreShape(in)
	require.NoError(t, err)
	w, h := dims(out)

	// Cap: sqrt(1e6/4e6)=0.5 -> 4000x250, then 2x -> 8000x500.
	assert.Equal(t, 8000, w)
	assert.Equal(t, 500, h)

	// The output went through both resamples rather than being passed through.
	assert.NotSame(t, in, out)
}

func TestPreShape_RejectsDegenerateSliver(t *testing.T) {
	// Capping a one-pixel-tall sliver floors its height to zero. That must
	// be refused: a zero dimension would make the resampler keep the aspect
	// ratio and the output would blow straight through the pixel cap.
	p := Policy{MaxInputPixels: 100, MinHeight: 1}

	_, err := p.PreShape(testImage(3000, 1))
	assert.ErrorIs(t, err, ErrDegenerateImage)

	// Same for the transposed case.
	_, err = p.PreShape(testImage(1, 3000))
	assert.ErrorIs(t, err, ErrDegenerateImage)
}

func TestPreShape_CapHoldsForExtremeAspect(t *testing.T) {
	// Every input the cap does shrink stays under the cap, even skewed ones.
	p := Policy{MaxInputPixels: 100, MinHeight: 1}

	for _, in := range [][2]int{{50, 4}, {4, 50}, {100, 12}, {200, 8}} {
		out, err := p.PreShape(testImage(in[0], in[1]))
		require.NoError(t, err)
		w, h := dims(out)
		assert.LessOrEqual(t, w*h, 100, "input %dx%d capped to %dx%d", in[0], in[1], w, h)
	}
}

func TestPostShape_NoOpAtEnhancerFactor(t *testing.T) {
	enhanced := testImage(1600, 1200)

	out := PostShape(enhanced, 800, 600, 2)
	assert.Same(t, enhanced, out)
}

func TestPostShape_UpscaleToRequestedScale(t *testing.T) {
	enhanced := testImage(1600, 1200) // enhancer output at 2x of 800x600

	out := PostShape(enhanced, 800, 600, 4)
	w, h := dims(out)
	assert.Equal(t, 3200, w)
	assert.Equal(t, 2400, h)
}

func TestValidScale(t *testing.T) {
	assert.True(t, ValidScale(2))
	assert.True(t, ValidScale(4))
	assert.False(t, ValidScale(0))
	assert.False(t, ValidScale(1))
	assert.False(t, ValidScale(3))
	assert.False(t, ValidScale(8))
	assert.False(t, ValidScale(-2))
}

func TestPreShape_CapRoundsDown(t *testing.T) {
	p := Policy{MaxInputPixels: 100 * 100, MinHeight: 1}

	out, err := p.PreShape(testImage(301, 101))
	require.NoError(t, err)
	w, h := dims(out)

	ratio := math.Sqrt(float64(100*100) / float64(301*101))
	assert.Equal(t, int(float64(301)*ratio), w)
	assert.Equal(t, int(float64(101)*ratio), h)
}
