package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImageReportsFormat(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 16))

	var jpegBuf bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpegBuf, src, nil))
	img, format, err := DecodeImage(jpegBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 16, img.Bounds().Dx())

	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, src))
	img, format, err = DecodeImage(pngBuf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 16, img.Bounds().Dy())
}

func TestDecodeImageGarbage(t *testing.T) {
	_, _, err := DecodeImage([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestResizeImageDimensions(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 50))
	dst := resizeImage(src, 640, 640)

	assert.Equal(t, 640, dst.Bounds().Dx())
	assert.Equal(t, 640, dst.Bounds().Dy())
}

func TestImageToFloat32CHWNormalization(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 127, A: 255})
		}
	}

	data := imageToFloat32CHW(img, 2, 2, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
	require.Len(t, data, 3*2*2)

	// Channel planes are laid out R then G then B.
	assert.InDelta(t, 1.0, data[0], 1e-6)
	assert.InDelta(t, -1.0, data[4], 1e-6)
	assert.InDelta(t, (127.0-127.5)/127.5, data[8], 1e-6)
}

func TestCropFaceClampsAndPads(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 100))

	crop := cropFace(src, image.Rect(10, 10, 50, 50))
	require.NotNil(t, crop)
	// 40x40 region plus 10% padding on each side, fully inside the frame.
	assert.Equal(t, 48, crop.Bounds().Dx())
	assert.Equal(t, 48, crop.Bounds().Dy())

	// Region overflowing the frame is clamped, not rejected.
	crop = cropFace(src, image.Rect(80, 80, 200, 200))
	require.NotNil(t, crop)
	assert.LessOrEqual(t, crop.Bounds().Dx(), 100)

	// Fully outside the frame yields nothing.
	assert.Nil(t, cropFace(src, image.Rect(200, 200, 300, 300)))
}

func TestNMSSuppressesOverlaps(t *testing.T) {
	dets := []Detection{
		{BBox: [4]float32{0, 0, 100, 100}, Confidence: 0.9},
		{BBox: [4]float32{5, 5, 105, 105}, Confidence: 0.8},
		{BBox: [4]float32{200, 200, 300, 300}, Confidence: 0.7},
	}

	kept := nms(dets, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence, "highest confidence survives")
	assert.Equal(t, float32(0.7), kept[1].Confidence)
}

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)

	zero := []float32{0, 0}
	normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func TestIoU(t *testing.T) {
	a := [4]float32{0, 0, 10, 10}
	assert.InDelta(t, 1.0, float64(iou(a, a)), 1e-6)
	assert.InDelta(t, 0.0, float64(iou(a, [4]float32{20, 20, 30, 30})), 1e-6)

	// Half overlap: intersection 50, union 150.
	b := [4]float32{5, 0, 15, 10}
	assert.InDelta(t, 50.0/150.0, float64(iou(a, b)), 1e-6)
}
