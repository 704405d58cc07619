package vision

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// QRReader locates and decodes a QR symbol in a frame.
type QRReader struct {
	reader gozxing.Reader
}

func NewQRReader() *QRReader {
	return &QRReader{reader: qrcode.NewQRCodeReader()}
}

// Decode returns the payload of the first QR symbol found in the frame.
// A frame without a decodable symbol returns ("", false); that is a normal
// outcome, not an error.
func (q *QRReader) Decode(frame image.Image) (string, bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", false
	}

	result, err := q.reader.Decode(bmp, nil)
	if err != nil {
		return "", false
	}

	return result.GetText(), true
}
