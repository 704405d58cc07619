package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"

	"github.com/dishusingla001/door-lock-server/internal/config"
)

// Provider bundles the ONNX face models and the QR reader behind the
// engine's VisionProvider contract: pixels in, decoded strings and embedding
// vectors out.
type Provider struct {
	detector *Detector
	embedder *Embedder
	qr       *QRReader
}

// NewProvider loads both ONNX models from cfg.ModelsDir and prepares the QR
// reader. The ONNX Runtime environment must already be initialized.
func NewProvider(cfg config.VisionConfig) (*Provider, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	return &Provider{
		detector: det,
		embedder: emb,
		qr:       NewQRReader(),
	}, nil
}

// DecodeQR returns the payload of the first QR symbol in the frame, if any.
func (p *Provider) DecodeQR(frame image.Image) (string, bool) {
	return p.qr.Decode(frame)
}

// DetectFaces returns detected face regions, highest confidence first.
func (p *Provider) DetectFaces(frame image.Image) ([]image.Rectangle, error) {
	bounds := frame.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	inW, inH := p.detector.InputSize()
	input := preprocessForDetection(frame, inW, inH)

	detections, err := p.detector.Detect(input, origW, origH)
	if err != nil {
		return nil, err
	}

	regions := make([]image.Rectangle, 0, len(detections))
	for _, d := range detections {
		regions = append(regions, image.Rect(
			int(d.BBox[0]), int(d.BBox[1]), int(d.BBox[2]), int(d.BBox[3])))
	}
	return regions, nil
}

// EncodeFace crops the region (with padding) and extracts its embedding.
func (p *Provider) EncodeFace(frame image.Image, region image.Rectangle) ([]float32, error) {
	crop := cropFace(frame, region)
	if crop == nil {
		return nil, fmt.Errorf("empty face region %v", region)
	}

	inW, inH := p.embedder.InputSize()
	input := preprocessForEmbedding(crop, inW, inH)

	return p.embedder.Extract(input)
}

// EmbedImage extracts an embedding from a standalone encoded image (the
// enrollment path). The highest-confidence face wins when several are present.
func (p *Provider) EmbedImage(imageData []byte) ([]float32, error) {
	img, _, err := DecodeImage(imageData)
	if err != nil {
		return nil, err
	}

	regions, err := p.DetectFaces(img)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	if len(regions) == 0 {
		return nil, fmt.Errorf("no face detected in image")
	}

	return p.EncodeFace(img, regions[0])
}

// DecodeImage decodes JPEG (the camera's native format) with a fallback to
// any registered format. The returned format name ("jpeg", "png") lets the
// caller archive the bytes under the right content type.
func DecodeImage(data []byte) (image.Image, string, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err == nil {
		return img, "jpeg", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Close releases all ONNX sessions.
func (p *Provider) Close() {
	if p.detector != nil {
		p.detector.Close()
	}
	if p.embedder != nil {
		p.embedder.Close()
	}
}

// --- Image preprocessing helpers ---

func preprocessForDetection(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{128.0, 128.0, 128.0})
}

func preprocessForEmbedding(img image.Image, targetW, targetH int) []float32 {
	return imageToFloat32CHW(img, targetW, targetH, [3]float32{127.5, 127.5, 127.5}, [3]float32{127.5, 127.5, 127.5})
}

// imageToFloat32CHW converts an image to CHW float32 format with
// pixel = (pixel - mean) / std normalization.
func imageToFloat32CHW(img image.Image, targetW, targetH int, mean, std [3]float32) []float32 {
	resized := resizeImage(img, targetW, targetH)
	bounds := resized.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	data := make([]float32, 3*h*w)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := resized.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()

			rf := float32(r >> 8)
			gf := float32(g >> 8)
			bf := float32(b >> 8)

			idx := y*w + x
			data[0*h*w+idx] = (rf - mean[0]) / std[0]
			data[1*h*w+idx] = (gf - mean[1]) / std[1]
			data[2*h*w+idx] = (bf - mean[2]) / std[2]
		}
	}

	return data
}

// resizeImage performs nearest-neighbour resize (fast, good enough for ML input).
func resizeImage(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))

	for y := 0; y < targetH; y++ {
		for x := 0; x < targetW; x++ {
			srcX := bounds.Min.X + x*srcW/targetW
			srcY := bounds.Min.Y + y*srcH/targetH
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}

	return dst
}

// cropFace extracts a face region from the image, padded by 10% on each side.
// Returns nil if the region collapses to nothing inside the frame.
func cropFace(img image.Image, region image.Rectangle) image.Image {
	bounds := img.Bounds()
	r := region.Intersect(bounds)
	if r.Empty() {
		return nil
	}

	padW := r.Dx() / 10
	padH := r.Dy() / 10
	r = image.Rect(r.Min.X-padW, r.Min.Y-padH, r.Max.X+padW, r.Max.Y+padH).Intersect(bounds)
	if r.Empty() {
		return nil
	}

	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for cy := r.Min.Y; cy < r.Max.Y; cy++ {
		for cx := r.Min.X; cx < r.Max.X; cx++ {
			crop.Set(cx-r.Min.X, cy-r.Min.Y, img.At(cx, cy))
		}
	}

	return crop
}
