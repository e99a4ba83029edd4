package processing

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultJPEGQuality matches what browsers use for canvas.toDataURL("image/jpeg")
const DefaultJPEGQuality = 92

var (
	// ErrEmptyImage is returned when an image has no pixels to encode
	ErrEmptyImage = errors.New("image has zero width or height")
	// ErrImageTooLarge is returned before decoding when the header declares oversized dimensions
	ErrImageTooLarge = errors.New("image too large")
)

// Processor handles frame encoding and decoding
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// EncodeDataURL encodes img as a JPEG data URL, scaling it down first when
// maxDim > 0 and the long side is larger.
func (p *Processor) EncodeDataURL(img image.Image, maxDim, quality int) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", ErrEmptyImage
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	b64, err := p.PrepareImageForModel(img, "jpg", maxDim, quality)
	if err != nil {
		return "", fmt.Errorf("failed to encode frame: %w", err)
	}
	return "data:image/jpeg;base64," + b64, nil
}

// DecodeDataURL decodes a data URL (or bare base64 payload) into an image.
// It returns the decoded format name (jpeg, png, webp).
func (p *Processor) DecodeDataURL(dataURL string) (image.Image, string, error) {
	return p.DecodeDataURLLimited(dataURL, 0)
}

// DecodeDataURLLimited is DecodeDataURL with a bound on width and height.
// The bound is checked against the image header, before pixels are allocated.
// maxDim 0 means unlimited.
func (p *Processor) DecodeDataURLLimited(dataURL string, maxDim int) (image.Image, string, error) {
	payload := strings.TrimSpace(dataURL)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return nil, "", fmt.Errorf("malformed data URL: missing ','")
		}
		header := payload[5:comma]
		if !strings.HasSuffix(header, ";base64") {
			return nil, "", fmt.Errorf("unsupported data URL encoding %q", header)
		}
		payload = payload[comma+1:]
	}
	if payload == "" {
		return nil, "", ErrEmptyImage
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode base64 image: %w", err)
	}
	if maxDim > 0 {
		if err := checkDimensions(data, maxDim); err != nil {
			return nil, "", err
		}
	}
	return p.decodeImageFromBytes(data)
}

// checkDimensions reads only the header of data
func checkDimensions(data []byte, maxDim int) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if cfg, err = webp.DecodeConfig(bytes.NewReader(data)); err != nil {
			return errors.New("image: unknown or unsupported format")
		}
	}
	if cfg.Width > maxDim || cfg.Height > maxDim {
		return fmt.Errorf("%w: %dx%d (maximum: %d)", ErrImageTooLarge, cfg.Width, cfg.Height, maxDim)
	}
	return nil
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, string, error) {
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}

	// Extended WebP features the x/image decoder does not handle
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}

	return nil, "", fmt.Errorf("image: unknown or unsupported format")
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Mirror flips the image horizontally, the way webcam previews are shown
func (p *Processor) Mirror(img image.Image) image.Image {
	return imaging.FlipH(img)
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path, format string, quality int, lossless bool) error {
	switch strings.ToLower(format) {
	case "webp":
		opts := &webp.Options{Lossless: lossless, Quality: float32(quality)}
		return writeFile(path, func(w io.Writer) error {
			return webp.Encode(w, img, opts)
		})
	case "png":
		return imaging.Save(img, path)
	default: // jpg/jpeg
		return imaging.Save(img, path, imaging.JPEGQuality(quality))
	}
}

// Extension returns the file extension used for an output format
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "png":
		return "png"
	case "webp":
		return "webp"
	default:
		return "jpg"
	}
}

// writeFile creates path and fills it with encode. A failed encode or close
// removes the partial file.
func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
