package processing

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}
	return img
}

func TestEncodeDataURL(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(320, 240)

	dataURL, err := p.EncodeDataURL(img, 0, 0)
	if err != nil {
		t.Fatalf("EncodeDataURL failed: %v", err)
	}
	if !strings.HasPrefix(dataURL, "data:image/jpeg;base64,") {
		t.Fatalf("Expected JPEG data URL, got prefix %q", dataURL[:30])
	}

	decoded, format, err := p.DecodeDataURL(dataURL)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected jpeg, got %s", format)
	}
	if decoded.Bounds().Dx() != 320 || decoded.Bounds().Dy() != 240 {
		t.Errorf("Expected native size 320x240, got %v", decoded.Bounds())
	}
}

func TestEncodeDataURLScalesDown(t *testing.T) {
	p := NewProcessor()
	img := createTestImage(800, 400)

	dataURL, err := p.EncodeDataURL(img, 400, 80)
	if err != nil {
		t.Fatalf("EncodeDataURL failed: %v", err)
	}
	decoded, _, err := p.DecodeDataURL(dataURL)
	if err != nil {
		t.Fatalf("DecodeDataURL failed: %v", err)
	}
	if decoded.Bounds().Dx() != 400 || decoded.Bounds().Dy() != 200 {
		t.Errorf("Expected 400x200, got %v", decoded.Bounds())
	}
}

func TestEncodeDataURLEmptyImage(t *testing.T) {
	p := NewProcessor()
	if _, err := p.EncodeDataURL(image.NewRGBA(image.Rect(0, 0, 0, 0)), 0, 0); err != ErrEmptyImage {
		t.Errorf("Expected ErrEmptyImage, got %v", err)
	}
	if _, err := p.EncodeDataURL(nil, 0, 0); err != ErrEmptyImage {
		t.Errorf("Expected ErrEmptyImage for nil, got %v", err)
	}
}

func TestDecodeDataURLPNGAndBareBase64(t *testing.T) {
	p := NewProcessor()
	var buf bytes.Buffer
	if err := png.Encode(&buf, createTestImage(16, 16)); err != nil {
		t.Fatal(err)
	}
	b64 := base64.StdEncoding.EncodeToString(buf.Bytes())

	for _, in := range []string{"data:image/png;base64," + b64, b64} {
		img, format, err := p.DecodeDataURL(in)
		if err != nil {
			t.Fatalf("DecodeDataURL(%q...) failed: %v", in[:10], err)
		}
		if format != "png" || img.Bounds().Dx() != 16 {
			t.Errorf("Unexpected decode result %s %v", format, img.Bounds())
		}
	}
}

func TestDecodeDataURLErrors(t *testing.T) {
	p := NewProcessor()
	cases := []string{
		"",
		"data:,",
		"data:image/jpeg;base64",
		"data:text/plain,hello",
		"data:image/jpeg;base64,!!!notbase64",
		"data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("not an image")),
	}
	for _, in := range cases {
		if _, _, err := p.DecodeDataURL(in); err == nil {
			t.Errorf("Expected error for %q", in)
		}
	}
}

func TestMirror(t *testing.T) {
	p := NewProcessor()
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(1, 0, color.RGBA{0, 0, 255, 255})

	out := p.Mirror(img)
	r, _, b, _ := out.At(0, 0).RGBA()
	if r != 0 || b == 0 {
		t.Error("Expected blue pixel on the left after mirroring")
	}
}

func TestSaveImage(t *testing.T) {
	p := NewProcessor()
	dir := t.TempDir()
	img := createTestImage(64, 48)

	for _, format := range []string{"jpg", "png"} {
		path := filepath.Join(dir, "frame."+Extension(format))
		if err := p.SaveImage(img, path, format, 85, false); err != nil {
			t.Fatalf("SaveImage(%s) failed: %v", format, err)
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			t.Errorf("Expected non-empty %s file", format)
		}
	}
}

func TestExtension(t *testing.T) {
	cases := map[string]string{"jpg": "jpg", "jpeg": "jpg", "PNG": "png", "webp": "webp", "": "jpg"}
	for in, want := range cases {
		if got := Extension(in); got != want {
			t.Errorf("Extension(%q) = %q, want %q", in, got, want)
		}
	}
}

// oversizedPNG returns a valid 1x1 PNG whose header claims width x height.
func oversizedPNG(t *testing.T, width, height uint32) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()
	binary.BigEndian.PutUint32(data[16:20], width)
	binary.BigEndian.PutUint32(data[20:24], height)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestDecodeDataURLLimitedRejectsHeaderDimensions(t *testing.T) {
	p := NewProcessor()
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(oversizedPNG(t, 20000, 20000))

	_, _, err := p.DecodeDataURLLimited(dataURL, 8192)
	if !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("Expected ErrImageTooLarge, got %v", err)
	}
	if !strings.Contains(err.Error(), "20000x20000") {
		t.Errorf("Expected dimensions in error, got %q", err.Error())
	}
}

func TestDecodeDataURLLimitedAcceptsWithinBounds(t *testing.T) {
	p := NewProcessor()
	dataURL, err := p.EncodeDataURL(createTestImage(64, 48), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	img, _, err := p.DecodeDataURLLimited(dataURL, 64)
	if err != nil {
		t.Fatalf("DecodeDataURLLimited failed: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("Expected width 64, got %d", img.Bounds().Dx())
	}
	if _, _, err := p.DecodeDataURLLimited(dataURL, 32); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("Expected ErrImageTooLarge at limit 32, got %v", err)
	}
}

func TestSaveImageWebP(t *testing.T) {
	p := NewProcessor()
	path := filepath.Join(t.TempDir(), "frame.webp")
	if err := p.SaveImage(createTestImage(32, 32), path, "webp", 80, false); err != nil {
		t.Fatalf("SaveImage(webp) failed: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Error("Expected non-empty webp file")
	}
}

func TestWriteFileRemovesPartialOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.webp")
	encodeErr := errors.New("encode failed")

	err := writeFile(path, func(w io.Writer) error {
		w.Write([]byte("half"))
		return encodeErr
	})
	if !errors.Is(err, encodeErr) {
		t.Fatalf("Expected encode error, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected partial file to be removed, stat err = %v", err)
	}
}
