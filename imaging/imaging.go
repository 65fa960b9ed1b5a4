package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/draw"
)

// Canonical resolution frames are scaled to before differencing. Small enough
// to normalize cost and tolerate camera jitter.
const (
	CanonicalWidth  = 320
	CanonicalHeight = 240
)

// GetOrientation extracts the EXIF orientation from JPEG data.
func GetOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1 // Default orientation if no EXIF data or error
	}

	orientation, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}

	orientVal, err := orientation.Int(0)
	if err != nil {
		return 1
	}

	return orientVal
}

// CorrectOrientation applies the EXIF orientation to the image.
func CorrectOrientation(img image.Image, orientation int) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	switch orientation {
	case 2: // Flip horizontal
		newImg := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				newImg.Set(width-1-x, y, img.At(x, y))
			}
		}
		return newImg
	case 3: // Rotate 180
		newImg := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				newImg.Set(width-1-x, height-1-y, img.At(x, y))
			}
		}
		return newImg
	case 4: // Flip vertical
		newImg := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				newImg.Set(x, height-1-y, img.At(x, y))
			}
		}
		return newImg
	case 6: // Rotate 90 clockwise
		newImg := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				newImg.Set(height-1-y, x, img.At(x, y))
			}
		}
		return newImg
	case 8: // Rotate 90 counter-clockwise
		newImg := image.NewRGBA(image.Rect(0, 0, height, width))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				newImg.Set(y, width-1-x, img.At(x, y))
			}
		}
		return newImg
	default: // Orientation 1 or unknown
		return img
	}
}

// Decode decodes raw capture bytes and corrects EXIF orientation.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	if orientation := GetOrientation(data); orientation != 1 {
		img = CorrectOrientation(img, orientation)
	}

	return img, nil
}

// ResizeCanonical scales an image to the canonical comparison resolution.
func ResizeCanonical(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, CanonicalWidth, CanonicalHeight))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

// EncodeJPEG re-encodes a frame for persistence.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
