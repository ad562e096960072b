// Package imaging normalizes uploaded book cover images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// Covers are fitted into a MaxWidth x MaxHeight box, portrait like a book.
const (
	MaxWidth  = 600
	MaxHeight = 900
)

// JPEGQuality is the compression quality of stored covers.
const JPEGQuality = 85

// ErrUnsupported is returned for uploads that are not a JPEG, PNG or WebP image.
var ErrUnsupported = errors.New("unsupported image format")

var decoders = map[string]func(io.Reader) (image.Image, error){
	"image/jpeg": jpeg.Decode,
	"image/png":  png.Decode,
	"image/webp": webp.Decode,
}

// Cover is a processed cover image ready to store.
type Cover struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// ProcessCover sniffs the upload's format from its bytes, downscales it to
// fit the cover box and re-encodes it as JPEG. Transparent areas become white.
func ProcessCover(r io.Reader) (*Cover, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading cover: %w", err)
	}

	detected := http.DetectContentType(data)
	decode, ok := decoders[detected]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrUnsupported, detected, err)
	}

	dst := fit(img, MaxWidth, MaxHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding cover: %w", err)
	}

	b := dst.Bounds()
	return &Cover{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// fit draws img onto a white canvas no larger than maxW x maxH, keeping the
// aspect ratio. Images already inside the box keep their size.
func fit(img image.Image, maxW, maxH int) *image.RGBA {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()

	if w > maxW || h > maxH {
		// Scale by the tighter of the two limits.
		if w*maxH > h*maxW {
			h = max(1, h*maxW/w)
			w = maxW
		} else {
			w = max(1, w*maxH/h)
			h = maxH
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == src.Dx() && h == src.Dy() {
		draw.Draw(dst, dst.Bounds(), img, src.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	}
	return dst
}
