// Package imaging turns uploaded bodies into panel-sized images.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/draw"
)

// Content types accepted by Decode
const (
	TypeRaw  = "application/octet-stream"
	TypePNG  = "image/png"
	TypeJPEG = "image/jpeg"
	TypeGIF  = "image/gif"
	TypeSVG  = "image/svg+xml"
)

var (
	// ErrInvalidSize is returned for a raw frame of the wrong length
	ErrInvalidSize = errors.New("invalid image size")
	// ErrUnsupportedType is returned for a content type Decode cannot read
	ErrUnsupportedType = errors.New("unsupported content type")
	// ErrInvalidImage is returned when an encoded image cannot be decoded
	ErrInvalidImage = errors.New("invalid image")
)

// Decode reads body according to contentType and returns a width x height
// image. Raw bodies are packed RGB888, row-major, and must be exactly
// width*height*3 bytes; an empty content type is treated as raw. Encoded
// images are scaled to fit and centered on black.
func Decode(contentType string, body []byte, width, height int) (*image.RGBA, error) {
	mediaType := TypeRaw
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
		}
		mediaType = mt
	}

	switch mediaType {
	case TypeRaw:
		return FromRGB(body, width, height)
	case TypePNG, TypeJPEG, TypeGIF:
		src, _, err := image.Decode(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		return Fit(src, width, height), nil
	case TypeSVG:
		return rasterize(body, width, height)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, mediaType)
	}
}

// FromRGB wraps a packed RGB888 frame
func FromRGB(data []byte, width, height int) (*image.RGBA, error) {
	if len(data) != width*height*3 {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSize, len(data), width*height*3)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < width*height; i++ {
		img.Pix[i*4] = data[i*3]
		img.Pix[i*4+1] = data[i*3+1]
		img.Pix[i*4+2] = data[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
	return img, nil
}

// ToRGB packs img as RGB888, row-major, dropping alpha
func ToRGB(img *image.RGBA) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			out = append(out, c.R, c.G, c.B)
		}
	}
	return out
}

// Fit scales src with Catmull-Rom to the largest size that fits width x
// height, centered on black
func Fit(src image.Image, width, height int) *image.RGBA {
	dst := blank(width, height)
	sb := src.Bounds()
	if sb.Empty() {
		return dst
	}
	draw.CatmullRom.Scale(dst, fitRect(sb.Dx(), sb.Dy(), width, height), src, sb, draw.Over, nil)
	return dst
}

// Pixelate reduces img to blocks as if it were art pixels wide, keeping its
// size. Resolutions of zero or at least the image width return img unchanged.
func Pixelate(img *image.RGBA, art int) *image.RGBA {
	b := img.Bounds()
	if art <= 0 || art >= b.Dx() {
		return img
	}
	artH := art * b.Dy() / b.Dx()
	if artH < 1 {
		artH = 1
	}

	small := image.NewRGBA(image.Rect(0, 0, art, artH))
	draw.CatmullRom.Scale(small, small.Bounds(), img, b, draw.Src, nil)
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.NearestNeighbor.Scale(out, out.Bounds(), small, small.Bounds(), draw.Src, nil)
	return out
}

func rasterize(body []byte, width, height int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	dst := blank(width, height)
	target := image.Rect(0, 0, width, height)
	if icon.ViewBox.W > 0 && icon.ViewBox.H > 0 {
		target = fitRect(int(icon.ViewBox.W), int(icon.ViewBox.H), width, height)
	}
	icon.SetTarget(float64(target.Min.X), float64(target.Min.Y), float64(target.Dx()), float64(target.Dy()))

	scanner := rasterx.NewScannerGV(width, height, dst, dst.Bounds())
	dasher := rasterx.NewDasher(width, height, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}

// fitRect centers the largest srcW:srcH rectangle that fits in dstW x dstH
func fitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	w, h := dstW, dstH
	if srcW*dstH > srcH*dstW {
		h = srcH * dstW / srcW
	} else {
		w = srcW * dstH / srcH
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func blank(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	return img
}
