// Package vision implements the per-frame detection stages: color
// segmentation of a fixed-size pixel frame into a binary mask, and
// extraction of connected candidate regions from that mask.
//
// Frames are square S×S buffers of interleaved BGR bytes with the
// origin at the top-left corner. BGR matches the byte order the frame
// transport and recorded captures use, so buffers can be wrapped
// without a channel swap.
package vision

import (
	"fmt"
	"image"
)

// Frame is a square BGR pixel buffer.
type Frame struct {
	Size int
	Pix  []uint8 // Size*Size*3 bytes, row-major, BGR interleaved
}

// NewFrame allocates a zeroed (black) frame of the given side length.
func NewFrame(size int) *Frame {
	return &Frame{
		Size: size,
		Pix:  make([]uint8, size*size*3),
	}
}

// WrapFrame adopts an existing BGR buffer without copying. The buffer
// length must be exactly size*size*3.
func WrapFrame(size int, pix []uint8) (*Frame, error) {
	if want := size * size * 3; len(pix) != want {
		return nil, fmt.Errorf("frame buffer is %d bytes, want %d for size %d", len(pix), want, size)
	}
	return &Frame{Size: size, Pix: pix}, nil
}

// At returns the BGR bytes at (x, y). Callers must stay in bounds.
func (f *Frame) At(x, y int) (b, g, r uint8) {
	i := (y*f.Size + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Set writes the BGR bytes at (x, y). Callers must stay in bounds.
func (f *Frame) Set(x, y int, b, g, r uint8) {
	i := (y*f.Size + x) * 3
	f.Pix[i] = b
	f.Pix[i+1] = g
	f.Pix[i+2] = r
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := &Frame{Size: f.Size, Pix: make([]uint8, len(f.Pix))}
	copy(out.Pix, f.Pix)
	return out
}

// FrameFromImage converts a square image into a BGR frame. The image
// bounds must be size×size.
func FrameFromImage(img image.Image, size int) (*Frame, error) {
	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		return nil, fmt.Errorf("image is %dx%d, want %dx%d", b.Dx(), b.Dy(), size, size)
	}
	f := NewFrame(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			f.Set(x, y, uint8(bl>>8), uint8(g>>8), uint8(r>>8))
		}
	}
	return f, nil
}

// ToImage renders the frame as an RGBA image, mainly for debug
// endpoints and plot output.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Size, f.Size))
	for y := 0; y < f.Size; y++ {
		for x := 0; x < f.Size; x++ {
			b, g, r := f.At(x, y)
			i := img.PixOffset(x, y)
			img.Pix[i] = r
			img.Pix[i+1] = g
			img.Pix[i+2] = b
			img.Pix[i+3] = 0xff
		}
	}
	return img
}
