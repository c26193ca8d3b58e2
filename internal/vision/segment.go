package vision

// Mask is a binary S×S foreground mask produced by segmentation.
// Bits holds one byte per pixel in row-major order; nonzero marks
// foreground.
type Mask struct {
	Size int
	Bits []uint8
}

// NewMask allocates an all-background mask of the given side length.
func NewMask(size int) *Mask {
	return &Mask{Size: size, Bits: make([]uint8, size*size)}
}

// At reports whether the pixel at (x, y) is foreground.
func (m *Mask) At(x, y int) bool {
	return m.Bits[y*m.Size+x] != 0
}

// set marks the pixel at (x, y) as foreground.
func (m *Mask) set(x, y int) {
	m.Bits[y*m.Size+x] = 1
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b != 0 {
			n++
		}
	}
	return n
}

// Segment thresholds the frame against the given HSV ranges and
// returns the union mask. A pixel is foreground when it matches any
// range; the target hue wraps around zero, so callers pass the two
// sub-ranges of the split interval and get the logical OR. Pure
// function of its inputs.
func Segment(f *Frame, ranges []ColorRange) *Mask {
	m := NewMask(f.Size)
	for y := 0; y < f.Size; y++ {
		row := f.Pix[y*f.Size*3 : (y+1)*f.Size*3]
		for x := 0; x < f.Size; x++ {
			i := x * 3
			hsv := bgrToHSV(row[i], row[i+1], row[i+2])
			for _, r := range ranges {
				if r.Contains(hsv) {
					m.set(x, y)
					break
				}
			}
		}
	}
	return m
}
