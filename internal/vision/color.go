package vision

// HSV is a color in hue/saturation/value space using the same byte
// convention as the reference thresholds: hue in [0,180), saturation
// and value in [0,255]. Half-degree hue keeps the full wheel inside
// one byte.
type HSV struct {
	H uint8 `json:"h"`
	S uint8 `json:"s"`
	V uint8 `json:"v"`
}

// ColorRange is an inclusive HSV box. A pixel matches when every
// channel lies within [Lo, Hi].
type ColorRange struct {
	Lo HSV `json:"lo"`
	Hi HSV `json:"hi"`
}

// Contains reports whether c lies inside the range on all three
// channels.
func (r ColorRange) Contains(c HSV) bool {
	return c.H >= r.Lo.H && c.H <= r.Hi.H &&
		c.S >= r.Lo.S && c.S <= r.Hi.S &&
		c.V >= r.Lo.V && c.V <= r.Hi.V
}

// bgrToHSV converts one BGR pixel to HSV. Value is the channel
// maximum, saturation is the normalized chroma, and hue is the angle
// on the color wheel halved into [0,179].
func bgrToHSV(b, g, r uint8) HSV {
	maxc := r
	if g > maxc {
		maxc = g
	}
	if b > maxc {
		maxc = b
	}
	minc := r
	if g < minc {
		minc = g
	}
	if b < minc {
		minc = b
	}

	v := maxc
	delta := int(maxc) - int(minc)
	if maxc == 0 || delta == 0 {
		// Grays have no defined hue; saturation is zero as well.
		return HSV{H: 0, S: 0, V: v}
	}

	s := uint8((255*delta + int(maxc)/2) / int(maxc))

	var hdeg float64
	switch maxc {
	case r:
		hdeg = 60 * float64(int(g)-int(b)) / float64(delta)
	case g:
		hdeg = 120 + 60*float64(int(b)-int(r))/float64(delta)
	default:
		hdeg = 240 + 60*float64(int(r)-int(g))/float64(delta)
	}
	if hdeg < 0 {
		hdeg += 360
	}

	h := uint8(hdeg / 2)
	if h > 179 {
		h = 179
	}
	return HSV{H: h, S: s, V: v}
}
