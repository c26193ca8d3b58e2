package vision

import "testing"

func TestBGRToHSV(t *testing.T) {
	tests := []struct {
		name     string
		b, g, r  uint8
		expected HSV
	}{
		{"pure red", 0, 0, 255, HSV{H: 0, S: 255, V: 255}},
		{"pure green", 0, 255, 0, HSV{H: 60, S: 255, V: 255}},
		{"pure blue", 255, 0, 0, HSV{H: 120, S: 255, V: 255}},
		{"yellow", 0, 255, 255, HSV{H: 30, S: 255, V: 255}},
		{"white is unsaturated", 255, 255, 255, HSV{H: 0, S: 0, V: 255}},
		{"black has no value", 0, 0, 0, HSV{H: 0, S: 0, V: 0}},
		{"half-intensity red", 0, 0, 128, HSV{H: 0, S: 255, V: 128}},
		{"gray is unsaturated", 128, 128, 128, HSV{H: 0, S: 0, V: 128}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bgrToHSV(tt.b, tt.g, tt.r)
			if got != tt.expected {
				t.Errorf("bgrToHSV(%d, %d, %d) = %+v, want %+v", tt.b, tt.g, tt.r, got, tt.expected)
			}
		})
	}
}

func TestBGRToHSV_HueWrapsBelowZero(t *testing.T) {
	// A red with a blue cast sits just under the wheel's zero point:
	// the raw angle is negative and must wrap into the high half of
	// the split range, not clamp to zero.
	got := bgrToHSV(35, 0, 200)
	if got.H < 160 || got.H > 179 {
		t.Errorf("hue = %d, want wraparound red in [160,179]", got.H)
	}
	if got.S != 255 || got.V != 200 {
		t.Errorf("s/v = %d/%d, want 255/200", got.S, got.V)
	}
}

func TestColorRangeContains(t *testing.T) {
	r := ColorRange{Lo: HSV{H: 0, S: 150, V: 150}, Hi: HSV{H: 10, S: 255, V: 255}}

	tests := []struct {
		name     string
		c        HSV
		expected bool
	}{
		{"inside", HSV{H: 5, S: 200, V: 200}, true},
		{"lower bound inclusive", HSV{H: 0, S: 150, V: 150}, true},
		{"upper bound inclusive", HSV{H: 10, S: 255, V: 255}, true},
		{"hue above", HSV{H: 11, S: 200, V: 200}, false},
		{"saturation below", HSV{H: 5, S: 149, V: 200}, false},
		{"value below", HSV{H: 5, S: 200, V: 149}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Contains(tt.c); got != tt.expected {
				t.Errorf("Contains(%+v) = %v, want %v", tt.c, got, tt.expected)
			}
		})
	}
}
