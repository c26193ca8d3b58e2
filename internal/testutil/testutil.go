// Package testutil provides shared test fixtures and assertion helpers.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"testing"

	"github.com/kestrel-vision/followspot/internal/vision"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// BlobFrame paints a side×side saturated-red square with its top-left
// corner at (x0, y0) on an otherwise black frame. The blob color falls
// inside the default segmentation ranges.
func BlobFrame(size, x0, y0, side int) *vision.Frame {
	f := vision.NewFrame(size)
	for y := y0; y < y0+side; y++ {
		for x := x0; x < x0+side; x++ {
			f.Set(x, y, 40, 40, 230)
		}
	}
	return f
}

// UniformFrame fills a frame with a single BGR color.
func UniformFrame(size int, b, g, r uint8) *vision.Frame {
	f := vision.NewFrame(size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			f.Set(x, y, b, g, r)
		}
	}
	return f
}
