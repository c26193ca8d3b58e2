package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/kestrel-vision/followspot/internal/vision"
)

// ImageSequenceSource plays the image files of a directory as frames,
// in lexical filename order. Each image is center-cropped to square and
// resampled to the capture size, so mixed resolutions are fine.
type ImageSequenceSource struct {
	size  int
	loop  bool
	files []string
	idx   int
}

// NewImageSequenceSource scans dir for PNG and JPEG files. It fails if
// the directory is unreadable or holds no images, since a permanently
// empty source would stall the loop forever.
func NewImageSequenceSource(dir string, size int, loop bool) (*ImageSequenceSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	sort.Strings(files)

	return &ImageSequenceSource{size: size, loop: loop, files: files}, nil
}

// Len returns the number of images in the sequence.
func (s *ImageSequenceSource) Len() int {
	return len(s.files)
}

// Grab implements FrameSource. A non-looping source reports
// ErrExhausted once every image has been served; an unreadable file
// reports ErrNoFrame and the sequence moves on.
func (s *ImageSequenceSource) Grab(ctx context.Context) (*vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.idx >= len(s.files) {
		if !s.loop {
			return nil, ErrExhausted
		}
		s.idx = 0
	}

	path := s.files[s.idx]
	s.idx++

	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrNoFrame, filepath.Base(path), err)
	}
	fitted := imaging.Fill(img, s.size, s.size, imaging.Center, imaging.Lanczos)
	return vision.FrameFromImage(fitted, s.size)
}
