package monitor

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"

	"github.com/kestrel-vision/followspot/internal/geom"
	"github.com/kestrel-vision/followspot/internal/monitoring"
	"github.com/kestrel-vision/followspot/internal/pipeline"
	"github.com/kestrel-vision/followspot/internal/vision"
)

// handleFramePNG serves the most recently processed frame.
func (ws *WebServer) handleFramePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	frame, _ := ws.pipe.Frames()
	if frame == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no frame captured yet")
		return
	}

	writePNG(w, frame.ToImage())
}

// handleMaskPNG serves the segmentation mask of the most recent frame,
// white foreground on black.
func (ws *WebServer) handleMaskPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	_, mask := ws.pipe.Frames()
	if mask == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no frame captured yet")
		return
	}

	writePNG(w, renderMask(mask))
}

// handleOverlayPNG serves the frame with segmentation and tracking
// state drawn over it. Candidates are re-extracted from the published
// mask; the loop does not retain them.
func (ws *WebServer) handleOverlayPNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	frame, mask := ws.pipe.Frames()
	if frame == nil || mask == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no frame captured yet")
		return
	}

	cfg := ws.pipe.Settings()
	cands, _ := vision.ExtractCandidates(mask, cfg.MinTargetArea)
	writePNG(w, renderOverlay(frame, mask, cands, ws.pipe.Last(), cfg.Center()))
}

func writePNG(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, img); err != nil {
		monitoring.Logf("monitor: encode png: %v", err)
	}
}

// renderMask converts the binary mask into a grayscale image.
func renderMask(m *vision.Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Size, m.Size))
	for y := 0; y < m.Size; y++ {
		for x := 0; x < m.Size; x++ {
			if m.At(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// renderOverlay draws tracking state over the frame: segmented pixels
// are lifted, each candidate centroid gets a colored cross, the locked
// target a ring sized to its area, and the predicted position a small
// cross. The capture center is marked in gray.
func renderOverlay(frame *vision.Frame, mask *vision.Mask, cands []vision.Candidate, res pipeline.TickResult, center geom.Point) *image.RGBA {
	img := frame.ToImage()

	for y := 0; y < mask.Size; y++ {
		for x := 0; x < mask.Size; x++ {
			if !mask.At(x, y) {
				continue
			}
			i := img.PixOffset(x, y)
			img.Pix[i] = lift(img.Pix[i])
			img.Pix[i+1] = lift(img.Pix[i+1])
			img.Pix[i+2] = lift(img.Pix[i+2])
		}
	}

	drawCross(img, center, 3, color.RGBA{R: 128, G: 128, B: 128, A: 255})

	colors := generateColors(len(cands))
	for i, c := range cands {
		drawCross(img, c.Position, 4, colors[i])
	}

	if res.Lock != nil {
		radius := math.Sqrt(res.Lock.Area/math.Pi) + 4
		drawRing(img, res.Lock.Position, radius, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		drawCross(img, res.Predicted, 2, color.RGBA{R: 64, G: 224, B: 255, A: 255})
	}

	return img
}

// lift brightens one channel so the mask reads through the scene.
func lift(v uint8) uint8 {
	n := int(v) + 64
	if n > 255 {
		return 255
	}
	return uint8(n)
}

func setPixel(img *image.RGBA, x, y int, c color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	img.Set(x, y, c)
}

func drawCross(img *image.RGBA, p geom.Point, arm int, c color.Color) {
	x0, y0 := int(p.X), int(p.Y)
	for d := -arm; d <= arm; d++ {
		setPixel(img, x0+d, y0, c)
		setPixel(img, x0, y0+d, c)
	}
}

// drawRing traces a circle outline with enough steps that adjacent
// pixels touch.
func drawRing(img *image.RGBA, p geom.Point, radius float64, c color.Color) {
	steps := int(8 * radius)
	if steps < 16 {
		steps = 16
	}
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		setPixel(img, int(p.X+radius*math.Cos(a)), int(p.Y+radius*math.Sin(a)), c)
	}
}
