package vision

import (
	"sort"

	"github.com/kestrel-vision/followspot/internal/geom"
)

// Candidate is a detected foreground region: its area in pixels and
// its area-weighted centroid in capture-local coordinates. Centroid
// coordinates are truncated to whole pixels, matching the integer
// positions the tracker and lock matching operate on.
type Candidate struct {
	Position geom.Point
	Area     float64
}

// ExtractStats counts what the extractor saw and why regions were
// dropped. The pipeline logs these per tick when debugging.
type ExtractStats struct {
	Regions     int // connected regions visited
	Degenerate  int // zero-moment regions skipped
	BelowMin    int // regions at or under the minimum area
	OutOfBounds int // regions whose centroid fell outside the frame
}

// ExtractCandidates finds maximal 8-connected foreground regions in
// the mask and returns one candidate per surviving region, sorted by
// area descending. The sort is stable: regions of equal area keep
// their discovery (scan) order. Regions are dropped when their area is
// at or below minArea, their zeroth moment is zero, or their centroid
// lies outside [0,size)×[0,size).
func ExtractCandidates(m *Mask, minArea float64) ([]Candidate, ExtractStats) {
	var stats ExtractStats
	size := m.Size
	visited := make([]bool, size*size)
	var cands []Candidate

	// Reused flood-fill stack; worst case one entry per pixel.
	stack := make([][2]int, 0, 256)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			idx := y*size + x
			if visited[idx] || m.Bits[idx] == 0 {
				continue
			}

			// Flood fill one region, accumulating the zeroth and
			// first moments as we go.
			var count int
			var sumX, sumY float64
			stack = append(stack[:0], [2]int{x, y})
			visited[idx] = true
			for len(stack) > 0 {
				p := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				px, py := p[0], p[1]

				count++
				sumX += float64(px)
				sumY += float64(py)

				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := px+dx, py+dy
						if nx < 0 || ny < 0 || nx >= size || ny >= size {
							continue
						}
						nidx := ny*size + nx
						if visited[nidx] || m.Bits[nidx] == 0 {
							continue
						}
						visited[nidx] = true
						stack = append(stack, [2]int{nx, ny})
					}
				}
			}

			stats.Regions++
			if count == 0 {
				// Zero moment: nothing to divide by, skip the region.
				stats.Degenerate++
				continue
			}
			area := float64(count)
			if area <= minArea {
				stats.BelowMin++
				continue
			}
			cx := float64(int(sumX / float64(count)))
			cy := float64(int(sumY / float64(count)))
			if cx < 0 || cy < 0 || cx >= float64(size) || cy >= float64(size) {
				stats.OutOfBounds++
				continue
			}
			cands = append(cands, Candidate{
				Position: geom.Point{X: cx, Y: cy},
				Area:     area,
			})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Area > cands[j].Area
	})
	return cands, stats
}
