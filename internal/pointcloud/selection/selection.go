// Package selection implements the Selection Engine (spec.md §4.5):
// screen-space rectangle selection over NDC-projected point positions.
// It is single-shot and stateless — callers push queries in and read the
// resulting per-cloud index lists back out.
package selection

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/pointcloud-studio/internal/pointcloud/cloud"
)

// minRectPixels is the smallest rectangle dimension treated as an
// intentional drag rather than a click; rectangles smaller than this in
// both axes select nothing.
const minRectPixels = 4

// Rect is a screen-space axis-aligned selection box in pixels. The two
// corners need not be pre-sorted; Query normalizes them.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// normalized returns the rect with X1<=X2 and Y1<=Y2.
func (r Rect) normalized() Rect {
	if r.X1 > r.X2 {
		r.X1, r.X2 = r.X2, r.X1
	}
	if r.Y1 > r.Y2 {
		r.Y1, r.Y2 = r.Y2, r.Y1
	}
	return r
}

func (r Rect) isClick() bool {
	return (r.X2-r.X1) < minRectPixels && (r.Y2-r.Y1) < minRectPixels
}

// Query selects points from c whose clip-space position, after applying
// viewProj, lands within rect's NDC box (screen coords mapped to [-1,1]
// via viewportW/H). Points with non-positive clip w are skipped, since
// they lie behind the camera or at the eye plane. A tiny rect (both
// dimensions under minRectPixels) is treated as a click and selects
// nothing. Returns the indices selected, in ascending order.
func Query(c *cloud.Cloud, viewProj *mat.Dense, rect Rect, viewportW, viewportH float64) []int {
	rect = rect.normalized()
	if rect.isClick() {
		return nil
	}

	ndcMinX := (rect.X1/viewportW)*2 - 1
	ndcMaxX := (rect.X2/viewportW)*2 - 1
	// screen Y grows downward; NDC Y grows upward.
	ndcMinY := 1 - (rect.Y2/viewportH)*2
	ndcMaxY := 1 - (rect.Y1/viewportH)*2

	n := c.PointCount()
	selected := make([]int, 0)
	for i := 0; i < n; i++ {
		p := c.Position(i)
		clip := projectPoint(viewProj, p)
		if clip.W <= 0 {
			continue
		}
		x := clip.X / clip.W
		y := clip.Y / clip.W
		if x >= ndcMinX && x <= ndcMaxX && y >= ndcMinY && y <= ndcMaxY {
			selected = append(selected, i)
		}
	}
	return selected
}

type clipPoint struct {
	X, Y, Z, W float64
}

func projectPoint(viewProj *mat.Dense, p r3.Vec) clipPoint {
	v := mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1})
	var out mat.VecDense
	out.MulVec(viewProj, v)
	return clipPoint{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2), W: out.AtVec(3)}
}

// Apply marks every index in sel as selected and everything else as not,
// sizing c.Selected to the current point count. Subsequent Delete calls
// consume this flag stream.
func Apply(c *cloud.Cloud, sel []int) {
	c.ResetSelection()
	for _, i := range sel {
		if i >= 0 && i < len(c.Selected) {
			c.Selected[i] = true
		}
	}
}

// Clear resets every Selected flag to false.
func Clear(c *cloud.Cloud) {
	for i := range c.Selected {
		c.Selected[i] = false
	}
}
