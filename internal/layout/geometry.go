package layout

// BoundingBox is an axis-aligned rectangle in page coordinates.
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Area returns the box area. Degenerate boxes have zero area.
func (b BoundingBox) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Overlap returns the intersection-over-union of b and other in [0, 1].
// Disjoint boxes, and boxes whose union has no area, return 0.
func (b BoundingBox) Overlap(other BoundingBox) float64 {
	xLeft := max(b.X1, other.X1)
	yTop := max(b.Y1, other.Y1)
	xRight := min(b.X2, other.X2)
	yBottom := min(b.Y2, other.Y2)

	if xRight < xLeft || yBottom < yTop {
		return 0
	}

	intersection := (xRight - xLeft) * (yBottom - yTop)
	union := b.Area() + other.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
