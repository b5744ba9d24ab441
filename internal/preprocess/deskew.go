package preprocess

import (
	"errors"
	"image"
	"math"
	"sort"
)

const (
	sobelEdgeThreshold = 96
	minEdgePoints      = 32
	minSkewDegrees     = 0.1
)

var errNoTextEdges = errors.New("not enough edge points to estimate skew")

type point struct {
	x, y float64
}

// deskew estimates the dominant text-line angle from edge points and rotates
// the image to correct it. Angles below -45 degrees are folded by +90 so a
// portrait-vs-landscape ambiguity never flips the page.
func deskew(src *image.Gray) (*image.Gray, error) {
	points := sobelEdgePoints(src)
	if len(points) < minEdgePoints {
		return nil, errNoTextEdges
	}

	angle := minAreaRectAngle(points)
	if angle < -45 {
		angle += 90
	}
	if math.Abs(angle) < minSkewDegrees {
		return src, nil
	}
	// Rotate by the negated estimate to cancel the skew.
	return rotate(src, -angle), nil
}

// sobelEdgePoints collects pixel coordinates whose gradient magnitude exceeds
// a fixed threshold. Rows and columns are sampled at stride 2; full density
// adds nothing to the angle estimate.
func sobelEdgePoints(src *image.Gray) []point {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 3 || h < 3 {
		return nil
	}
	at := func(x, y int) int {
		return int(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
	}

	points := make([]point, 0, 1024)
	for y := 1; y < h-1; y += 2 {
		for x := 1; x < w-1; x += 2 {
			gx := -at(x-1, y-1) + at(x+1, y-1) +
				-2*at(x-1, y) + 2*at(x+1, y) +
				-at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			if gx*gx+gy*gy > sobelEdgeThreshold*sobelEdgeThreshold {
				points = append(points, point{x: float64(x), y: float64(y)})
			}
		}
	}
	return points
}

// minAreaRectAngle returns the orientation, in degrees within [-90, 0), of the
// minimum-area bounding rectangle over the points (rotating calipers over the
// convex hull).
func minAreaRectAngle(points []point) float64 {
	hull := convexHull(points)
	if len(hull) < 3 {
		return 0
	}

	bestArea := math.Inf(1)
	bestAngle := 0.0
	for i := 0; i < len(hull); i++ {
		j := (i + 1) % len(hull)
		ex := hull[j].x - hull[i].x
		ey := hull[j].y - hull[i].y
		length := math.Hypot(ex, ey)
		if length == 0 {
			continue
		}
		ux, uy := ex/length, ey/length

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			u := p.x*ux + p.y*uy
			v := -p.x*uy + p.y*ux
			minU = math.Min(minU, u)
			maxU = math.Max(maxU, u)
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
		area := (maxU - minU) * (maxV - minV)
		if area < bestArea {
			bestArea = area
			bestAngle = math.Atan2(uy, ux) * 180 / math.Pi
		}
	}

	// Normalize to [-90, 0) the way a rotated bounding box reports it.
	for bestAngle >= 0 {
		bestAngle -= 90
	}
	for bestAngle < -90 {
		bestAngle += 90
	}
	return bestAngle
}

// convexHull computes the convex hull via Andrew's monotone chain.
func convexHull(points []point) []point {
	n := len(points)
	if n < 3 {
		return points
	}
	sorted := make([]point, n)
	copy(sorted, points)
	sortPoints(sorted)

	hull := make([]point, 0, 2*n)
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := n - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

func sortPoints(points []point) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].x != points[j].x {
			return points[i].x < points[j].x
		}
		return points[i].y < points[j].y
	})
}

func cross(o, a, b point) float64 {
	return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
}

// rotate returns src rotated by angle degrees (counter-clockwise positive)
// about its center, sampling bilinearly with a white background.
func rotate(src *image.Gray, angleDeg float64) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	rad := angleDeg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(w)/2, float64(h)/2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Inverse mapping into the source.
			dx := float64(x) - cx
			dy := float64(y) - cy
			sx := cos*dx + sin*dy + cx
			sy := -sin*dx + cos*dy + cy
			dst.Pix[y*dst.Stride+x] = sampleBilinear(src, sx, sy)
		}
	}
	return dst
}

func sampleBilinear(src *image.Gray, x, y float64) uint8 {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if x < 0 || y < 0 || x > float64(w-1) || y > float64(h-1) {
		return 255
	}
	x0, y0 := int(x), int(y)
	x1, y1 := clampInt(x0+1, 0, w-1), clampInt(y0+1, 0, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	at := func(px, py int) float64 {
		return float64(src.GrayAt(bounds.Min.X+px, bounds.Min.Y+py).Y)
	}
	top := at(x0, y0)*(1-fx) + at(x1, y0)*fx
	bottom := at(x0, y1)*(1-fx) + at(x1, y1)*fx
	return uint8(top*(1-fy) + bottom*fy + 0.5)
}
