package stats

import "github.com/rbaliyan/moodlog/store"

// Point is one (x, y) observation for the trend fit.
type Point struct {
	X float64
	Y float64
}

// Line is a fitted y = Slope*x + Intercept.
type Line struct {
	Slope     float64
	Intercept float64
}

// Fit computes the ordinary least-squares line through points.
// It reports false when there are fewer than two points or when all x
// values are identical.
func Fit(points []Point) (Line, bool) {
	if len(points) < 2 {
		return Line{}, false
	}

	n := float64(len(points))
	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumX2 += p.X * p.X
	}

	den := n*sumX2 - sumX*sumX
	if den == 0 {
		return Line{}, false
	}

	slope := (n*sumXY - sumX*sumY) / den
	return Line{
		Slope:     slope,
		Intercept: (sumY - slope*sumX) / n,
	}, true
}

// Trend is the qualitative direction of a fitted slope.
type Trend int

const (
	Unavailable Trend = iota
	Increasing
	Decreasing
	Stable
)

func (t Trend) String() string {
	switch t {
	case Increasing:
		return "Increasing"
	case Decreasing:
		return "Decreasing"
	case Stable:
		return "Stable"
	default:
		return "Unavailable"
	}
}

// Classify labels a slope. ok=false means no slope could be fitted.
//
// Stable requires the slope to be exactly zero. Floating sums over real
// data are rarely exactly zero, so Stable mostly appears for flat series
// such as an all-empty window.
func Classify(slope float64, ok bool) Trend {
	switch {
	case !ok:
		return Unavailable
	case slope > 0:
		return Increasing
	case slope < 0:
		return Decreasing
	default:
		return Stable
	}
}

// TrendResult is the trend computed over a window of daily buckets.
type TrendResult struct {
	// Window is the dense series the fit was computed over.
	Window []store.DailyBucket
	// Indices holds Index(Window[i]) for each day.
	Indices []float64
	// Line is the fitted line; valid only when OK is true.
	Line Line
	// OK reports whether a line could be fitted.
	OK bool
	// Trend is the classification of Line.Slope.
	Trend Trend
}

// TrendOf fits (offset, index) pairs for a window, offsets 0..len-1.
func TrendOf(window []store.DailyBucket) TrendResult {
	indices := Indices(window)
	points := make([]Point, len(indices))
	for i, y := range indices {
		points[i] = Point{X: float64(i), Y: y}
	}
	line, ok := Fit(points)
	return TrendResult{
		Window:  window,
		Indices: indices,
		Line:    line,
		OK:      ok,
		Trend:   Classify(line.Slope, ok),
	}
}
