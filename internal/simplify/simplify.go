// Package simplify reduces polylines stored as interleaved x,y coordinates.
//
// Simplify runs a radial-distance pre-filter followed by Douglas-Peucker.
// All comparisons are done on squared distances. The output is always a
// subsequence of the input: coordinates are never interpolated.
package simplify

// DefaultTolerance is used when Simplify is called with a negative tolerance.
const DefaultTolerance = 1.0

// Simplify reduces points (x0, y0, x1, y1, ...) so that no dropped vertex
// deviates more than tolerance meters from the result.
//
// With highestQuality the radial pre-filter is skipped and only
// Douglas-Peucker runs. A negative tolerance selects DefaultTolerance.
// The first input point is always kept. The last is kept unless the radial
// pass finds it on top of the previously kept point, so a closed ring that
// fits inside the tolerance collapses to its first point. Douglas-Peucker
// alone keeps both endpoints even when they coincide.
func Simplify(points []float64, tolerance float64, highestQuality bool) []float64 {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	sqTolerance := tolerance * tolerance

	if len(points) <= 4 {
		return append([]float64(nil), points...)
	}

	if !highestQuality {
		points = radialDistance(points, sqTolerance)
	}
	return douglasPeucker(points, sqTolerance)
}

// sqDist returns the squared distance between two points.
func sqDist(p1x, p1y, p2x, p2y float64) float64 {
	dx := p1x - p2x
	dy := p1y - p2y
	return dx*dx + dy*dy
}

// sqSegDist returns the squared distance from p to the segment p1-p2.
func sqSegDist(px, py, p1x, p1y, p2x, p2y float64) float64 {
	x, y := p1x, p1y
	dx := p2x - x
	dy := p2y - y

	if dx != 0 || dy != 0 {
		t := ((px-x)*dx + (py-y)*dy) / (dx*dx + dy*dy)
		if t > 1 {
			x, y = p2x, p2y
		} else if t > 0 {
			x += dx * t
			y += dy * t
		}
	}

	dx = px - x
	dy = py - y
	return dx*dx + dy*dy
}

// radialDistance keeps a point only when it lies farther than the tolerance
// from the previously kept point. The last input point is appended unless
// it has the same coordinates as the previously kept point.
func radialDistance(points []float64, sqTolerance float64) []float64 {
	prevX, prevY := points[0], points[1]
	out := make([]float64, 0, len(points))
	out = append(out, prevX, prevY)

	n := len(points) / 2
	for i := 1; i < n; i++ {
		x, y := points[2*i], points[2*i+1]
		if sqDist(x, y, prevX, prevY) > sqTolerance {
			out = append(out, x, y)
			prevX, prevY = x, y
		}
	}

	if lx, ly := points[2*(n-1)], points[2*(n-1)+1]; lx != prevX || ly != prevY {
		out = append(out, lx, ly)
	}
	return out
}

// douglasPeucker marks the vertices to keep using an explicit stack of
// (first, last) index pairs instead of recursion, so stack depth does not
// grow with the number of vertices.
func douglasPeucker(points []float64, sqTolerance float64) []float64 {
	n := len(points) / 2
	if n <= 2 {
		return append([]float64(nil), points...)
	}

	markers := make([]bool, n)
	first, last := 0, n-1
	markers[first] = true
	markers[last] = true

	var stack []int
	kept := 2

	for {
		maxSqDist := 0.0
		index := 0

		fx, fy := points[2*first], points[2*first+1]
		lx, ly := points[2*last], points[2*last+1]
		for i := first + 1; i < last; i++ {
			d := sqSegDist(points[2*i], points[2*i+1], fx, fy, lx, ly)
			if d > maxSqDist {
				index = i
				maxSqDist = d
			}
		}

		if maxSqDist > sqTolerance {
			markers[index] = true
			kept++
			stack = append(stack, first, index, index, last)
		}

		if len(stack) == 0 {
			break
		}
		last = stack[len(stack)-1]
		first = stack[len(stack)-2]
		stack = stack[:len(stack)-2]
	}

	out := make([]float64, 0, 2*kept)
	for i, keep := range markers {
		if keep {
			out = append(out, points[2*i], points[2*i+1])
		}
	}
	return out
}
