package tracer

type segment struct {
	from, ctrl, to point
	curve          bool
}

// fitLoop smooths a pixel boundary through its edge midpoints, splits it
// into runs using at most two step directions and fits each run.
func fitLoop(loop []point, opts Options) []segment {
	n := len(loop)
	if n < 2 {
		return nil
	}

	mids := make([]point, n)
	for i := range loop {
		a, b := loop[i], loop[(i+1)%n]
		mids[i] = point{(a.x + b.x) / 2, (a.y + b.y) / 2}
	}

	dirs := make([]int, n)
	for i := range mids {
		dirs[i] = stepCode(mids[i], mids[(i+1)%n])
	}

	// Start on a direction change so that no run wraps past the seam.
	start := 0
	for i := 0; i < n; i++ {
		if dirs[(i+n-1)%n] != dirs[i] {
			start = i
			break
		}
	}
	pts := make([]point, n)
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		pts[i] = mids[(start+i)%n]
		codes[i] = dirs[(start+i)%n]
	}

	var segs []segment
	runStart := 0
	seen := []int{}
	for i := 0; i < n; i++ {
		if contains(seen, codes[i]) {
			continue
		}
		if len(seen) == 2 {
			segs = append(segs, fitRun(pts, runStart, i, opts)...)
			runStart = i
			seen = seen[:0]
		}
		seen = append(seen, codes[i])
	}
	return append(segs, fitRun(pts, runStart, n, opts)...)
}

func stepCode(a, b point) int {
	return (sgn(b.x-a.x)+1)*3 + sgn(b.y-a.y) + 1
}

func sgn(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// fitRun fits pts[a..b] (b may equal len(pts), meaning pts[0]) with a single
// line, a single quadratic spline, or splits at the worst point and recurses.
func fitRun(pts []point, a, b int, opts Options) []segment {
	at := func(i int) point { return pts[i%len(pts)] }
	pa, pb := at(a), at(b)

	if b-a <= 1 {
		return []segment{{from: pa, to: pb}}
	}

	span := float64(b - a)
	worst, worstErr := a+1, -1.0
	for i := a + 1; i < b; i++ {
		t := float64(i-a) / span
		p := at(i)
		e := dist2(p, point{pa.x + (pb.x-pa.x)*t, pa.y + (pb.y-pa.y)*t})
		if e > worstErr {
			worst, worstErr = i, e
		}
	}
	if worstErr <= opts.LineTolerance {
		return []segment{{from: pa, to: pb}}
	}

	t := float64(worst-a) / span
	t1, t2, t3 := (1-t)*(1-t), 2*(1-t)*t, t*t
	pf := at(worst)
	cp := point{
		(pf.x - t1*pa.x - t3*pb.x) / t2,
		(pf.y - t1*pa.y - t3*pb.y) / t2,
	}

	fits := true
	for i := a + 1; i < b; i++ {
		t := float64(i-a) / span
		t1, t2, t3 := (1-t)*(1-t), 2*(1-t)*t, t*t
		q := point{t1*pa.x + t2*cp.x + t3*pb.x, t1*pa.y + t2*cp.y + t3*pb.y}
		if dist2(at(i), q) > opts.CurveTolerance {
			fits = false
			break
		}
	}
	if fits {
		return []segment{{from: pa, ctrl: cp, to: pb, curve: true}}
	}

	return append(fitRun(pts, a, worst, opts), fitRun(pts, worst, b, opts)...)
}

func dist2(a, b point) float64 {
	dx, dy := a.x-b.x, a.y-b.y
	return dx*dx + dy*dy
}
