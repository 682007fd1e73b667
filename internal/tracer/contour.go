package tracer

// Edge directions around a pixel, clockwise on screen (y grows downward).
const (
	dirRight = iota
	dirDown
	dirLeft
	dirUp
)

var (
	stepX = [4]int{1, 0, -1, 0}
	stepY = [4]int{0, 1, 0, -1}
)

type point struct{ x, y float64 }

// contours returns the closed boundaries of the pixels labelled k. Every
// boundary keeps the layer on its right, so outer edges run clockwise and
// holes counter-clockwise. Pixels touching only diagonally end up in
// separate contours.
func contours(idx []uint8, w, h int, k uint8) [][]point {
	in := func(x, y int) bool {
		return x >= 0 && y >= 0 && x < w && y < h && idx[y*w+x] == k
	}

	stride := w + 1
	out := make([]uint8, stride*(h+1)) // bitmask of outgoing directions per vertex
	pending := 0
	add := func(x, y, dir int) {
		out[y*stride+x] |= 1 << dir
		pending++
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !in(x, y) {
				continue
			}
			if !in(x, y-1) {
				add(x, y, dirRight)
			}
			if !in(x+1, y) {
				add(x+1, y, dirDown)
			}
			if !in(x, y+1) {
				add(x+1, y+1, dirLeft)
			}
			if !in(x-1, y) {
				add(x, y+1, dirUp)
			}
		}
	}

	var loops [][]point
	for v := 0; v < len(out) && pending > 0; v++ {
		for out[v] != 0 {
			loop := follow(out, v, stride)
			pending -= len(loop)
			loops = append(loops, loop)
		}
	}
	return loops
}

// follow walks one closed boundary starting at vertex start, consuming the
// edges it crosses.
func follow(out []uint8, start, stride int) []point {
	dir := lowestBit(out[start])
	v := start

	var loop []point
	for {
		x, y := v%stride, v/stride
		loop = append(loop, point{float64(x), float64(y)})
		out[v] &^= 1 << dir

		v = (y+stepY[dir])*stride + x + stepX[dir]
		if v == start {
			return loop
		}
		if dir = turn(out[v], dir); dir < 0 {
			return loop
		}
	}
}

// turn picks the next edge, preferring a right turn so that diagonal
// neighbours are not merged. It returns -1 at a dead end.
func turn(mask uint8, dir int) int {
	for _, d := range [3]int{(dir + 1) % 4, dir, (dir + 3) % 4} {
		if mask&(1<<d) != 0 {
			return d
		}
	}
	return -1
}

func lowestBit(m uint8) int {
	for d := 0; d < 4; d++ {
		if m&(1<<d) != 0 {
			return d
		}
	}
	return 0
}
