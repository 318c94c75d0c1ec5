package layout

// Grid maps a width × height panel onto the strip's wiring order.
type Grid struct {
	Width, Height int
	// Serpentine wiring runs every odd row right to left.
	Serpentine bool
}

// Index maps x,y -> strip index (0..N-1).
func (g Grid) Index(x, y int) int {
	if g.Serpentine && y%2 == 1 {
		x = g.Width - 1 - x
	}
	return y*g.Width + x
}

func (g Grid) Count() int {
	return g.Width * g.Height
}

// Linear is a single row of n pixels.
func Linear(n int) Grid {
	return Grid{Width: n, Height: 1}
}
