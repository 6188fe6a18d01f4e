package viz

import (
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

const blank = 0x2800

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the sub-pixel (x, y). The canvas is Width*2 by Height*4
// sub-pixels; anything outside is ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// IsSet reports whether the sub-pixel (x, y) is lit.
func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Viewport is the world rectangle mapped onto a canvas, y up.
type Viewport struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// Square returns a viewport centred on the origin that holds a chain of
// the given reach in any pose, with a small margin.
func Square(reach float64) Viewport {
	r := 1.05 * math.Max(reach, 1e-9)
	return Viewport{MinX: -r, MaxX: r, MinY: -r, MaxY: r}
}

// Pixel maps a world point to canvas sub-pixel coordinates.
func (c *Canvas) Pixel(vp Viewport, p mgl64.Vec3) (int, int) {
	w := float64(c.Width*2 - 1)
	h := float64(c.Height*4 - 1)
	x := (p.X() - vp.MinX) / (vp.MaxX - vp.MinX) * w
	y := (vp.MaxY - p.Y()) / (vp.MaxY - vp.MinY) * h
	return int(math.Round(x)), int(math.Round(y))
}

// DrawChain draws segments between consecutive points and a small cross at
// each joint.
func (c *Canvas) DrawChain(vp Viewport, pts []mgl64.Vec3) {
	for i := range pts {
		x, y := c.Pixel(vp, pts[i])
		c.Set(x-1, y)
		c.Set(x+1, y)
		c.Set(x, y-1)
		c.Set(x, y+1)
		if i == 0 {
			continue
		}
		x0, y0 := c.Pixel(vp, pts[i-1])
		c.DrawLine(x0, y0, x, y)
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
