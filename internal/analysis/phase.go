package analysis

import (
	"strings"

	"github.com/san-kum/jointlock/internal/recorder"
)

type Point struct {
	X, Y   float64
	Locked bool
}

// Portrait is a 2D point cloud with the axes it was taken from.
type Portrait struct {
	XLabel, YLabel string
	Points         []Point
}

// Phase returns the (q, u) trajectory of one joint.
func Phase(snaps []recorder.Snapshot, joint int) *Portrait {
	p := &Portrait{XLabel: "q", YLabel: "u", Points: make([]Point, 0, len(snaps))}
	for _, s := range snaps {
		if joint >= len(s.Q) || joint >= len(s.U) {
			continue
		}
		p.Points = append(p.Points, Point{X: s.Q[joint], Y: s.U[joint], Locked: s.Locked})
	}
	return p
}

// Section records the (q, u) of joint each time the angle of trigger
// crosses level, interpolated linearly between the bracketing snapshots.
func Section(snaps []recorder.Snapshot, joint, trigger int, level float64) *Portrait {
	p := &Portrait{XLabel: "q", YLabel: "u"}
	for i := 1; i < len(snaps); i++ {
		a, b := snaps[i-1], snaps[i]
		if trigger >= len(a.Q) || joint >= len(a.Q) {
			continue
		}
		fa, fb := a.Q[trigger]-level, b.Q[trigger]-level
		if fa == 0 || fa*fb > 0 {
			continue
		}
		w := fa / (fa - fb)
		p.Points = append(p.Points, Point{
			X:      a.Q[joint] + w*(b.Q[joint]-a.Q[joint]),
			Y:      a.U[joint] + w*(b.U[joint]-a.U[joint]),
			Locked: b.Locked,
		})
	}
	return p
}

// ASCII plots the portrait, '•' for free samples and '#' for locked ones,
// with axes where they cross the visible area.
func (p *Portrait) ASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = min(minX, pt.X), max(maxX, pt.X)
		minY, maxY = min(minY, pt.Y), max(maxY, pt.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX = maxX - minX
	rangeY = maxY - minY

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	for _, pt := range p.Points {
		col := int((pt.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.Y-minY)/rangeY*float64(height-1))
		if row < 0 || row >= height || col < 0 || col >= width {
			continue
		}
		if pt.Locked {
			canvas[row][col] = '#'
		} else if canvas[row][col] != '#' {
			canvas[row][col] = '•'
		}
	}

	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if canvas[row][col] == ' ' {
				canvas[row][col] = '─'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
