package kicad

import (
	"math"

	"edaplot/internal/sexpr"
)

// Geometry is the board's bounding extent in millimetres. The origin is the
// top-left corner in board coordinates (Y grows downwards) and may be
// negative.
type Geometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type point struct{ x, y float64 }

type bbox struct {
	minX, minY, maxX, maxY float64
	empty                  bool
}

func newBBox() *bbox { return &bbox{empty: true} }

func (b *bbox) add(p point, inflate float64) {
	if b.empty {
		b.minX, b.minY, b.maxX, b.maxY = p.x-inflate, p.y-inflate, p.x+inflate, p.y+inflate
		b.empty = false
		return
	}
	b.minX = math.Min(b.minX, p.x-inflate)
	b.minY = math.Min(b.minY, p.y-inflate)
	b.maxX = math.Max(b.maxX, p.x+inflate)
	b.maxY = math.Max(b.maxY, p.y+inflate)
}

func (b *bbox) geometry() Geometry {
	if b.empty {
		return Geometry{}
	}
	return Geometry{
		X:      round(b.minX),
		Y:      round(b.minY),
		Width:  round(b.maxX - b.minX),
		Height: round(b.maxY - b.minY),
	}
}

// round trims float noise below the board file's nanometre resolution.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// transform places footprint-local coordinates on the board.
type transform struct {
	origin point
	angle  float64 // degrees, counter-clockwise as displayed
}

var identity = transform{}

func (t transform) apply(p point) point {
	if t.angle != 0 {
		p = rotate(p, t.angle)
	}
	return point{x: p.x + t.origin.x, y: p.y + t.origin.y}
}

// rotate turns p by deg degrees counter-clockwise on screen. Board Y grows
// downwards, so the usual sine sign is flipped.
func rotate(p point, deg float64) point {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return point{
		x: p.x*cos + p.y*sin,
		y: -p.x*sin + p.y*cos,
	}
}

// BoundingBox computes the extent of every drawn item on the board: graphic
// shapes, tracks, vias, zones and footprints with their pads and graphics.
// Stroke widths are included, text is approximated by its anchor.
func (b *Board) BoundingBox() Geometry {
	box := newBBox()
	for _, item := range b.root.Args() {
		switch item.Name() {
		case "footprint", "module":
			addFootprint(box, item)
		case "zone":
			addZone(box, item)
		default:
			addShape(box, item, identity, "gr_")
			addTrack(box, item)
		}
	}
	return box.geometry()
}

func xy(n *sexpr.Node) (point, bool) {
	if n == nil {
		return point{}, false
	}
	x, okX := n.Float(0)
	y, okY := n.Float(1)
	return point{x: x, y: y}, okX && okY
}

func strokeWidth(n *sexpr.Node) float64 {
	if w, ok := n.Child("width").Float(0); ok {
		return w
	}
	if stroke := n.Child("stroke"); stroke != nil {
		if w, ok := stroke.Child("width").Float(0); ok {
			return w
		}
	}
	return 0
}

// addShape handles the graphic primitives shared by board level items
// (prefix "gr_") and footprint items (prefix "fp_").
func addShape(box *bbox, n *sexpr.Node, t transform, prefix string) {
	name := n.Name()
	if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
		return
	}
	half := strokeWidth(n) / 2
	switch name[len(prefix):] {
	case "line":
		addPoints(box, t, half, n.Child("start"), n.Child("end"))
	case "rect":
		start, okS := xy(n.Child("start"))
		end, okE := xy(n.Child("end"))
		if okS && okE {
			for _, p := range []point{start, end, {start.x, end.y}, {end.x, start.y}} {
				box.add(t.apply(p), half)
			}
		}
	case "circle":
		center, okC := xy(n.Child("center"))
		end, okE := xy(n.Child("end"))
		if okC && okE {
			r := math.Hypot(end.x-center.x, end.y-center.y)
			c := t.apply(center)
			box.add(c, r+half)
		}
	case "arc":
		addArcNode(box, n, t, half)
	case "poly":
		addPolygon(box, n.Child("pts"), t, half)
	case "curve":
		// Bezier control points bound the curve.
		addPolygon(box, n.Child("pts"), t, half)
	case "text":
		if at, ok := xy(n.Child("at")); ok {
			box.add(t.apply(at), 0)
		}
	}
}

func addPoints(box *bbox, t transform, inflate float64, nodes ...*sexpr.Node) {
	for _, n := range nodes {
		if p, ok := xy(n); ok {
			box.add(t.apply(p), inflate)
		}
	}
}

func addPolygon(box *bbox, pts *sexpr.Node, t transform, inflate float64) {
	if pts == nil {
		return
	}
	for _, p := range pts.Children("xy") {
		addPoints(box, t, inflate, p)
	}
}

func addTrack(box *bbox, n *sexpr.Node) {
	switch n.Name() {
	case "segment":
		addPoints(box, identity, strokeWidth(n)/2, n.Child("start"), n.Child("end"))
	case "arc":
		addArcNode(box, n, identity, strokeWidth(n)/2)
	case "via":
		if at, ok := xy(n.Child("at")); ok {
			size, _ := n.Child("size").Float(0)
			box.add(at, size/2)
		}
	}
}

func addZone(box *bbox, n *sexpr.Node) {
	for _, poly := range n.Children("polygon") {
		addPolygon(box, poly.Child("pts"), identity, 0)
	}
	for _, poly := range n.Children("filled_polygon") {
		addPolygon(box, poly.Child("pts"), identity, 0)
	}
}

func addFootprint(box *bbox, n *sexpr.Node) {
	at := n.Child("at")
	origin, ok := xy(at)
	if !ok {
		return
	}
	angle, _ := at.Float(2)
	t := transform{origin: origin, angle: angle}
	box.add(origin, 0)
	for _, item := range n.Args() {
		if item.Name() == "pad" {
			addPad(box, item, t)
			continue
		}
		addShape(box, item, t, "fp_")
	}
}

func addPad(box *bbox, n *sexpr.Node, t transform) {
	at := n.Child("at")
	local, ok := xy(at)
	if !ok {
		return
	}
	// The pad angle in the file already includes the footprint rotation.
	padAngle, _ := at.Float(2)
	w, _ := n.Child("size").Float(0)
	h, _ := n.Child("size").Float(1)
	center := t.apply(local)
	for _, corner := range []point{{-w / 2, -h / 2}, {w / 2, -h / 2}, {w / 2, h / 2}, {-w / 2, h / 2}} {
		c := rotate(corner, padAngle)
		box.add(point{x: center.x + c.x, y: center.y + c.y}, 0)
	}
}

// addArcNode accepts both arc encodings: start/mid/end (KiCad 6 and later)
// and center/end/angle (KiCad 5, where "start" holds the center).
func addArcNode(box *bbox, n *sexpr.Node, t transform, inflate float64) {
	start, okS := xy(n.Child("start"))
	end, okE := xy(n.Child("end"))
	if !okS || !okE {
		return
	}
	if mid, ok := xy(n.Child("mid")); ok {
		addArc(box, t.apply(start), t.apply(mid), t.apply(end), inflate)
		return
	}
	angle, ok := n.Child("angle").Float(0)
	if !ok {
		addPoints(box, t, inflate, n.Child("start"), n.Child("end"))
		return
	}
	center := start
	rel := point{x: end.x - center.x, y: end.y - center.y}
	// KiCad 5 arc angles are clockwise on screen.
	midRel := rotate(rel, -angle/2)
	endRel := rotate(rel, -angle)
	addArc(box,
		t.apply(end),
		t.apply(point{x: center.x + midRel.x, y: center.y + midRel.y}),
		t.apply(point{x: center.x + endRel.x, y: center.y + endRel.y}),
		inflate)
}

// addArc adds the arc through a, m and c, including any axis extreme the arc
// sweeps past.
func addArc(box *bbox, a, m, c point, inflate float64) {
	box.add(a, inflate)
	box.add(m, inflate)
	box.add(c, inflate)

	center, r, ok := circumcircle(a, m, c)
	if !ok {
		return
	}
	angA := math.Atan2(a.y-center.y, a.x-center.x)
	angM := math.Atan2(m.y-center.y, m.x-center.x)
	angC := math.Atan2(c.y-center.y, c.x-center.x)
	for _, extreme := range []float64{0, math.Pi / 2, math.Pi, -math.Pi / 2} {
		if onArc(angA, angM, angC, extreme) {
			box.add(point{x: center.x + r*math.Cos(extreme), y: center.y + r*math.Sin(extreme)}, inflate)
		}
	}
}

func circumcircle(a, b, c point) (point, float64, bool) {
	d := 2 * (a.x*(b.y-c.y) + b.x*(c.y-a.y) + c.x*(a.y-b.y))
	if math.Abs(d) < 1e-12 {
		return point{}, 0, false
	}
	a2 := a.x*a.x + a.y*a.y
	b2 := b.x*b.x + b.y*b.y
	c2 := c.x*c.x + c.y*c.y
	center := point{
		x: (a2*(b.y-c.y) + b2*(c.y-a.y) + c2*(a.y-b.y)) / d,
		y: (a2*(c.x-b.x) + b2*(a.x-c.x) + c2*(b.x-a.x)) / d,
	}
	return center, math.Hypot(a.x-center.x, a.y-center.y), true
}

// onArc reports whether angle x lies on the sweep from a to c passing
// through m.
func onArc(a, m, c, x float64) bool {
	ccw := func(from, to float64) float64 {
		d := math.Mod(to-from, 2*math.Pi)
		if d < 0 {
			d += 2 * math.Pi
		}
		return d
	}
	sweep := ccw(a, c)
	if ccw(a, m) <= sweep {
		return ccw(a, x) <= sweep
	}
	return ccw(c, x) <= 2*math.Pi-sweep
}
