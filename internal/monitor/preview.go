package monitor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/dj-oyu/pb-receiver/internal/channels"
	"github.com/dj-oyu/pb-receiver/pkg/types"
)

var (
	previewBackground = color.RGBA{R: 18, G: 18, B: 24, A: 255}
	previewText       = color.RGBA{R: 230, G: 230, B: 230, A: 255}
	previewWarning    = color.RGBA{R: 255, G: 190, B: 60, A: 255}

	bodyPalette = []color.RGBA{
		{R: 80, G: 200, B: 120, A: 255},
		{R: 90, G: 160, B: 255, A: 255},
		{R: 255, G: 110, B: 110, A: 255},
		{R: 240, G: 200, B: 70, A: 255},
		{R: 200, G: 120, B: 255, A: 255},
		{R: 80, G: 220, B: 220, A: 255},
	}
)

var bones = [][2]int{
	{types.JointHead, types.JointNeck},
	{types.JointNeck, types.JointLeftShoulder},
	{types.JointNeck, types.JointRightShoulder},
	{types.JointLeftShoulder, types.JointLeftElbow},
	{types.JointLeftElbow, types.JointLeftHand},
	{types.JointRightShoulder, types.JointRightElbow},
	{types.JointRightElbow, types.JointRightHand},
	{types.JointNeck, types.JointTorso},
	{types.JointTorso, types.JointLeftHip},
	{types.JointTorso, types.JointRightHip},
	{types.JointLeftHip, types.JointLeftKnee},
	{types.JointLeftKnee, types.JointLeftFoot},
	{types.JointRightHip, types.JointRightKnee},
	{types.JointRightKnee, types.JointRightFoot},
}

var jointSlots = func() map[string]int {
	m := make(map[string]int, channels.JointsPerBody)
	for slot := range channels.JointsPerBody {
		m[channels.JointName(slot)] = slot
	}
	return m
}()

type previewPoint struct {
	x, y float32
	ok   bool
}

// previewBody is one body recovered from a frame's position channels.
type previewBody struct {
	label  string
	joints [channels.JointsPerBody]previewPoint
}

// bodiesFromFrame pulls the front-view (x, y) position of every confident joint out of
// the frame. Joints whose position channels are all zero were gated and are skipped.
func bodiesFromFrame(frame *types.ChannelFrame) []*previewBody {
	byLabel := make(map[string]*previewBody)
	n := len(frame.Names)
	for i := 0; i+2 < n; i++ {
		label, joint, sub, ok := splitChannelName(frame.Names[i])
		if !ok || sub != "tx" {
			continue
		}
		slot, known := jointSlots[joint]
		if !known {
			continue
		}
		x, y, z := frame.Values[i], frame.Values[i+1], frame.Values[i+2]

		b := byLabel[label]
		if b == nil {
			b = &previewBody{label: label}
			byLabel[label] = b
		}
		if x == 0 && y == 0 && z == 0 {
			continue
		}
		b.joints[slot] = previewPoint{x: x, y: y, ok: true}
	}

	out := make([]*previewBody, 0, len(byLabel))
	for _, b := range byLabel {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].label < out[j].label })
	return out
}

// splitChannelName splits "body3/leftHand:tx" into its parts.
func splitChannelName(name string) (label, joint, sub string, ok bool) {
	label, rest, ok := strings.Cut(name, "/")
	if !ok {
		return "", "", "", false
	}
	joint, sub, ok = strings.Cut(rest, ":")
	return label, joint, sub, ok
}

// RenderPreview draws the bodies of a frame seen from the front. warning, if set, is
// printed in place of the frame summary.
func RenderPreview(frame *types.ChannelFrame, width, height int, warning string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(previewBackground), image.Point{}, draw.Src)

	var bodies []*previewBody
	header := "no frame cooked yet"
	if frame != nil {
		bodies = bodiesFromFrame(frame)
		header = fmt.Sprintf("frame %d  bodies %d  channels %d", frame.Seq, frame.Bodies, frame.NumChannels())
	}
	if warning != "" {
		drawText(img, 8, 16, warning, previewWarning)
	} else {
		drawText(img, 8, 16, header, previewText)
	}

	project := fitProjection(bodies, width, height)
	z := vector.NewRasterizer(1, 1)

	for i, b := range bodies {
		col := image.NewUniform(bodyPalette[i%len(bodyPalette)])

		for _, bone := range bones {
			a, c := b.joints[bone[0]], b.joints[bone[1]]
			if !a.ok || !c.ok {
				continue
			}
			ax, ay := project(a)
			cx, cy := project(c)
			paint(img, z, col, min(ax, cx)-2, min(ay, cy)-2, max(ax, cx)+2, max(ay, cy)+2,
				func(z *vector.Rasterizer, ox, oy float32) {
					strokeLine(z, ax-ox, ay-oy, cx-ox, cy-oy, 2)
				})
		}

		var top previewPoint
		for _, p := range b.joints {
			if !p.ok {
				continue
			}
			px, py := project(p)
			paint(img, z, col, px-4, py-4, px+4, py+4,
				func(z *vector.Rasterizer, ox, oy float32) {
					fillCircle(z, px-ox, py-oy, 4)
				})
			if !top.ok || p.y > top.y {
				top = p
			}
		}
		if top.ok {
			tx, ty := project(top)
			drawText(img, int(tx)+6, int(ty)-6, b.label, bodyPalette[i%len(bodyPalette)])
		}
	}
	return img
}

// fitProjection maps world (x, y) into the image with y up, keeping the aspect ratio.
func fitProjection(bodies []*previewBody, width, height int) func(previewPoint) (float32, float32) {
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := -minX, -minY
	for _, b := range bodies {
		for _, p := range b.joints {
			if !p.ok {
				continue
			}
			minX, maxX = min(minX, p.x), max(maxX, p.x)
			minY, maxY = min(minY, p.y), max(maxY, p.y)
		}
	}
	if minX > maxX {
		minX, maxX, minY, maxY = -1, 1, -1, 1
	}

	const margin = 32
	spanX := max(maxX-minX, 0.5)
	spanY := max(maxY-minY, 0.5)
	scale := min(float32(width-2*margin)/spanX, float32(height-2*margin)/spanY)
	midX, midY := (minX+maxX)/2, (minY+maxY)/2

	return func(p previewPoint) (float32, float32) {
		return float32(width)/2 + (p.x-midX)*scale,
			float32(height)/2 - (p.y-midY)*scale
	}
}

// paint rasterizes one shape into the pixels covering [x0, x1] x [y0, y1] only. shape
// receives the offset of that rectangle and must draw relative to it.
func paint(img *image.RGBA, z *vector.Rasterizer, src image.Image, x0, y0, x1, y1 float32, shape func(z *vector.Rasterizer, ox, oy float32)) {
	r := image.Rect(
		int(math.Floor(float64(x0)))-1, int(math.Floor(float64(y0)))-1,
		int(math.Ceil(float64(x1)))+1, int(math.Ceil(float64(y1)))+1,
	).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	z.Reset(r.Dx(), r.Dy())
	shape(z, float32(r.Min.X), float32(r.Min.Y))
	z.Draw(img, r, src, r.Min)
}

func strokeLine(z *vector.Rasterizer, x0, y0, x1, y1, half float32) {
	dx, dy := x1-x0, y1-y0
	length := float32(math.Hypot(float64(dx), float64(dy)))
	if length == 0 {
		return
	}
	nx, ny := -dy/length*half, dx/length*half
	z.MoveTo(x0+nx, y0+ny)
	z.LineTo(x1+nx, y1+ny)
	z.LineTo(x1-nx, y1-ny)
	z.LineTo(x0-nx, y0-ny)
	z.ClosePath()
}

func fillCircle(z *vector.Rasterizer, cx, cy, r float32) {
	const segments = 16
	for i := range segments {
		a := 2 * math.Pi * float64(i) / segments
		x := cx + r*float32(math.Cos(a))
		y := cy + r*float32(math.Sin(a))
		if i == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}

func drawText(img *image.RGBA, x, y int, text string, col color.Color) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
