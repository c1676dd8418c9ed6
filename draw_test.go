package main

import (
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// litBounds returns the smallest rectangle covering every non-black pixel.
func litBounds(img image.Image) image.Rectangle {
	b := img.Bounds()
	var out image.Rectangle
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r|g|bl == 0 {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if out.Empty() {
				out = px
			} else {
				out = out.Union(px)
			}
		}
	}
	return out
}

func TestWrapLine(t *testing.T) {
	// 18 columns of the 7 px font
	width := 127

	assert.Equal(t, []string{"THUIS:07"}, wrapLine(defaultFace, "THUIS:07", width))
	assert.Equal(t, []string{"Tijd:05:03 / Per:2"}, wrapLine(defaultFace, "Tijd:05:03 / Per:2   ", width))
	assert.Equal(t, []string{"Tijd:105:03 /", "Per:12"}, wrapLine(defaultFace, "Tijd:105:03 / Per:12   ", width))

	long := strings.Repeat("x", 25)
	assert.Equal(t, []string{strings.Repeat("x", 18), strings.Repeat("x", 7)}, wrapLine(defaultFace, long, width))

	assert.Equal(t, []string{""}, wrapLine(defaultFace, "", width))
}

func TestLayoutText(t *testing.T) {
	text := "IP:192.168.100.200\nTIJD:\nSCHOTKLOK:\nTHUIS:\nUIT:"

	assert.Len(t, layoutText(defaultFace, text, 127, 5, false), 5)
	assert.Len(t, layoutText(defaultFace, text, 127, 5, true), 5)
	assert.Len(t, layoutText(defaultFace, "IP:192.168.100.200 extra", 127, 5, true), 2)
	assert.Len(t, layoutText(defaultFace, "IP:192.168.100.200 extra", 127, 0, true), 2)
}

func TestLayoutTextKeepsEveryLineOnPanel(t *testing.T) {
	text := "IP:192.168.1.20\nTijd:10:59 / Per:10   \nSchotklok:24\nTHUIS:07\nUIT:12"

	rows := layoutText(defaultFace, text, 127, 5, true)
	assert.Equal(t, []string{"IP:192.168.1.20", "Tijd:10:59 /", "Schotklok:24", "THUIS:07", "UIT:12"}, rows)

	// room to spare: the clock line wraps in full
	rows = layoutText(defaultFace, text, 127, 6, true)
	assert.Equal(t, []string{"IP:192.168.1.20", "Tijd:10:59 /", "Per:10", "Schotklok:24", "THUIS:07", "UIT:12"}, rows)
}

func TestVisibleRows(t *testing.T) {
	assert.Equal(t, 5, visibleRows(defaultFace, 63, DEFAULT_LINE_HEIGHT))
	assert.Equal(t, 5, visibleRows(defaultFace, 64, DEFAULT_LINE_HEIGHT))
	assert.Equal(t, 2, visibleRows(defaultFace, 31, DEFAULT_LINE_HEIGHT))
	assert.Equal(t, 1, visibleRows(defaultFace, 8, DEFAULT_LINE_HEIGHT))
}

func TestRenderTextLightsEveryRow(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 128, 64))
	text := "IP:10.0.0.2\nTijd:05:03 / Per:2   \nSchotklok:09\nTHUIS:07\nUIT:12"

	renderText(frame, defaultFace, 1, image.Pt(1, 1), DEFAULT_LINE_HEIGHT, text, true)

	for row := 0; row < 5; row++ {
		top := 1 + row*DEFAULT_LINE_HEIGHT
		band := frame.SubImage(image.Rect(0, top, 128, top+DEFAULT_LINE_HEIGHT))
		assert.False(t, litBounds(band).Empty(), "row %d has no lit pixels", row)
	}
	// nothing is drawn left of or above the cursor
	assert.True(t, litBounds(frame).Min.X >= 1)
	assert.True(t, litBounds(frame).Min.Y >= 1)
}

func TestRenderTextShowsGuestWhenClockWraps(t *testing.T) {
	wrapped := image.NewGray(image.Rect(0, 0, 128, 64))
	short := image.NewGray(image.Rect(0, 0, 128, 64))

	renderText(wrapped, defaultFace, 1, image.Pt(1, 1), DEFAULT_LINE_HEIGHT,
		"IP:192.168.1.20\nTijd:10:59 / Per:10   \nSchotklok:24\nTHUIS:07\nUIT:12", true)
	renderText(short, defaultFace, 1, image.Pt(1, 1), DEFAULT_LINE_HEIGHT,
		"IP:192.168.1.20\nTijd:10:59\nSchotklok:24\nTHUIS:07\nUIT:12", true)

	// the home and guest rows are identical to a render without wrapping
	rect := image.Rect(0, 1+3*DEFAULT_LINE_HEIGHT, 128, 64)
	assert.Equal(t, short.SubImage(rect).(*image.Gray).Pix, wrapped.SubImage(rect).(*image.Gray).Pix)
	guest := wrapped.SubImage(image.Rect(0, 1+4*DEFAULT_LINE_HEIGHT, 128, 64))
	assert.True(t, litBounds(guest).Dy() > 5, "guest row clipped: %v", litBounds(guest))
}

func TestRenderTextRedrawsWholeFrame(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 128, 64))
	renderText(frame, defaultFace, 1, image.Pt(1, 1), DEFAULT_LINE_HEIGHT, "WWWWWWWWWWWWWWWWWW\nWWWWWWWWWWWWWWWWWW", false)
	renderText(frame, defaultFace, 1, image.Pt(1, 1), DEFAULT_LINE_HEIGHT, "I", false)

	lit := litBounds(frame)
	assert.True(t, lit.Max.X < 10, "stale pixels left at %v", lit)
	assert.True(t, lit.Max.Y <= 1+DEFAULT_LINE_HEIGHT, "stale pixels left at %v", lit)
}

func TestRenderTextScale(t *testing.T) {
	one := image.NewGray(image.Rect(0, 0, 128, 64))
	two := image.NewGray(image.Rect(0, 0, 128, 64))

	renderText(one, defaultFace, 1, image.Pt(0, 0), DEFAULT_LINE_HEIGHT, "HELLO", false)
	renderText(two, defaultFace, 2, image.Pt(0, 0), DEFAULT_LINE_HEIGHT, "HELLO", false)

	w1, w2 := litBounds(one).Dx(), litBounds(two).Dx()
	assert.InDelta(t, 2*w1, w2, 1)
	h1, h2 := litBounds(one).Dy(), litBounds(two).Dy()
	assert.InDelta(t, 2*h1, h2, 1)
}

func TestRenderTextOnOneBitFrame(t *testing.T) {
	frame := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	renderText(frame, defaultFace, 1, image.Pt(1, 1), DEFAULT_LINE_HEIGHT, "THUIS:07", true)

	lit := litBounds(frame)
	assert.False(t, lit.Empty())
	assert.True(t, lit.Max.Y <= 1+DEFAULT_LINE_HEIGHT+2)

	clearFrame(frame)
	assert.True(t, litBounds(frame).Empty())
}
