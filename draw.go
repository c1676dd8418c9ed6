package main

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"unicode/utf8"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// defaultFace is a fixed 7x13 bitmap font; 18 columns fit a 128 px panel.
var defaultFace font.Face = basicfont.Face7x13

//---------------- Drawing Functions ----------------

// drawText draws a string onto img with its top edge at posY.
func drawText(img draw.Image, text string, posX, posY int, face font.Face, clr color.Color) (finishX int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
	}
	d.Dot = fixed.P(posX, posY+face.Metrics().Ascent.Round())
	d.DrawString(text)
	return d.Dot.X.Ceil()
}

func clearFrame(frame draw.Image) {
	draw.Draw(frame, frame.Bounds(), image.Black, image.Point{}, draw.Src)
}

func textFits(face font.Face, s string, maxWidth int) bool {
	return font.MeasureString(face, s).Ceil() <= maxWidth
}

// wrapLine breaks line into rows no wider than maxWidth pixels, on spaces
// where possible and mid-word when a single word is too long.
func wrapLine(face font.Face, line string, maxWidth int) []string {
	if textFits(face, line, maxWidth) {
		return []string{line}
	}
	trimmed := strings.TrimRight(line, " ")
	if textFits(face, trimmed, maxWidth) {
		return []string{trimmed}
	}

	var rows []string
	current := ""
	for _, word := range strings.Fields(trimmed) {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if textFits(face, candidate, maxWidth) {
			current = candidate
			continue
		}
		if current != "" {
			rows = append(rows, current)
		}
		for !textFits(face, word, maxWidth) {
			n := fittingPrefix(face, word, maxWidth)
			rows = append(rows, word[:n])
			word = word[n:]
		}
		current = word
	}
	if current != "" || len(rows) == 0 {
		rows = append(rows, current)
	}
	return rows
}

// fittingPrefix returns the byte length of the longest prefix of s that fits,
// never less than one rune.
func fittingPrefix(face font.Face, s string, maxWidth int) int {
	_, first := utf8.DecodeRuneInString(s)
	n := first
	for n < len(s) {
		_, size := utf8.DecodeRuneInString(s[n:])
		if !textFits(face, s[:n+size], maxWidth) {
			break
		}
		n += size
	}
	return n
}

// layoutText splits text on newlines and, when wrap is set, wraps each line
// to maxWidth. With maxRows > 0 a line only wraps into rows the lines after
// it do not need, so every line keeps at least one visible row.
func layoutText(face font.Face, text string, maxWidth, maxRows int, wrap bool) []string {
	lines := strings.Split(text, "\n")
	if !wrap {
		return lines
	}
	var rows []string
	for i, line := range lines {
		wrapped := wrapLine(face, line, maxWidth)
		if maxRows > 0 {
			budget := maxRows - len(rows) - (len(lines) - 1 - i)
			if budget < 1 {
				budget = 1
			}
			if len(wrapped) > budget {
				wrapped = wrapped[:budget]
			}
		}
		rows = append(rows, wrapped...)
	}
	return rows
}

// visibleRows is how many rows of face fit in height at lineHeight pitch.
func visibleRows(face font.Face, height, lineHeight int) int {
	glyph := face.Metrics().Height.Ceil()
	if height < glyph || lineHeight < 1 {
		return 1
	}
	return (height-glyph)/lineHeight + 1
}

// renderText redraws frame with text starting at cursor. Rows are lineHeight
// pixels apart before scaling; rows past the bottom edge are clipped.
func renderText(frame draw.Image, face font.Face, scale int, cursor image.Point, lineHeight int, text string, wrap bool) {
	if scale < 1 {
		scale = 1
	}
	clearFrame(frame)

	area := image.Rectangle{Min: frame.Bounds().Min.Add(cursor), Max: frame.Bounds().Max}
	if area.Empty() {
		return
	}
	canvas := image.NewGray(image.Rect(0, 0, area.Dx()/scale, area.Dy()/scale))
	if canvas.Bounds().Empty() {
		return
	}

	maxRows := visibleRows(face, canvas.Bounds().Dy(), lineHeight)
	rows := layoutText(face, text, canvas.Bounds().Dx(), maxRows, wrap)
	for i, row := range rows {
		y := i * lineHeight
		if y >= canvas.Bounds().Dy() {
			break
		}
		drawText(canvas, row, 0, y, face, color.White)
	}

	dst := image.Rect(area.Min.X, area.Min.Y, area.Min.X+canvas.Bounds().Dx()*scale, area.Min.Y+canvas.Bounds().Dy()*scale)
	xdraw.NearestNeighbor.Scale(frame, dst, canvas, canvas.Bounds(), xdraw.Src, nil)
}

// toGray copies any frame into a fresh grayscale image.
func toGray(frame image.Image) *image.Gray {
	b := frame.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	return out
}
