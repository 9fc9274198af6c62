package render

import (
	"fmt"
	"github.com/swdee/go-posture"
	"gocv.io/x/gocv"
	"image"
	"image/color"
)

// label is a line of status text with a filled background
type label struct {
	text string
	clr  color.RGBA
}

// PostureStatus renders the debug view of the posture pipeline.  The
// baseline is drawn as a white line with gray lines at the threshold either
// side.  The current landmark line is red when over the threshold, yellow
// when below the baseline and green otherwise.  Status text is placed in the
// top corner per the font alignment
func PostureStatus(img *gocv.Mat, out posture.Outcome, cfg posture.Config,
	font Font, lineThickness int) {

	m := NewMapping(*img, cfg.FrameWidth, cfg.FrameHeight)
	labels := make([]label, 0, 2)

	switch out.State {
	case posture.Calibrating:
		labels = append(labels, label{text: "Calibrating, sit upright", clr: Yellow})
	case posture.Bad:
		labels = append(labels, label{text: "BAD POSTURE", clr: Red})
	default:
		labels = append(labels, label{text: "Good Posture", clr: Green})
	}

	if out.Baseline != nil {
		base := out.Baseline.MeanY()

		hline(img, m.Y(base), White, lineThickness)
		hline(img, m.Y(base+cfg.DeviationThreshold), Gray, 1)
		hline(img, m.Y(base-cfg.DeviationThreshold), Gray, 1)

		if out.Sample.Valid {
			delta := out.Sample.Value
			hline(img, m.Y(base+delta), deviationColor(delta, cfg.DeviationThreshold),
				lineThickness)

			labels = append(labels, label{
				text: fmt.Sprintf("Delta: %.1fpx", delta),
				clr:  Black,
			})

		} else if !out.Skipped {
			labels = append(labels, label{text: "No landmarks", clr: Black})
		}
	}

	drawLabels(img, labels, font)
}

// deviationColor returns the color coding of the current landmark line
func deviationColor(delta, threshold float64) color.RGBA {
	switch {
	case delta > threshold:
		return Red
	case delta > 0:
		return Yellow
	default:
		return Green
	}
}

// hline draws a horizontal line across the full image width
func hline(img *gocv.Mat, y int, clr color.RGBA, thickness int) {

	if y < 0 || y >= img.Rows() {
		return
	}

	gocv.Line(img, image.Pt(0, y), image.Pt(img.Cols(), y), clr, thickness)
}

// drawLabels renders each label on its own row with a background box
func drawLabels(img *gocv.Mat, labels []label, font Font) {

	top := 0

	for _, l := range labels {
		textSize := gocv.GetTextSize(l.text, font.Face, font.Scale, font.Thickness)
		boxW := textSize.X + font.LeftPad + font.RightPad
		boxH := textSize.Y + font.TopPad + font.BottomPad

		var left int

		switch font.Alignment {
		case Center:
			left = (img.Cols() - boxW) / 2
		case Right:
			left = img.Cols() - boxW
		case Left:
			fallthrough
		default:
			left = 0
		}

		// draw box text gets written on
		gocv.Rectangle(img, image.Rect(left, top, left+boxW, top+boxH), l.clr, -1)

		textClr := font.Color

		if l.clr == White || l.clr == Yellow || l.clr == Green {
			textClr = Black
		}

		gocv.PutTextWithParams(img, l.text,
			image.Pt(left+font.LeftPad, top+boxH-font.BottomPad),
			font.Face, font.Scale, textClr, font.Thickness, font.LineType, false)

		top += boxH
	}
}

// Overlay tints the image with the color at the given alpha (0-255), used to
// fade the bad posture reminder in and out
func Overlay(img *gocv.Mat, clr color.RGBA, alpha uint8) {

	if alpha == 0 || img.Empty() {
		return
	}

	c := bgr(clr)
	layer := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(c[0], c[1], c[2], 255),
		img.Rows(), img.Cols(), img.Type())
	defer layer.Close()

	a := float64(alpha) / 255
	gocv.AddWeighted(*img, 1-a, layer, a, 0, img)
}
