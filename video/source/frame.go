package source

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

var annotateColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// DiffParams holds the tunables of frame comparison. The order of the
// comparison chain (difference, threshold, dilation, contour extraction,
// area filter) is fixed; only these values vary.
type DiffParams struct {
	// ThresholdLevel is the pixel delta above which a pixel counts as
	// changed.
	ThresholdLevel float32

	// ThresholdMax is the value changed pixels are set to, 255 for an 8-bit
	// binary mask.
	ThresholdMax float32

	// DilateIterations controls how aggressively adjacent changed regions
	// are merged before contour extraction.
	DilateIterations int

	// MinContourArea is the minimum pixel area of a contour for it to count
	// as motion. Smaller contours are sensor noise or lighting flicker.
	MinContourArea float64
}

func DefaultDiffParams() DiffParams {
	return DiffParams{
		ThresholdLevel:   30,
		ThresholdMax:     255,
		DilateIterations: 2,
		MinContourArea:   2500,
	}
}

// Frame is a single image from the camera. A Frame is never mutated after
// creation; every transform returns a new Frame. Frames own native matrix
// memory and must be Closed once no longer referenced.
type Frame struct {
	Mat  gocv.Mat
	Time time.Time
}

func NewFrame(mat gocv.Mat) Frame {
	return Frame{Mat: mat, Time: time.Now()}
}

func (f Frame) Width() int {
	return f.Mat.Cols()
}

func (f Frame) Height() int {
	return f.Mat.Rows()
}

func (f Frame) Empty() bool {
	return f.Mat.Empty()
}

// Clone returns a deep copy of the frame with the same capture time.
func (f Frame) Clone() Frame {
	return Frame{Mat: f.Mat.Clone(), Time: f.Time}
}

// Close releases the frame's matrix memory.
func (f Frame) Close() {
	f.Mat.Close()
}

// Resize scales the frame to the given width, preserving aspect ratio.
func (f Frame) Resize(width int) Frame {
	height := f.Height() * width / f.Width()
	dst := gocv.NewMat()
	gocv.Resize(f.Mat, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationArea)
	return Frame{Mat: dst, Time: f.Time}
}

// Gray converts the frame to grayscale.
func (f Frame) Gray() Frame {
	dst := gocv.NewMat()
	gocv.CvtColor(f.Mat, &dst, gocv.ColorBGRToGray)
	return Frame{Mat: dst, Time: f.Time}
}

// Blur applies a fixed-kernel Gaussian blur to suppress sensor noise.
func (f Frame) Blur() Frame {
	dst := gocv.NewMat()
	gocv.GaussianBlur(f.Mat, &dst, image.Pt(21, 21), 0, 0, gocv.BorderDefault)
	return Frame{Mat: dst, Time: f.Time}
}

// Delta returns the absolute pixel-wise difference between the two frames.
// Both frames must have identical dimensions; a mismatch is an invariant
// violation, not a recoverable condition.
func (f Frame) Delta(other Frame) Frame {
	if f.Width() != other.Width() || f.Height() != other.Height() {
		panic(fmt.Sprintf("frame dimension mismatch: %dx%d vs %dx%d",
			f.Width(), f.Height(), other.Width(), other.Height()))
	}
	dst := gocv.NewMat()
	gocv.AbsDiff(f.Mat, other.Mat, &dst)
	return Frame{Mat: dst, Time: f.Time}
}

// Threshold computes the binary-thresholded difference against another
// frame. Pixels whose delta exceeds level are set to max.
func (f Frame) Threshold(other Frame, level, max float32) Frame {
	delta := f.Delta(other)
	defer delta.Close()

	dst := gocv.NewMat()
	gocv.Threshold(delta.Mat, &dst, level, max, gocv.ThresholdBinary)
	return Frame{Mat: dst, Time: f.Time}
}

// Dilate thresholds the difference against another frame, then dilates the
// mask to merge adjacent motion fragments.
func (f Frame) Dilate(other Frame, level, max float32, iterations int) Frame {
	thresh := f.Threshold(other, level, max)
	defer thresh.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	dst := thresh.Clone()
	for i := 0; i < iterations; i++ {
		gocv.Dilate(dst.Mat, &dst.Mat, kernel)
	}
	return dst
}

// Contours runs the full comparison chain against another frame and
// returns the bounding boxes of the outer contours whose area meets
// p.MinContourArea, in extraction order.
func (f Frame) Contours(other Frame, p DiffParams) []image.Rectangle {
	dilated := f.Dilate(other, p.ThresholdLevel, p.ThresholdMax, p.DilateIterations)
	defer dilated.Close()

	found := gocv.FindContours(dilated.Mat, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer found.Close()

	var rects []image.Rectangle
	for i := 0; i < found.Size(); i++ {
		c := found.At(i)
		if gocv.ContourArea(c) < p.MinContourArea {
			continue
		}
		rects = append(rects, gocv.BoundingRect(c))
	}
	return rects
}

// IsSimilar reports whether no qualifying contour separates the two
// frames, i.e. the scene has not meaningfully changed.
func (f Frame) IsSimilar(other Frame, p DiffParams) bool {
	return len(f.Contours(other, p)) == 0
}

// WriteAnnotated saves the frame to a file, overlaying the given text
// lines in the top-left corner. The receiver is not modified.
func (f Frame) WriteAnnotated(path string, lines []string) error {
	annotated := f.Clone()
	defer annotated.Close()

	for i, line := range lines {
		gocv.PutText(&annotated.Mat, line, image.Pt(10, 10+10*(i+1)),
			gocv.FontHersheySimplex, 0.5, annotateColor, 1)
	}

	if ok := gocv.IMWrite(path, annotated.Mat); !ok {
		return fmt.Errorf("failed to write image to %v", path)
	}
	return nil
}
