package ui

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/detector"
	"github.com/dudu/eyegaze/internal/eye"
	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
	"github.com/dudu/eyegaze/internal/pipeline"
)

var (
	colorFace    = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorCorner  = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	colorEyelid  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	colorIris    = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	colorEyeball = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorGaze    = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorText    = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// AnnotateOptions controls what Annotate draws
type AnnotateOptions struct {
	ArrowLength float64 // gaze arrow length in pixels
	PanelScale  int     // eye panel magnification
	Face        bool    // face box and eye corners
	Panels      bool    // canonical eye crops in the top corners
	FaceWidthCM float64 // real face width for the distance readout, 0 disables it
	FocalLength float64 // camera focal length in pixels
}

// DefaultAnnotateOptions returns the preview defaults
func DefaultAnnotateOptions() AnnotateOptions {
	return AnnotateOptions{
		ArrowLength: 100,
		PanelScale:  2,
		Face:        true,
		Panels:      true,
	}
}

// Annotate draws a frame result onto frame
func Annotate(frame *gocv.Mat, res *pipeline.FrameResult, opts AnnotateOptions) {
	if opts.Face {
		drawFace(frame, res.Face, res.FaceLandmarks)
		if d, ok := faceDistance(res.Face, opts); ok {
			gocv.PutText(frame, fmt.Sprintf("%.0f cm", d), res.Face.BoundingBox.Rect().Min.Add(image.Pt(0, -8)),
				gocv.FontHersheyPlain, 1.2, colorFace, 1)
		}
	}
	for i := range res.Eyes {
		drawEye(frame, &res.Eyes[i], opts.ArrowLength)
	}
	if opts.Panels {
		for i := range res.Eyes {
			drawPanel(frame, &res.Eyes[i], opts.PanelScale)
		}
	}
}

func drawFace(frame *gocv.Mat, face detector.Face, landmarks []geometry.Point) {
	gocv.Rectangle(frame, face.BoundingBox.Rect(), colorFace, 2)
	if len(landmarks) != eye.NumFaceLandmarks {
		return
	}
	for _, idx := range []int{eye.LeftOuterCorner, eye.LeftInnerCorner, eye.RightInnerCorner, eye.RightOuterCorner} {
		gocv.Circle(frame, landmarks[idx].Image(), 2, colorCorner, -1)
	}
}

// drawEye draws the landmark subsets whose gates passed, and the smoothed
// gaze when there is one.
func drawEye(frame *gocv.Mat, er *pipeline.EyeResult, arrowLength float64) {
	lm := er.Landmarks
	if er.Gates.Eyelid {
		drawPolyline(frame, lm.Eyelid, colorEyelid)
	}
	if er.Gates.Iris {
		drawPolyline(frame, lm.Iris, colorIris)
		gocv.Circle(frame, lm.IrisCenter.Image(), 2, colorIris, -1)
	}
	if er.Gaze == nil {
		return
	}
	gocv.Circle(frame, lm.EyeballCenter.Image(), 2, colorEyeball, -1)
	end := GazeArrowEnd(lm.IrisCenter, er.Gaze.Smoothed, arrowLength)
	gocv.ArrowedLine(frame, lm.IrisCenter.Image(), end.Image(), colorGaze, 2)
}

func drawPolyline(frame *gocv.Mat, pts []geometry.Point, c color.RGBA) {
	if len(pts) < 2 {
		return
	}
	poly := make([]image.Point, len(pts))
	for i, p := range pts {
		poly[i] = p.Image()
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{poly})
	defer pv.Close()
	gocv.Polylines(frame, pv, true, c, 1)
}

// GazeArrowEnd projects gaze angles from origin onto the image plane. Up
// and to the image right are positive pitch and negative yaw.
func GazeArrowEnd(origin geometry.Point, a gaze.Angles, length float64) geometry.Point {
	return geometry.Pt(
		origin.X-length*math.Sin(a.Yaw),
		origin.Y-length*math.Sin(a.Pitch),
	)
}

// PanelRect places an eye panel in the top corner matching the eye's image
// side, below the FPS line.
func PanelRect(frameWidth int, side eye.Side, size geometry.Size, scale int) image.Rectangle {
	const margin, top = 10, 40
	w, h := size.W*scale, size.H*scale
	x := margin
	if side == eye.SideRight {
		x = frameWidth - margin - w
	}
	return image.Rect(x, top, x+w, top+h)
}

// drawPanel shows the canonical crop un-mirrored, with its gaze readout
func drawPanel(frame *gocv.Mat, er *pipeline.EyeResult, scale int) {
	if er.Image.Empty() || scale < 1 {
		return
	}
	size := geometry.Size{W: er.Image.Cols(), H: er.Image.Rows()}
	r := PanelRect(frame.Cols(), er.Side, size, scale)
	if !r.In(image.Rect(0, 0, frame.Cols(), frame.Rows())) {
		return
	}

	panel := gocv.NewMat()
	defer panel.Close()
	if er.Side.Mirrored() {
		gocv.Flip(er.Image, &panel, 1)
	} else {
		er.Image.CopyTo(&panel)
	}
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(panel, &resized, r.Size(), 0, 0, gocv.InterpolationLinear)

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(resized, &bgr, gocv.ColorGrayToBGR)

	roi := frame.Region(r)
	bgr.CopyTo(&roi)
	roi.Close()

	label := string(er.Side)
	if er.Gaze != nil {
		s := er.Gaze.Smoothed
		label = fmt.Sprintf("%s p:%+.1f y:%+.1f", er.Side, degrees(s.Pitch), degrees(s.Yaw))
	}
	gocv.PutText(frame, label, image.Pt(r.Min.X, r.Max.Y+14), gocv.FontHersheyPlain, 1, colorText, 1)
}

func faceDistance(face detector.Face, opts AnnotateOptions) (float64, bool) {
	if opts.FaceWidthCM <= 0 || opts.FocalLength <= 0 {
		return 0, false
	}
	d, err := geometry.DistanceToCamera(opts.FaceWidthCM, opts.FocalLength, face.BoundingBox.Width())
	return d, err == nil
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
