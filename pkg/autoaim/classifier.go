package autoaim

import (
	"fmt"
	"image"
	"math"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"
)

// digitClasses is the model's output width: one score per Labels value
// 1..8 (LabelNone is never produced by the classifier).
const digitClasses = 8

// ClassifierConfig configures the ONNX digit classifier.
type ClassifierConfig struct {
	ModelPath           string
	SharedLibraryPath   string // optional override for the onnxruntime shared library
	ConfidenceThreshold float64
	IntraOpThreads      int
}

// DefaultClassifierConfig returns the default classifier settings.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		ModelPath:           "model.onnx",
		ConfidenceThreshold: 0.5,
		IntraOpThreads:      0,
	}
}

// Classifier runs the 64x64 grayscale digit classifier over an armor's
// perspective-unwarped number region through a pre-loaded ONNX session
// with fixed input/output tensors reused across calls.
type Classifier struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]

	confidenceThreshold float64
}

// NewClassifier loads the ONNX model at cfg.ModelPath and prepares the
// fixed 1x1x64x64 input / 1x8 output tensors the session reuses across
// calls.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if !ort.IsInitialized() {
		if cfg.SharedLibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.SharedLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("classifier: initialize onnxruntime: %w", err)
		}
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("classifier: create session options: %w", err)
	}
	defer opts.Destroy()
	if cfg.IntraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("classifier: set intra_op_threads: %w", err)
		}
	}

	inputShape := ort.NewShape(1, 1, 64, 64)
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("classifier: create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, digitClasses)
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("classifier: create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		opts,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("classifier: load model %q: %w", cfg.ModelPath, err)
	}

	return &Classifier{
		session:             session,
		input:               input,
		output:              output,
		confidenceThreshold: cfg.ConfidenceThreshold,
	}, nil
}

// Close releases the ONNX session and its tensors.
func (c *Classifier) Close() {
	if c.session != nil {
		c.session.Destroy()
	}
	if c.input != nil {
		c.input.Destroy()
	}
	if c.output != nil {
		c.output.Destroy()
	}
}

// extractROI unwarps the armor's digit region into a 64x64 patch: extends
// each lightbar edge outward by a third of its length, insets horizontally
// by 30% of the region width, then perspective-warps to 64x64.
func extractROI(frame gocv.Mat, vertices [4]gocv.Point2f) gocv.Mat {
	tl, tr, br, bl := vertices[0], vertices[1], vertices[2], vertices[3]

	vecLeft := sub2f(bl, tl)
	lenLeft := norm2f(vecLeft)
	if lenLeft > 0 {
		vecLeft = scale2f(vecLeft, 1/lenLeft)
	}
	topLeft := addScaled2f(tl, vecLeft, -lenLeft/3)
	bottomLeft := addScaled2f(bl, vecLeft, lenLeft/3)

	vecRight := sub2f(br, tr)
	lenRight := norm2f(vecRight)
	if lenRight > 0 {
		vecRight = scale2f(vecRight, 1/lenRight)
	}
	topRight := addScaled2f(tr, vecRight, -lenRight/3)
	bottomRight := addScaled2f(br, vecRight, lenRight/3)

	horizontalLen := (norm2f(sub2f(topRight, topLeft)) + norm2f(sub2f(bottomRight, bottomLeft))) / 2
	inset := float32(horizontalLen * 0.3)
	topLeft.X += inset
	topRight.X -= inset
	bottomLeft.X += inset
	bottomRight.X -= inset

	maxX, maxY := float32(frame.Cols()-1), float32(frame.Rows()-1)
	clamp := func(p *gocv.Point2f) {
		p.X = clampF32(p.X, 1, maxX)
		p.Y = clampF32(p.Y, 1, maxY)
	}
	clamp(&topLeft)
	clamp(&topRight)
	clamp(&bottomLeft)
	clamp(&bottomRight)

	src := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{topLeft, topRight, bottomRight, bottomLeft})
	defer src.Close()
	dst := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0}, {X: 64, Y: 0}, {X: 64, Y: 64}, {X: 0, Y: 64},
	})
	defer dst.Close()

	warpMatrix := gocv.GetPerspectiveTransform2f(src, dst)
	defer warpMatrix.Close()

	warped := gocv.NewMat()
	gocv.WarpPerspective(frame, &warped, warpMatrix, image.Pt(64, 64))
	return warped
}

// Classify unwarps the armor's digit region, runs ONNX inference, and
// returns the predicted label and its softmax confidence. Returns
// LabelNone and ok=false when confidence is below threshold.
func (c *Classifier) Classify(frame gocv.Mat, vertices [4]gocv.Point2f) (Labels, float32, bool) {
	roi := extractROI(frame, vertices)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Pt(64, 64), 0, 0, gocv.InterpolationLinear)

	data := c.input.GetData()
	for i := 0; i < 64*64; i++ {
		row, col := i/64, i%64
		data[i] = float32(resized.GetUCharAt(row, col)) / 255.0
	}

	if err := c.session.Run(); err != nil {
		return LabelNone, 0, false
	}

	out := c.output.GetData()
	probs := softmax(out)

	bestIdx, bestProb := 0, probs[0]
	for i := 1; i < len(probs); i++ {
		if probs[i] > bestProb {
			bestIdx, bestProb = i, probs[i]
		}
	}

	if float64(bestProb) < c.confidenceThreshold {
		return LabelNone, bestProb, false
	}
	return Labels(bestIdx + 1), bestProb, true
}

func softmax(src []float32) []float32 {
	maxVal := src[0]
	for _, v := range src[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	out := make([]float32, len(src))
	var sum float32
	for i, v := range src {
		e := float32(math.Exp(float64(v - maxVal)))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func sub2f(a, b gocv.Point2f) gocv.Point2f  { return gocv.Point2f{X: a.X - b.X, Y: a.Y - b.Y} }
func norm2f(a gocv.Point2f) float64         { return math.Hypot(float64(a.X), float64(a.Y)) }
func scale2f(a gocv.Point2f, s float64) gocv.Point2f {
	return gocv.Point2f{X: a.X * float32(s), Y: a.Y * float32(s)}
}
func addScaled2f(a, dir gocv.Point2f, s float64) gocv.Point2f {
	return gocv.Point2f{X: a.X + dir.X*float32(s), Y: a.Y + dir.Y*float32(s)}
}
func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
