package autoaim

import (
	"log"
)

// DetectorConfig bundles every threshold the S2 pipeline stage needs.
type DetectorConfig struct {
	EnemyColor EnemyColor
	LightBar   LightBarConfig
	Armor      ArmorConfig
	Classifier ClassifierConfig

	// Ignore lists classes to drop even when the classifier is confident,
	// e.g. to keep a sentry from wasting shots on the Base plate.
	Ignore []Labels
}

// DefaultDetectorConfig returns the detector's default thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		EnemyColor: ColorRed,
		LightBar:   DefaultLightBarConfig(),
		Armor:      DefaultArmorConfig(),
		Classifier: DefaultClassifierConfig(),
	}
}

// Detector implements S2: lightbar extraction, armor pairing, and digit
// classification.
type Detector struct {
	enemyColor     EnemyColor
	lightBarConfig LightBarConfig
	armorConfig    ArmorConfig
	classifier     *Classifier
	ignore         map[Labels]bool

	logger *log.Logger
}

// NewDetector loads the digit classifier and returns a ready detector.
func NewDetector(cfg DetectorConfig, logger *log.Logger) (*Detector, error) {
	classifier, err := NewClassifier(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	ignore := make(map[Labels]bool, len(cfg.Ignore))
	for _, label := range cfg.Ignore {
		ignore[label] = true
	}
	return &Detector{
		enemyColor:     cfg.EnemyColor,
		lightBarConfig: cfg.LightBar,
		armorConfig:    cfg.Armor,
		classifier:     classifier,
		ignore:         ignore,
		logger:         logger,
	}, nil
}

// Close releases the detector's ONNX session.
func (d *Detector) Close() {
	if d.classifier != nil {
		d.classifier.Close()
	}
}

// Detect runs the full S2 pipeline over one annotated frame: lightbar
// extraction, pairing into candidate armors, digit classification, and a
// shoot-decision bitmask filter. Detections with a label the current
// ShootDecision forbids are dropped.
func (d *Detector) Detect(frame AnnotatedFrame) []Detection2D {
	bars := d.DetectLightBars(frame.Image)
	candidates := d.MatchLightBars(bars)

	results := make([]Detection2D, 0, len(candidates))
	for _, armor := range candidates {
		label, confidence, ok := d.classifier.Classify(frame.Image, armor.Vertices)
		if !ok {
			continue
		}
		if d.ignore[label] {
			continue
		}
		if !frame.IMU.ShootDecision.Allows(label) {
			continue
		}

		armor.Label = label
		armor.Confidence = confidence
		armor.IMUAtCapture = frame.IMU
		armor.CaptureTime = frame.CaptureTime
		results = append(results, armor)
	}

	if len(results) > 0 {
		d.logger.Printf("detect: %d lightbars, %d candidates, %d accepted", len(bars), len(candidates), len(results))
	}
	return results
}
