// Package config provides TOML configuration loading for the turret
// perception/fire-control pipeline.
//
// The configuration file supports the following structure:
//
//	[camera]
//	device_id = 0
//	pixel_format = "BGR8"
//	width = 1280
//	height = 1024
//
//	[detector]
//	enemy_color = "red"
//
//	[tracking]
//	fit_samples = 5
//
//	[fire]
//	bullet_velocity = 15.0
//
//	[transform]
//	bullet_velocity = 15.0
//
//	[serial]
//	devices = ["/dev/ttyUSB0", "/dev/ttyUSB1"]
//	baud_rate = 460800
//
// Example usage:
//
//	cfg, err := config.Load("config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Camera device: %d\n", cfg.Camera.DeviceID)
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the complete configuration for the turret pipeline.
type Config struct {
	Camera    CameraConfig    `toml:"camera"`
	Detector  DetectorConfig  `toml:"detector"`
	Tracking  TrackingConfig  `toml:"tracking"`
	Fire      FireConfig      `toml:"fire"`
	Transform TransformConfig `toml:"transform"`
	Serial    SerialConfig    `toml:"serial"`
}

// CameraConfig is the [camera] TOML section.
type CameraConfig struct {
	DeviceID int `toml:"device_id"`

	PixelFormat string `toml:"pixel_format"` // BayerRG8, BayerGB8, BGR8
	ADCBitDepth int     `toml:"adc_bit_depth"`
	TriggerMode string  `toml:"trigger_mode"`

	ExposureAuto bool    `toml:"exposure_auto"`
	ExposureUs   float64 `toml:"exposure_us"`
	GainAuto     bool    `toml:"gain_auto"`
	Gain         float64 `toml:"gain"`
	GammaEnable  bool    `toml:"gamma_enable"`
	Gamma        float64 `toml:"gamma"`

	FrameRateEnable bool    `toml:"frame_rate_enable"`
	FrameRate       float64 `toml:"frame_rate"`

	Width    int `toml:"width"`
	Height   int `toml:"height"`
	OffsetX  int `toml:"offset_x"`
	OffsetY  int `toml:"offset_y"`
}

// DetectorConfig bundles the lightbar/armor/classifier thresholds.
type DetectorConfig struct {
	EnemyColor string `toml:"enemy_color"` // "red" or "blue"

	MinLightBarArea        float64 `toml:"min_lightbar_area"`
	MaxLightBarArea        float64 `toml:"max_lightbar_area"`
	MinLightBarSolidity    float64 `toml:"min_lightbar_solidity"`
	MinLightBarAspectRatio float64 `toml:"min_lightbar_aspect_ratio"`
	MaxLightBarAspectRatio float64 `toml:"max_lightbar_aspect_ratio"`
	MaxLightBarAngle       float64 `toml:"max_lightbar_angle"`
	BrightnessThreshold    float64 `toml:"brightness_threshold"`
	ColorThreshold         float64 `toml:"color_threshold"`

	BinaryThreshold           float64 `toml:"binary_threshold"`
	LightBarAreaRatio         float64 `toml:"lightbar_area_ratio"`
	MinArmorArea              float64 `toml:"min_armor_area"`
	MaxLightBarArmorAreaRatio float64 `toml:"max_lightbar_armor_area_ratio"`
	MaxRollAngle              float64 `toml:"max_roll_angle"`
	MaxHeightDiffRatio        float64 `toml:"max_height_diff_ratio"`
	MaxYDiffRatio             float64 `toml:"max_y_diff_ratio"`
	MinXDiffRatio             float64 `toml:"min_x_diff_ratio"`
	MinArmorAspectRatio       float64 `toml:"min_armor_aspect_ratio"`
	MaxArmorAspectRatio       float64 `toml:"max_armor_aspect_ratio"`
	MaxAngleDiff              float64 `toml:"max_angle_diff"`
	BigArmorRatio             float64 `toml:"big_armor_ratio"`

	ClassifierModelPath string   `toml:"classifier_model_path"`
	ClassifierThreshold float64  `toml:"classifier_threshold"`
	OnnxRuntimeLib      string   `toml:"onnxruntime_lib"`
	IgnoreLabels        []string `toml:"ignore_labels"`
}

// TrackingConfig bundles the Kalman filter and state-machine tunables.
type TrackingConfig struct {
	Dt               float64 `toml:"dt"`
	ProcessNoise     float64 `toml:"process_noise"`
	MeasurementNoise float64 `toml:"measurement_noise"`
	MaxSpeed         float64 `toml:"max_speed"`
	LowPassAlpha     float64 `toml:"low_pass_alpha"`

	FitSamples             int     `toml:"fit_samples"`
	TemporaryLostTimeoutMs int     `toml:"temporary_lost_timeout_ms"`
	LostTimeoutMs          int     `toml:"lost_timeout_ms"`
	FireTimeDelay          float64 `toml:"fire_time_delay"`
}

// FireConfig bundles the fire-control gate constants.
type FireConfig struct {
	BulletVelocity    float64 `toml:"bullet_velocity"`
	PatrolCooldownMs  int     `toml:"patrol_cooldown_ms"`
	SmallArmorWidthM  float64 `toml:"small_armor_width_m"`
	SmallArmorHeightM float64 `toml:"small_armor_height_m"`
	LargeArmorWidthM  float64 `toml:"large_armor_width_m"`
	LargeArmorHeightM float64 `toml:"large_armor_height_m"`
}

// TransformConfig bundles the static calibration for the five-frame chain.
type TransformConfig struct {
	CameraMatrix [9]float64 `toml:"camera_matrix"`
	DistCoeffs   [5]float64 `toml:"dist_coeffs"`

	CameraToBarrelTranslation [3]float64 `toml:"camera_to_barrel_translation"`

	CameraToIMUTranslation [3]float64 `toml:"camera_to_imu_translation"`
	CameraToIMURotation    [3]float64 `toml:"camera_to_imu_rotation"`

	BaseToBarrelTranslation [3]float64 `toml:"base_to_barrel_translation"`
	BaseToBarrelRotation    [3]float64 `toml:"base_to_barrel_rotation"`

	BulletVelocity float64 `toml:"bullet_velocity"`
}

// SerialConfig bundles the attitude/command link's device list and
// reconnect policy.
type SerialConfig struct {
	Devices           []string `toml:"devices"`
	BaudRate          int      `toml:"baud_rate"`
	DataBits          int      `toml:"data_bits"`
	StopBits          int      `toml:"stop_bits"` // 1 or 2
	Parity            string   `toml:"parity"`    // "none", "odd", "even"
	ReconnectPeriodMs int      `toml:"reconnect_period_ms"`
	IMUFreshnessMs    int      `toml:"imu_freshness_ms"`
}

// Default returns the default configuration for an indoor arena setup.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			DeviceID:     0,
			PixelFormat:  "BGR8",
			ADCBitDepth:  8,
			TriggerMode:  "off",
			ExposureAuto: true,
			GainAuto:     true,
			GammaEnable:  true,
			Gamma:        1.0,
			Width:        1280,
			Height:       1024,
		},
		Detector: DetectorConfig{
			EnemyColor:                "red",
			MinLightBarArea:           30.0,
			MaxLightBarArea:           5e4,
			MinLightBarSolidity:       0.5,
			MinLightBarAspectRatio:    1.5,
			MaxLightBarAspectRatio:    15,
			MaxLightBarAngle:          60.0,
			BrightnessThreshold:       60,
			ColorThreshold:            60,
			BinaryThreshold:           120,
			LightBarAreaRatio:         2.0,
			MinArmorArea:              400,
			MaxLightBarArmorAreaRatio: 0.8,
			MaxRollAngle:              35,
			MaxHeightDiffRatio:        0.3,
			MaxYDiffRatio:             0.5,
			MinXDiffRatio:             0.6,
			MinArmorAspectRatio:       1.0,
			MaxArmorAspectRatio:       5.0,
			MaxAngleDiff:              15,
			BigArmorRatio:             3.2,
			ClassifierModelPath:       "model.onnx",
			ClassifierThreshold:       0.5,
		},
		Tracking: TrackingConfig{
			Dt:                     1.0 / 60.0,
			ProcessNoise:           0.01,
			MeasurementNoise:       0.05,
			MaxSpeed:               6.0,
			LowPassAlpha:           0.75,
			FitSamples:             5,
			TemporaryLostTimeoutMs: 200,
			LostTimeoutMs:          1000,
			FireTimeDelay:          0.02,
		},
		Fire: FireConfig{
			BulletVelocity:    15.0,
			PatrolCooldownMs:  300,
			SmallArmorWidthM:  0.135,
			SmallArmorHeightM: 0.056,
			LargeArmorWidthM:  0.230,
			LargeArmorHeightM: 0.056,
		},
		Transform: TransformConfig{
			CameraMatrix:   [9]float64{1000, 0, 640, 0, 1000, 512, 0, 0, 1},
			DistCoeffs:     [5]float64{0, 0, 0, 0, 0},
			BulletVelocity: 15.0,
		},
		Serial: SerialConfig{
			Devices:           []string{"/dev/ttyUSB0"},
			BaudRate:          460800,
			DataBits:          8,
			StopBits:          1,
			Parity:            "none",
			ReconnectPeriodMs: 1000,
			IMUFreshnessMs:    10,
		},
	}
}

// Load reads and parses a TOML configuration file. If the file does not
// exist, it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 {
		return fmt.Errorf("camera width must be positive, got %d", c.Camera.Width)
	}
	if c.Camera.Height <= 0 {
		return fmt.Errorf("camera height must be positive, got %d", c.Camera.Height)
	}
	if c.Detector.EnemyColor != "red" && c.Detector.EnemyColor != "blue" {
		return fmt.Errorf("enemy_color must be \"red\" or \"blue\", got %q", c.Detector.EnemyColor)
	}
	if c.Tracking.LowPassAlpha < 0 || c.Tracking.LowPassAlpha > 1 {
		return fmt.Errorf("low_pass_alpha must be between 0 and 1, got %f", c.Tracking.LowPassAlpha)
	}
	if c.Fire.BulletVelocity <= 0 {
		return fmt.Errorf("bullet_velocity must be positive, got %f", c.Fire.BulletVelocity)
	}
	if c.Tracking.Dt <= 0 {
		return fmt.Errorf("tracking dt must be positive, got %f", c.Tracking.Dt)
	}
	if len(c.Serial.Devices) == 0 {
		return fmt.Errorf("serial.devices must list at least one device path")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial baud_rate must be positive, got %d", c.Serial.BaudRate)
	}
	if c.Serial.StopBits != 1 && c.Serial.StopBits != 2 {
		return fmt.Errorf("serial stop_bits must be 1 or 2, got %d", c.Serial.StopBits)
	}
	switch c.Serial.Parity {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("serial parity must be \"none\", \"odd\" or \"even\", got %q", c.Serial.Parity)
	}
	return nil
}
