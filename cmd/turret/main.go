// Package main provides the CLI wrapper for the turret perception and
// fire-control pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArcaLunar/rm-auto-aim-msbuild/internal/config"
	"github.com/ArcaLunar/rm-auto-aim-msbuild/pkg/autoaim"
)

var version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to TOML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	cameraID := flag.Int("camera", -1, "Camera device ID (overrides config)")
	enemyColor := flag.String("enemy-color", "", "Enemy color to engage: red or blue (overrides config)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "turret - RoboMaster auto-aim perception and fire-control core\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("turret version %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if *cameraID >= 0 {
		cfg.Camera.DeviceID = *cameraID
	}
	if *enemyColor != "" {
		cfg.Detector.EnemyColor = *enemyColor
	}

	logger := log.New(os.Stderr, "turret: ", log.LstdFlags|log.Lmicroseconds)
	if *verbose {
		logger.Printf("configuration: camera device=%d %dx%d, enemy_color=%s, serial devices=%v",
			cfg.Camera.DeviceID, cfg.Camera.Width, cfg.Camera.Height,
			cfg.Detector.EnemyColor, cfg.Serial.Devices)
	}

	camera, err := autoaim.NewOpenCVFrameSource(toCameraConfig(cfg.Camera))
	if err != nil {
		log.Fatalf("failed to open camera: %v", err)
	}

	link := autoaim.NewSerialLink(toSerialConfig(cfg.Serial), logger)

	pipelineCfg := autoaim.DefaultPipelineConfig()
	pipelineCfg.Detector = toDetectorConfig(cfg.Detector)
	pipelineCfg.Transform = toTransformConfig(cfg.Transform)
	pipelineCfg.Tracking = toTrackingConfig(cfg.Tracking)
	pipelineCfg.Fire = toFireConfig(cfg.Fire)

	pipeline, err := autoaim.NewPipeline(pipelineCfg, camera, link, logger)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}
	defer pipeline.Close()

	pipeline.Start()
	logger.Println("pipeline started, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("received signal %v, shutting down", sig)
}

func toCameraConfig(c config.CameraConfig) autoaim.CameraConfig {
	return autoaim.CameraConfig{
		DeviceID:        c.DeviceID,
		PixelFormat:     c.PixelFormat,
		ADCBitDepth:     c.ADCBitDepth,
		TriggerMode:     c.TriggerMode,
		ExposureAuto:    c.ExposureAuto,
		ExposureUs:      c.ExposureUs,
		GainAuto:        c.GainAuto,
		Gain:            c.Gain,
		GammaEnable:     c.GammaEnable,
		Gamma:           c.Gamma,
		FrameRateEnable: c.FrameRateEnable,
		FrameRate:       c.FrameRate,
		Width:           c.Width,
		Height:          c.Height,
		OffsetX:         c.OffsetX,
		OffsetY:         c.OffsetY,
	}
}

func toSerialConfig(c config.SerialConfig) autoaim.SerialConfig {
	return autoaim.SerialConfig{
		Devices:         c.Devices,
		BaudRate:        c.BaudRate,
		DataBits:        c.DataBits,
		StopBits:        c.StopBits,
		Parity:          c.Parity,
		ReconnectPeriod: time.Duration(c.ReconnectPeriodMs) * time.Millisecond,
		IMUFreshness:    time.Duration(c.IMUFreshnessMs) * time.Millisecond,
	}
}

func toDetectorConfig(c config.DetectorConfig) autoaim.DetectorConfig {
	enemy := autoaim.ColorRed
	if c.EnemyColor == "blue" {
		enemy = autoaim.ColorBlue
	}
	return autoaim.DetectorConfig{
		EnemyColor: enemy,
		LightBar: autoaim.LightBarConfig{
			MinArea:             c.MinLightBarArea,
			MaxArea:             c.MaxLightBarArea,
			MinSolidity:         c.MinLightBarSolidity,
			MinAspectRatio:      c.MinLightBarAspectRatio,
			MaxAspectRatio:      c.MaxLightBarAspectRatio,
			MaxAngle:            c.MaxLightBarAngle,
			BrightnessThreshold: c.BrightnessThreshold,
			ColorThreshold:      c.ColorThreshold,
		},
		Armor: autoaim.ArmorConfig{
			BinaryThreshold:           c.BinaryThreshold,
			LightBarAreaRatio:         c.LightBarAreaRatio,
			MinArea:                   c.MinArmorArea,
			MaxLightBarArmorAreaRatio: c.MaxLightBarArmorAreaRatio,
			MaxRollAngle:              c.MaxRollAngle,
			MaxHeightDiffRatio:        c.MaxHeightDiffRatio,
			MaxYDiffRatio:             c.MaxYDiffRatio,
			MinXDiffRatio:             c.MinXDiffRatio,
			MinAspectRatio:            c.MinArmorAspectRatio,
			MaxAspectRatio:            c.MaxArmorAspectRatio,
			MaxAngleDiff:              c.MaxAngleDiff,
			BigArmorRatio:             c.BigArmorRatio,
		},
		Classifier: autoaim.ClassifierConfig{
			ModelPath:           c.ClassifierModelPath,
			SharedLibraryPath:   c.OnnxRuntimeLib,
			ConfidenceThreshold: c.ClassifierThreshold,
		},
		Ignore: parseIgnoreLabels(c.IgnoreLabels),
	}
}

// parseIgnoreLabels maps config label names onto the Labels enum,
// silently skipping names that match no class.
func parseIgnoreLabels(names []string) []autoaim.Labels {
	byName := make(map[string]autoaim.Labels, len(autoaim.AllLabels))
	for _, label := range autoaim.AllLabels {
		byName[label.String()] = label
	}
	var out []autoaim.Labels
	for _, name := range names {
		if label, ok := byName[name]; ok {
			out = append(out, label)
		}
	}
	return out
}

func toTransformConfig(c config.TransformConfig) autoaim.TransformConfig {
	return autoaim.TransformConfig{
		CameraMatrix:              c.CameraMatrix,
		DistCoeffs:                c.DistCoeffs,
		CameraToBarrelTranslation: c.CameraToBarrelTranslation,
		CameraToIMUTranslation:    c.CameraToIMUTranslation,
		CameraToIMURotation:       c.CameraToIMURotation,
		BaseToBarrelTranslation:   c.BaseToBarrelTranslation,
		BaseToBarrelRotation:      c.BaseToBarrelRotation,
		BulletVelocity:            c.BulletVelocity,
	}
}

func toTrackingConfig(c config.TrackingConfig) autoaim.TrackingConfig {
	return autoaim.TrackingConfig{
		Dt:                   c.Dt,
		ProcessNoise:         c.ProcessNoise,
		MeasurementNoise:     c.MeasurementNoise,
		MaxSpeed:             c.MaxSpeed,
		LowPassAlpha:         c.LowPassAlpha,
		FitSamples:           c.FitSamples,
		TemporaryLostTimeout: time.Duration(c.TemporaryLostTimeoutMs) * time.Millisecond,
		LostTimeout:          time.Duration(c.LostTimeoutMs) * time.Millisecond,
		FireTimeDelay:        c.FireTimeDelay,
	}
}

func toFireConfig(c config.FireConfig) autoaim.FireConfig {
	return autoaim.FireConfig{
		BulletVelocity:    c.BulletVelocity,
		PatrolCooldown:    time.Duration(c.PatrolCooldownMs) * time.Millisecond,
		SmallArmorWidthM:  c.SmallArmorWidthM,
		SmallArmorHeightM: c.SmallArmorHeightM,
		LargeArmorWidthM:  c.LargeArmorWidthM,
		LargeArmorHeightM: c.LargeArmorHeightM,
	}
}
