package autoaim

import (
	"context"
	"log"
	"time"
)

// PipelineConfig bundles the ring-buffer depths and component configs the
// four pipeline stages need.
type PipelineConfig struct {
	FrameQueueDepth       int
	DetectionQueueDepth   int
	Detection3DQueueDepth int

	Detector  DetectorConfig
	Transform TransformConfig
	Tracking  TrackingConfig
	Fire      FireConfig

	StatusWatchInterval time.Duration
}

// DefaultPipelineConfig returns small, latency-favoring queue depths (the
// newest-preserving drop policy makes deep queues counterproductive: a
// full queue just means stale work waiting behind it).
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		FrameQueueDepth:       4,
		DetectionQueueDepth:   4,
		Detection3DQueueDepth: 4,
		Detector:              DefaultDetectorConfig(),
		Tracking:              DefaultTrackingConfig(),
		Fire:                  DefaultFireConfig(),
		StatusWatchInterval:   50 * time.Millisecond,
	}
}

// s2Job is what the capture stage hands to the detect stage: an
// AnnotatedFrame plus the raw frame Mat's ownership.
type s2Job struct {
	frame AnnotatedFrame
}

// s3Job is what the detect stage hands to the transform stage.
type s3Job struct {
	detections  []Detection2D
	captureTime time.Time
}

// s4Job is what the transform stage hands to the fire stage: one frame's
// full set of Detection3D, handed over as a single slice so per-frame
// selection is atomic.
type s4Job struct {
	detections []Detection3D
	imu        IMUSample
}

// Pipeline wires S1 (capture+fuse) through S4 (track+select+fire) via
// bounded ring buffers, one goroutine per stage. Teardown is ordered:
// capture stops first, then each downstream stage after the one feeding
// it, then the tracker watchdog, and Close releases the shared link last.
type Pipeline struct {
	cfg PipelineConfig

	camera FrameSource
	link   *SerialLink

	detector  *Detector
	converter *PoseConverter
	trackers  *TrackerSet
	selector  *Selector
	fire      *FireController

	frameQueue       *RingBuffer[s2Job]
	detectionQueue   *RingBuffer[s3Job]
	detection3DQueue *RingBuffer[s4Job]

	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	stages []*stage
}

// stage pairs one worker goroutine's stop signal with its completion
// signal so Stop can join the workers one at a time, in order.
type stage struct {
	name string
	stop chan struct{}
	done chan struct{}
}

func newStage(name string) *stage {
	return &stage{
		name: name,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (s *stage) stopped() bool {
	select {
	case <-s.stop:
		return true
	default:
		return false
	}
}

// NewPipeline constructs every stage's component and its connecting ring
// buffers but does not start any goroutines.
func NewPipeline(cfg PipelineConfig, camera FrameSource, link *SerialLink, logger *log.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = log.Default()
	}

	detector, err := NewDetector(cfg.Detector, logger)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		cfg:              cfg,
		camera:           camera,
		link:             link,
		detector:         detector,
		converter:        NewPoseConverter(cfg.Transform),
		trackers:         NewTrackerSet(cfg.Tracking),
		selector:         NewSelector(),
		fire:             NewFireController(cfg.Fire),
		frameQueue:       NewRingBuffer[s2Job](cfg.FrameQueueDepth),
		detectionQueue:   NewRingBuffer[s3Job](cfg.DetectionQueueDepth),
		detection3DQueue: NewRingBuffer[s4Job](cfg.Detection3DQueueDepth),
		logger:           logger,
	}, nil
}

// Start launches the four stage goroutines plus the tracker-status
// watchdog. Returns immediately.
func (p *Pipeline) Start() {
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.stages = []*stage{
		newStage("capture"),
		newStage("detect"),
		newStage("transform"),
		newStage("fire"),
		newStage("watchdog"),
	}
	go p.runCapture(p.stages[0])
	go p.runDetect(p.stages[1])
	go p.runTransform(p.stages[2])
	go p.runFire(p.stages[3])
	go p.runWatchdog(p.stages[4])
}

// Stop signals the stages to exit upstream-first and joins each before
// stopping the next, so every in-flight frame drains through the
// remaining stages before they shut down.
func (p *Pipeline) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	// Each downstream stage keeps running until its input queue is empty.
	pending := map[string]func() int{
		"detect":    p.frameQueue.Size,
		"transform": p.detectionQueue.Size,
		"fire":      p.detection3DQueue.Size,
	}
	for _, s := range p.stages {
		if size, ok := pending[s.name]; ok {
			for size() > 0 {
				time.Sleep(time.Millisecond)
			}
		}
		close(s.stop)
		<-s.done
	}
	p.stages = nil
	p.cancel = nil
}

// Close stops the pipeline and releases every owned resource, the shared
// attitude/command link last.
func (p *Pipeline) Close() error {
	p.Stop()
	p.detector.Close()
	p.converter.Close()
	if p.camera != nil {
		_ = p.camera.Close()
	}
	if p.link != nil {
		_ = p.link.Close()
	}
	return nil
}

// guard runs one stage iteration, recovering and logging any panic so a
// single bad frame never takes a pipeline loop down.
func (p *Pipeline) guard(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("pipeline: %s stage recovered: %v", name, r)
		}
	}()
	fn()
}

// runCapture is S1: pulls frames from the camera, pairs each with the
// freshest IMU sample within the 10ms budget, and drops the frame if no
// such sample exists.
func (p *Pipeline) runCapture(s *stage) {
	defer close(s.done)
	for !s.stopped() {
		p.guard(s.name, func() {
			frame, err := p.camera.GetFrame(p.ctx)
			if err != nil {
				if p.ctx.Err() != nil {
					return
				}
				p.logger.Printf("pipeline: capture error: %v", err)
				return
			}

			imu, ok := p.link.NextIMUForFrame(frame.CaptureTime)
			if !ok {
				p.logger.Printf("pipeline: dropping frame, no fresh IMU sample")
				frame.Image.Close()
				return
			}

			p.frameQueue.Push(s2Job{frame: AnnotatedFrame{
				Image:       frame.Image,
				IMU:         imu,
				CaptureTime: frame.CaptureTime,
			}})
		})
	}
}

// runDetect is S2: lightbar extraction, armor pairing, digit
// classification.
func (p *Pipeline) runDetect(s *stage) {
	defer close(s.done)
	for !s.stopped() {
		p.guard(s.name, func() {
			job, ok := p.frameQueue.Pop()
			if !ok {
				time.Sleep(time.Millisecond)
				return
			}

			detections := p.detector.Detect(job.frame)
			job.frame.Image.Close()

			p.detectionQueue.Push(s3Job{detections: detections, captureTime: job.frame.CaptureTime})
		})
	}
}

// runTransform is S3: PnP and frame composition for every detection in
// the frame, handed downstream as one atomic slice.
func (p *Pipeline) runTransform(s *stage) {
	defer close(s.done)
	for !s.stopped() {
		p.guard(s.name, func() {
			job, ok := p.detectionQueue.Pop()
			if !ok {
				time.Sleep(time.Millisecond)
				return
			}

			out := make([]Detection3D, 0, len(job.detections))
			var imu IMUSample
			for _, d := range job.detections {
				det3D, err := p.converter.Solve(d)
				if err != nil {
					p.logger.Printf("pipeline: pose convert failed: %v", err)
					continue
				}
				out = append(out, det3D)
				imu = d.IMUAtCapture
			}

			p.detection3DQueue.Push(s4Job{detections: out, imu: imu})
		})
	}
}

// runFire is S4: folds this frame's Detection3D set into the per-label
// trackers, selects a target, and packs + sends a FireCommand.
func (p *Pipeline) runFire(s *stage) {
	defer close(s.done)
	for !s.stopped() {
		p.guard(s.name, func() {
			job, ok := p.detection3DQueue.Pop()
			if !ok {
				time.Sleep(time.Millisecond)
				return
			}

			now := time.Now()
			predictions := make(map[Labels]PredictedPosition, len(job.detections))
			for _, det := range job.detections {
				t := p.trackers.Get(det.Label)
				if t == nil {
					continue
				}
				predictions[det.Label] = t.Update(det, now)
			}

			chosen := p.selector.Select(job.detections, p.trackers)
			p.fire.SetAllowed(chosen)

			var pred *PredictedPosition
			if predicted, ok := predictions[chosen]; ok {
				pred = &predicted
			}

			cmd := p.fire.Pack(chosen, pred, job.detections, job.imu, p.trackers, now)
			p.link.SendCommand(cmd)
		})
	}
}

// runWatchdog periodically demotes trackers whose last update has aged
// past their timeouts.
func (p *Pipeline) runWatchdog(s *stage) {
	defer close(s.done)
	p.trackers.Watch(s.stop, p.cfg.StatusWatchInterval)
}
