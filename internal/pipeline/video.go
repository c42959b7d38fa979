//go:build linux

package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gsrec/gsrec/internal/types"
)

// eventDrainer is implemented by capture sources backed by an X11 window
// (see capture.WindowCapture); screen capture has no window to resize.
type eventDrainer interface {
	DrainEvents()
}

// VideoLoop drives a capture source + encoder at a tick rate of fps+190
// (update_fps in the original tool), encoding as many frames as the actual
// elapsed wall-clock time demands rather than exactly one per tick. This
// keeps the encoded pts stream monotonic and in sync with audio even when
// individual ticks jitter.
type VideoLoop struct {
	source types.CaptureSource
	enc    types.VideoEncoder
	sink   PacketSink
	fps    int
	log    *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewVideoLoop constructs the pacing loop. source and enc are already open;
// the loop only drives them.
func NewVideoLoop(source types.CaptureSource, enc types.VideoEncoder, sink PacketSink, fps int, log *zap.Logger) *VideoLoop {
	return &VideoLoop{
		source: source,
		enc:    enc,
		sink:   sink,
		fps:    fps,
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run blocks until Stop is called. frameDuration is the codec's target
// frame period (1/fps); ptsCounter tracks how many frames have actually
// been submitted so the catch-up math in tick() stays frame-accurate.
func (v *VideoLoop) Run() {
	defer close(v.done)

	updateFPS := v.fps + 190
	tickPeriod := time.Second / time.Duration(updateFPS)
	frameDuration := time.Second / time.Duration(v.fps)

	ticker := time.NewTicker(tickPeriod)
	defer ticker.Stop()

	startTime := time.Now()
	var ptsCounter int64

	drainer, _ := v.source.(eventDrainer)

	frame := &types.Frame{}
	for {
		select {
		case <-v.stop:
			return
		case <-ticker.C:
		}

		if drainer != nil {
			drainer.DrainEvents()
		}

		if err := v.source.CaptureInto(frame); err != nil {
			v.log.Warn("capture failed", zap.Error(err))
			continue
		}

		expected := int64((time.Since(startTime) + frameDuration/2) / frameDuration)
		numFrames := expected - ptsCounter
		if numFrames < 0 {
			numFrames = 0
		}

		for i := int64(0); i < numFrames; i++ {
			pts := ptsCounter + i
			pkt, err := v.enc.Encode(frame, pts, false)
			if err != nil {
				v.log.Warn("video encode failed", zap.Error(err))
				continue
			}
			if pkt == nil {
				continue
			}
			v.sink.Write(pkt, 0)
		}
		ptsCounter += numFrames
	}
}

// Stop signals the loop to exit and waits for it to return. Safe to call
// more than once (the recorder's graceful-stop and teardown paths both do).
func (v *VideoLoop) Stop() {
	v.stopOnce.Do(func() {
		close(v.stop)
		<-v.done
	})
}
