//go:build linux

// Package pipeline drives capture sources and encoders at the cadence the
// recorder needs, independent of how fast PulseAudio or NvFBC actually
// deliver data.
package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gsrec/gsrec/internal/audio"
	"github.com/gsrec/gsrec/internal/types"
)

// missingFrameThreshold and the got-data tie-break below reproduce the
// original recorder's audio/video sync discipline verbatim: without it,
// video either outruns or lags the audio clock whenever PulseAudio itself
// delivers late or early.
const missingFrameThreshold = 5

// AudioTrackWorker drives one audio.Source + encode.AudioEncoder pair,
// emitting EncodedPacket onto Sink at the encoder's own frame cadence.
type AudioTrackWorker struct {
	track  *types.AudioTrack
	source *audio.Source // nil for a silent placeholder track
	enc    types.AudioEncoder
	sink   PacketSink
	log    *zap.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// PacketSink is the packet dispatch contract the audio worker writes into
// (internal/sink.Sink satisfies this).
type PacketSink interface {
	Write(pkt *types.EncodedPacket, streamIndex int)
}

// NewAudioTrackWorker constructs a worker for one track. source is nil when
// the track is a silent placeholder (no PulseAudio handle), matching the
// original tool's `audio_input.name.empty()` branch.
func NewAudioTrackWorker(track *types.AudioTrack, source *audio.Source, enc types.AudioEncoder, sink PacketSink, log *zap.Logger) *AudioTrackWorker {
	return &AudioTrackWorker{
		track:  track,
		source: source,
		enc:    enc,
		sink:   sink,
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Run is the per-track goroutine body. Every track, real or silent, wakes
// on a ticker whose period is one encoder frame (FrameSize samples at the
// sample rate). ReadChunk never blocks, so a real track reads at most one
// chunk per tick; a silent placeholder track emits one silence frame per
// tick.
func (w *AudioTrackWorker) Run() {
	defer close(w.done)

	frameSize := w.enc.FrameSize()
	sampleRate := w.enc.SampleRate()
	targetPeriod := time.Second / time.Duration(sampleRate)
	silentTickPeriod := time.Duration(frameSize) * targetPeriod

	lastReceived := time.Now()
	ticker := time.NewTicker(silentTickPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
		}

		var pcm []int16
		gotData := false
		if w.source != nil {
			if chunk, ok := w.source.ReadChunk(frameSize); ok {
				pcm = chunk
				gotData = true
			}
		}

		now := time.Now()
		if gotData {
			lastReceived = now
		}

		missing := int64(time.Duration(now.Sub(lastReceived)) / targetPeriod / time.Duration(frameSize))
		if missing >= missingFrameThreshold || (missing > 0 && gotData) {
			lastReceived = now
			for i := int64(0); i < missing; i++ {
				w.emit(nil)
			}
		}

		if w.source == nil {
			lastReceived = now
			w.emit(nil)
			continue
		}

		if gotData {
			w.emit(pcm)
		}
	}
}

func (w *AudioTrackWorker) emit(pcm []int16) {
	pts := w.track.PTSCounter
	pkt, err := w.enc.Encode(pcm, pts)
	w.track.PTSCounter += int64(w.enc.FrameSize())
	if err != nil {
		w.log.Warn("audio encode failed", zap.String("input", w.track.InputSpec), zap.Error(err))
		return
	}
	if pkt == nil {
		return
	}
	pkt.StreamIndex = w.track.AssignedStreamIndex
	w.sink.Write(pkt, w.track.AssignedStreamIndex)
}

// Stop signals the worker to exit and waits for it to return. Safe to call
// more than once.
func (w *AudioTrackWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
	})
}
