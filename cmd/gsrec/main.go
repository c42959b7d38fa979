package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gsrec/gsrec/internal/audio"
	"github.com/gsrec/gsrec/internal/capture"
	"github.com/gsrec/gsrec/internal/config"
	"github.com/gsrec/gsrec/internal/encode"
	"github.com/gsrec/gsrec/internal/gpu"
	"github.com/gsrec/gsrec/internal/mux"
	"github.com/gsrec/gsrec/internal/pipeline"
	"github.com/gsrec/gsrec/internal/replay"
	"github.com/gsrec/gsrec/internal/sink"
	"github.com/gsrec/gsrec/internal/types"
)

const pidFilePath = "/tmp/gpu-screen-recorder"

// exitError carries the process exit code a setup failure should produce —
// 1 for general configuration/runtime failures, 2 for codec/audio-device
// failures, per the CLI's exit code table.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

var cfg config.Config

func main() {
	root := &cobra.Command{
		Use:   "gsrec",
		Short: "NVIDIA GPU-accelerated screen recorder",
	}
	root.SilenceUsage = true

	flags := root.Flags()
	flags.StringVarP(&cfg.Window, "window", "w", "screen", "window id (hex or decimal), \"screen\", or \"screen-direct\"")
	flags.StringVarP(&cfg.Container, "container", "c", "", "output container: mp4, mkv, flv (inferred from -o when empty)")
	flags.IntVarP(&cfg.FPS, "fps", "f", 60, "capture frame rate")
	flags.StringVarP(&cfg.Size, "size", "s", "", "record size WxH (window mode only; empty = window's own size)")
	flags.StringArrayVarP(&cfg.AudioInputs, "audio", "a", nil, "PulseAudio source/sink name to capture (repeatable)")
	flags.StringVarP((*string)(&cfg.Quality), "quality", "q", "", "medium, high, very_high, ultra")
	flags.IntVarP(&cfg.ReplaySeconds, "replay", "r", 0, "replay buffer length in seconds (0 = live/streaming mode)")
	flags.StringVarP((*string)(&cfg.Codec), "codec", "k", "", "auto, h264, h265")
	flags.StringVarP(&cfg.Output, "output", "o", "", "output file, directory (with -r), or livestream URL")
	listDevices := flags.Bool("list-audio-devices", false, "print PulseAudio source/sink names and exit")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		if *listDevices {
			names, err := audio.ListInputs()
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		}
		return run()
	}

	if err := root.Execute(); err != nil {
		code := 1
		if ee, ok := err.(*exitError); ok {
			code = ee.code
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}

func run() error {
	log, err := zap.NewProduction()
	if err != nil {
		log = zap.NewNop()
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		return &exitError{code: 1, err: err}
	}

	if cfg.IsScreenDirect {
		log.Warn("screen-direct capture disabled at runtime due to NVIDIA driver stuttering; falling back to screen")
	}
	if cfg.CodecForced {
		log.Warn("flv does not carry H.265; forcing codec to H.264", zap.String("container", cfg.Container))
	}

	for _, in := range cfg.AudioInputs {
		if in == "" || in == "default" {
			continue
		}
		names, err := audio.ListInputs()
		if err != nil {
			return &exitError{code: 2, err: fmt.Errorf("main: could not query audio devices: %w", err)}
		}
		if !contains(names, in) {
			return &exitError{code: 2, err: fmt.Errorf("main: no audio source or sink named %q", in)}
		}
	}

	rec, err := newRecorder(&cfg, log)
	if err != nil {
		return &exitError{code: 1, err: err}
	}
	defer rec.close()

	if err := writePIDFile(); err != nil {
		return &exitError{code: 1, err: err}
	}
	defer os.Remove(pidFilePath)

	rec.start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGUSR1, syscall.SIGTERM)

	var snapshotInFlight int32
	for sig := range sigCh {
		switch sig {
		case syscall.SIGINT:
			log.Info("received SIGINT, stopping")
			rec.stop()
			return nil
		case syscall.SIGTERM:
			log.Info("received SIGTERM, exiting immediately")
			os.Remove(pidFilePath)
			os.Exit(0)
		case syscall.SIGUSR1:
			if !atomic.CompareAndSwapInt32(&snapshotInFlight, 0, 1) {
				log.Info("replay snapshot already in progress, ignoring SIGUSR1")
				continue
			}
			attempt := uuid.NewString()
			log.Info("starting replay snapshot", zap.String("attempt", attempt))
			go func() {
				defer atomic.StoreInt32(&snapshotInFlight, 0)
				name, err := rec.saveReplay()
				if err != nil {
					log.Warn("replay snapshot failed", zap.String("attempt", attempt), zap.Error(err))
					return
				}
				log.Info("replay snapshot complete", zap.String("attempt", attempt), zap.String("file", name))
				fmt.Println(name)
			}()
		}
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func writePIDFile() error {
	return os.WriteFile(pidFilePath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644)
}

// recorder owns every GPU/capture/encode/pipeline resource for the run's
// lifetime. Teardown order in close() is strictly leaves-first: pipeline
// workers, then encoders, then capture, then the GPU context.
type recorder struct {
	log *zap.Logger
	cfg *config.Config

	gpuCtx    *gpu.Context
	capture   types.CaptureSource
	venc      *encode.VideoEncoder
	videoLoop *pipeline.VideoLoop

	audioSources []*audio.Source
	audioEncs    []*encode.AudioEncoder
	audioWorkers []*pipeline.AudioTrackWorker

	liveMuxer *mux.Muxer
	replayBuf *replay.Buffer
	sink      *recorderSink

	videoStream mux.StreamConfig
	audioStream []mux.StreamConfig

	closeOnce sync.Once
}

// recorderSink satisfies pipeline.PacketSink by delegating to sink.Sink.
type recorderSink struct {
	s *sink.Sink
}

func (r *recorderSink) Write(pkt *types.EncodedPacket, streamIndex int) {
	r.s.Write(pkt, streamIndex)
}

func newRecorder(cfg *config.Config, log *zap.Logger) (*recorder, error) {
	r := &recorder{log: log, cfg: cfg}

	gctx, err := gpu.New(0)
	if err != nil {
		return nil, fmt.Errorf("main: gpu context: %w", err)
	}
	r.gpuCtx = gctx

	veryOldGPU := false
	if cfg.IsWindowMode {
		if dpy, err := gpu.OpenDefaultDisplay(); err == nil {
			if glw, err := gpu.NewGLWindow(dpy); err == nil {
				veryOldGPU = gpu.IsVeryOldGPU(glw.Renderer())
				glw.Close()
			}
			gpu.CloseDisplay(dpy)
		}
	}

	var capSrc types.CaptureSource
	if cfg.IsWindowMode {
		winID, err := cfg.WindowID()
		if err != nil {
			return nil, fmt.Errorf("main: %w", err)
		}
		wc, err := capture.NewWindowCapture(winID, gctx.CUDA(), cfg.FPS, cfg.RecordWidth, cfg.RecordHeight)
		if err != nil {
			return nil, fmt.Errorf("main: window capture: %w", err)
		}
		capSrc = wc
	} else {
		dc, err := capture.NewDisplayCapture(gctx.CUDA(), cfg.FPS)
		if err != nil {
			return nil, fmt.Errorf("main: display capture: %w", err)
		}
		capSrc = dc
	}
	r.capture = capSrc

	hevc := cfg.Codec == config.CodecH265
	if cfg.Codec == config.CodecAuto {
		hevc = encode.DefaultCodec(cfg.FPS, cfg.Container)
	}

	cudaProvider, _ := capSrc.(types.CUDAProvider)
	var cudaPtr, memcpyPtr unsafe.Pointer
	if cudaProvider != nil {
		cudaPtr = cudaProvider.CUDAContext()
		memcpyPtr = cudaProvider.CuMemcpy2D()
	}
	var memsetPtr unsafe.Pointer
	if clearProvider, ok := capSrc.(types.ClearProvider); ok {
		memsetPtr = clearProvider.CuMemsetD8()
	}

	venc, err := encode.NewVideoEncoder(encode.VideoEncoderConfig{
		Width:       capSrc.Width(),
		Height:      capSrc.Height(),
		FPS:         cfg.FPS,
		Quality:     qualityTier(cfg.Quality),
		HEVC:        hevc,
		Livestream:  cfg.IsLivestream,
		HVC1Tag:     hevc && cfg.Container == "mp4",
		VeryOldGPU:  veryOldGPU,
		CUDAContext: cudaPtr,
		CuMemcpy2D:  memcpyPtr,
		CuMemsetD8:  memsetPtr,
	})
	if err != nil {
		capSrc.Close()
		return nil, fmt.Errorf("main: video encoder: %w", err)
	}
	r.venc = venc

	videoCodecID := mux.CodecIDH264
	if hevc {
		videoCodecID = mux.CodecIDHEVC
	}
	var codecTag uint32
	if hevc && cfg.Container == "mp4" {
		codecTag = uint32('h') | uint32('v')<<8 | uint32('c')<<16 | uint32('1')<<24
	}
	r.videoStream = mux.StreamConfig{
		CodecID:     videoCodecID,
		TimeBaseNum: 1,
		TimeBaseDen: cfg.FPS,
		Width:       capSrc.Width(),
		Height:      capSrc.Height(),
		CodecTag:    codecTag,
	}

	audioInputs := cfg.AudioInputs
	autoSilent := len(audioInputs) == 0 && cfg.IsLivestream
	if autoSilent {
		audioInputs = []string{""}
	}

	tracks := make([]*types.AudioTrack, 0, len(audioInputs))
	for i, in := range audioInputs {
		spec := in
		if spec == "default" {
			spec = ""
		}
		aenc, err := encode.NewAudioEncoder(audio.SampleRate, audio.Channels, 128)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("main: audio encoder: %w", err)
		}
		r.audioEncs = append(r.audioEncs, aenc)

		var src *audio.Source
		if !autoSilent {
			src, err = audio.NewSource(spec)
			if err != nil {
				r.close()
				return nil, fmt.Errorf("main: audio source %q: %w", spec, err)
			}
		}
		r.audioSources = append(r.audioSources, src)

		track := &types.AudioTrack{
			InputSpec:           spec,
			AssignedStreamIndex: i + 1,
			FrameSize:           aenc.FrameSize(),
			SampleRate:          aenc.SampleRate(),
			Silent:              autoSilent,
		}
		tracks = append(tracks, track)

		r.audioStream = append(r.audioStream, mux.StreamConfig{
			CodecID:     mux.CodecIDAAC,
			TimeBaseNum: 1,
			TimeBaseDen: aenc.SampleRate(),
			SampleRate:  aenc.SampleRate(),
			Channels:    audio.Channels,
		})
	}

	if cfg.ReplaySeconds > 0 {
		r.replayBuf = replay.NewBuffer(cfg.BufferSecondsWithPadding(), 0)
		r.sink = &recorderSink{s: sink.NewReplaySink(r.replayBuf, log)}
	} else {
		streams := append([]mux.StreamConfig{r.videoStream}, r.audioStream...)
		m, err := mux.Open(cfg.Output, cfg.Container, streams)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("main: muxer: %w", err)
		}
		if err := m.WriteHeader(); err != nil {
			m.Close()
			r.close()
			return nil, fmt.Errorf("main: muxer header: %w", err)
		}
		r.liveMuxer = m
		r.sink = &recorderSink{s: sink.NewLiveSink(m, log)}
	}

	r.videoLoop = pipeline.NewVideoLoop(capSrc, venc, r.sink, cfg.FPS, log)
	for i, track := range tracks {
		w := pipeline.NewAudioTrackWorker(track, r.audioSources[i], r.audioEncs[i], r.sink, log)
		r.audioWorkers = append(r.audioWorkers, w)
	}

	return r, nil
}

func qualityTier(q config.Quality) encode.QualityTier {
	switch q {
	case config.QualityMedium:
		return encode.QualityMedium
	case config.QualityHigh:
		return encode.QualityHigh
	case config.QualityUltra:
		return encode.QualityUltra
	default:
		return encode.QualityVeryHigh
	}
}

func (r *recorder) start() {
	go r.videoLoop.Run()
	for _, w := range r.audioWorkers {
		go w.Run()
	}
}

func (r *recorder) stop() {
	r.videoLoop.Stop()
	for _, w := range r.audioWorkers {
		w.Stop()
	}
	if r.liveMuxer != nil {
		if err := r.liveMuxer.WriteTrailer(); err != nil {
			r.log.Warn("failed to write container trailer", zap.Error(err))
		}
	}
}

func (r *recorder) saveReplay() (string, error) {
	if r.replayBuf == nil {
		return "", fmt.Errorf("main: no replay buffer configured")
	}
	return r.replayBuf.Snapshot(r.cfg.Output, r.cfg.Container, r.videoStream, r.audioStream)
}

func (r *recorder) close() {
	r.closeOnce.Do(func() {
		for _, w := range r.audioWorkers {
			w.Stop()
		}
		if r.videoLoop != nil {
			r.videoLoop.Stop()
		}
		for _, e := range r.audioEncs {
			e.Close()
		}
		if r.venc != nil {
			r.venc.Close()
		}
		for _, s := range r.audioSources {
			if s != nil {
				s.Close()
			}
		}
		if r.capture != nil {
			r.capture.Close()
		}
		if r.liveMuxer != nil {
			r.liveMuxer.Close()
		}
		if r.gpuCtx != nil {
			r.gpuCtx.Close()
		}
	})
}
