//go:build linux

// Package audio owns PulseAudio input capture. Each requested `-a` track
// gets its own Source; tracks are not mixed. Silence insertion lives in
// internal/pipeline, which drives the Source at its own pace rather than
// being driven by PulseAudio's delivery timing; S16 to FLTP resampling
// lives in internal/encode.
package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate and Channels are fixed for every track so tracks can share
	// one AAC codec configuration and one resampler setup downstream.
	SampleRate = 48000
	Channels   = 2
)

// pcmCollector implements pulse.Writer, accumulating raw S16LE samples as
// they arrive off the PulseAudio connection.
type pcmCollector struct {
	mu  sync.Mutex
	buf []int16
}

func (p *pcmCollector) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(data) / 2
	for i := 0; i < n; i++ {
		p.buf = append(p.buf, int16(binary.LittleEndian.Uint16(data[i*2:i*2+2])))
	}
	return len(data), nil
}

func (p *pcmCollector) Format() byte { return proto.FormatInt16LE }

// Drain returns exactly count interleaved int16 samples and removes them
// from the buffer, or returns ok=false if fewer than count are available.
func (p *pcmCollector) Drain(count int) (pcm []int16, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) < count {
		return nil, false
	}
	out := make([]int16, count)
	copy(out, p.buf[:count])
	p.buf = p.buf[count:]
	return out, true
}

// Source is one PulseAudio capture stream: either a named source/sink
// monitor, or (InputSpec == "") the default sink's monitor.
type Source struct {
	client    *pulse.Client
	stream    *pulse.RecordStream
	collector *pcmCollector
}

// NewSource opens a PulseAudio record stream for inputSpec. An empty spec
// records the default sink's monitor (desktop audio); any other spec is
// resolved first as a source name, then as a sink name (its monitor is
// recorded instead), matching how `-a` names are validated against
// ListInputs.
func NewSource(inputSpec string) (*Source, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("gsrec"))
	if err != nil {
		return nil, fmt.Errorf("audio: pulse connect: %w", err)
	}

	collector := &pcmCollector{}
	opts := []pulse.RecordOption{pulse.RecordStereo, pulse.RecordSampleRate(SampleRate)}

	switch {
	case inputSpec == "":
		sink, err := client.DefaultSink()
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("audio: default sink: %w", err)
		}
		opts = append(opts, pulse.RecordMonitor(sink))
	default:
		if source, err := client.SourceByName(inputSpec); err == nil {
			opts = append(opts, pulse.RecordSource(source))
		} else if sink, err := client.SinkByName(inputSpec); err == nil {
			opts = append(opts, pulse.RecordMonitor(sink))
		} else {
			client.Close()
			return nil, fmt.Errorf("audio: no source or sink named %q", inputSpec)
		}
	}

	stream, err := client.NewRecord(collector, opts...)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("audio: failed to open record stream for %q: %w", inputSpec, err)
	}
	stream.Start()

	return &Source{client: client, stream: stream, collector: collector}, nil
}

// ReadChunk drains exactly frameSamples interleaved int16 samples if
// available. ok is false when PulseAudio hasn't delivered enough data yet —
// the caller (the audio track worker) treats that as "no data this tick",
// not an error.
func (s *Source) ReadChunk(frameSamples int) (pcm []int16, ok bool) {
	return s.collector.Drain(frameSamples * Channels)
}

func (s *Source) Close() {
	s.stream.Stop()
	s.client.Close()
}

// ListInputs enumerates PulseAudio source and sink names, used to validate
// `-a` arguments before recording starts (`gsrec --list-audio-devices`).
func ListInputs() ([]string, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("gsrec"))
	if err != nil {
		return nil, fmt.Errorf("audio: pulse connect: %w", err)
	}
	defer client.Close()

	var names []string
	sources, err := client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("audio: list sources: %w", err)
	}
	for _, s := range sources {
		names = append(names, s.Name())
	}
	sinks, err := client.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("audio: list sinks: %w", err)
	}
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	return names, nil
}
