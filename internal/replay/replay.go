//go:build linux

// Package replay implements the in-memory replay buffer: a FIFO of encoded
// packets evicted once the buffer's own wall-clock lifetime exceeds its
// window, snapshotted to a file on demand.
package replay

import (
	"fmt"
	"sync"
	"time"

	"github.com/gsrec/gsrec/internal/mux"
	"github.com/gsrec/gsrec/internal/types"
)

// Buffer is the replay FIFO. Eviction is wall-clock based (time since the
// buffer's start, +5s padding applied by the caller when sizing
// bufferSeconds) rather than relative to packet pts, matching the original
// tool's `receive_frames` eviction check — see DESIGN.md's Open Question
// decision on this point.
type Buffer struct {
	mu            sync.Mutex
	entries       []types.ReplayBufferEntry
	start         time.Time
	bufferSeconds int
	erased        bool

	videoStreamIndex int
}

// NewBuffer creates an empty replay buffer spanning bufferSeconds of
// wall-clock time.
func NewBuffer(bufferSeconds, videoStreamIndex int) *Buffer {
	return &Buffer{
		start:            time.Now(),
		bufferSeconds:    bufferSeconds,
		videoStreamIndex: videoStreamIndex,
	}
}

// Push appends pkt and, once bufferSeconds or more of wall-clock time have
// passed since the buffer was created, evicts the single oldest entry (one
// per Push, regardless of the entries' own timestamps). Callers already hold whatever lock
// serializes writes across video/audio workers (internal/sink.Sink); Buffer
// adds its own lock only for snapshot isolation.
func (b *Buffer) Push(pkt types.EncodedPacket, streamIndex int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pkt.StreamIndex = streamIndex
	b.entries = append(b.entries, types.ReplayBufferEntry{Packet: pkt, StreamIndex: streamIndex})

	if time.Since(b.start) >= time.Duration(b.bufferSeconds)*time.Second {
		b.entries = b.entries[1:]
		b.erased = true
	}
}

// Snapshot writes the buffer's current contents to a new file under
// outputDir. It fails if the buffer holds no video keyframe. When the
// buffer has already evicted entries, writing starts at the first video
// keyframe and pts values are rebased so the snapshot starts at zero, using
// the first video and first audio packet at or after the keyframe as the
// respective offsets. When nothing has been evicted yet, writing starts at
// the first entry and pts values are left as they are.
func (b *Buffer) Snapshot(outputDir, containerFormat string, videoStream mux.StreamConfig, audioStreams []mux.StreamConfig) (string, error) {
	b.mu.Lock()
	entries := make([]types.ReplayBufferEntry, len(b.entries))
	copy(entries, b.entries)
	erased := b.erased
	b.mu.Unlock()

	startIndex := -1
	for i, e := range entries {
		if e.Packet.Keyframe && e.StreamIndex == b.videoStreamIndex {
			startIndex = i
			break
		}
	}
	if startIndex == -1 {
		return "", fmt.Errorf("replay: no keyframe found in buffer, nothing to save")
	}

	var videoOffset, audioOffset int64
	if erased {
		videoOffset = entries[startIndex].Packet.PTS
		for i := startIndex; i < len(entries); i++ {
			if entries[i].StreamIndex != b.videoStreamIndex {
				audioOffset = entries[i].Packet.PTS
				break
			}
		}
	} else {
		startIndex = 0
	}

	filename := fmt.Sprintf("%s/Replay_%s.%s", outputDir, time.Now().Format("2006-01-02_15-04-05"), containerFormat)

	streams := append([]mux.StreamConfig{videoStream}, audioStreams...)
	m, err := mux.Open(filename, containerFormat, streams)
	if err != nil {
		return "", fmt.Errorf("replay: %w", err)
	}
	if err := m.WriteHeader(); err != nil {
		m.Close()
		return "", fmt.Errorf("replay: %w", err)
	}

	for i := startIndex; i < len(entries); i++ {
		pkt := entries[i].Packet
		if entries[i].StreamIndex == b.videoStreamIndex {
			pkt.PTS -= videoOffset
			pkt.DTS -= videoOffset
		} else {
			pkt.PTS -= audioOffset
			pkt.DTS -= audioOffset
		}
		if err := m.WritePacket(&pkt); err != nil {
			continue
		}
	}

	if err := m.WriteTrailer(); err != nil {
		m.Close()
		return "", fmt.Errorf("replay: %w", err)
	}
	if err := m.Close(); err != nil {
		return "", fmt.Errorf("replay: %w", err)
	}
	return filename, nil
}
