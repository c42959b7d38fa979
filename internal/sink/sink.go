//go:build linux

// Package sink dispatches encoded packets from the video and audio workers
// to either a live muxer or the replay buffer, under one mutex — mirroring
// the original tool's single write_output_mutex shared by every producer.
package sink

import (
	"sync"

	"go.uber.org/zap"

	"github.com/gsrec/gsrec/internal/mux"
	"github.com/gsrec/gsrec/internal/replay"
	"github.com/gsrec/gsrec/internal/types"
)

// Sink is the packet dispatch point every video/audio worker writes
// through. Exactly one of Muxer or Replay is set for the sink's lifetime —
// the recorder never switches between live and replay mode mid-run.
type Sink struct {
	mu     sync.Mutex
	muxer  *mux.Muxer
	replay *replay.Buffer
	log    *zap.Logger
}

// NewLiveSink writes straight through to m. Muxer header/trailer lifecycle
// is the caller's responsibility (opened before the pipeline starts,
// trailer written after it stops).
func NewLiveSink(m *mux.Muxer, log *zap.Logger) *Sink {
	return &Sink{muxer: m, log: log}
}

// NewReplaySink appends every packet to buf instead of writing to a file;
// snapshots are produced on demand via buf.Snapshot.
func NewReplaySink(buf *replay.Buffer, log *zap.Logger) *Sink {
	return &Sink{replay: buf, log: log}
}

// Write dispatches pkt. Failures are logged and dropped — the original
// tool never retries a failed av_write_frame, and retrying here would
// desync the pts stream worse than dropping one packet.
func (s *Sink) Write(pkt *types.EncodedPacket, streamIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.replay != nil {
		s.replay.Push(*pkt, streamIndex)
		return
	}

	pkt.StreamIndex = streamIndex
	if err := s.muxer.WritePacket(pkt); err != nil {
		s.log.Warn("failed to write packet", zap.Int("stream_index", streamIndex), zap.Error(err))
	}
}
