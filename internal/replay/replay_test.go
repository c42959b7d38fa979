//go:build linux

package replay

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsrec/gsrec/internal/mux"
	"github.com/gsrec/gsrec/internal/types"
)

func fakeVideoPacket(pts int64, keyframe bool) types.EncodedPacket {
	return types.EncodedPacket{Data: []byte{0x00, 0x01, 0x02, 0x03}, PTS: pts, DTS: pts, Keyframe: keyframe}
}

func TestBufferEvictsPastWallClockWindow(t *testing.T) {
	buf := NewBuffer(1, 0) // 1s window, tiny so the test doesn't need to wait long
	buf.Push(fakeVideoPacket(0, true), 0)
	buf.Push(fakeVideoPacket(1, false), 0)

	time.Sleep(1100 * time.Millisecond)
	buf.Push(fakeVideoPacket(2, false), 0)

	// The buffer's eviction is a side effect of Push; the snapshot below
	// proves only the still-retained entries are written (the keyframe at
	// pts 0 was evicted, so Snapshot must fail — nothing left to anchor on).
	videoStream := mux.StreamConfig{CodecID: mux.CodecIDH264, TimeBaseNum: 1, TimeBaseDen: 60, Width: 64, Height: 64}
	_, err := buf.Snapshot(t.TempDir(), "mp4", videoStream, nil)
	assert.Error(t, err, "no keyframe left in the buffer after eviction")
}

func TestBufferSnapshotWritesReplayFile(t *testing.T) {
	buf := NewBuffer(60, 0)
	buf.Push(fakeVideoPacket(0, true), 0)
	buf.Push(fakeVideoPacket(1, false), 0)
	buf.Push(fakeVideoPacket(2, false), 0)

	dir := t.TempDir()
	videoStream := mux.StreamConfig{CodecID: mux.CodecIDH264, TimeBaseNum: 1, TimeBaseDen: 60, Width: 64, Height: 64}
	name, err := buf.Snapshot(dir, "mp4", videoStream, nil)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(name) || filepath.Dir(name) == dir)
	assert.Contains(t, name, "Replay_")
	assert.Contains(t, name, ".mp4")
}

func TestBufferSnapshotRejectsEmptyBuffer(t *testing.T) {
	buf := NewBuffer(60, 0)
	videoStream := mux.StreamConfig{CodecID: mux.CodecIDH264, TimeBaseNum: 1, TimeBaseDen: 60, Width: 64, Height: 64}
	_, err := buf.Snapshot(t.TempDir(), "mp4", videoStream, nil)
	assert.Error(t, err)
}
