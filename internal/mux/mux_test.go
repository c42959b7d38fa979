//go:build linux

package mux

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gsrec/gsrec/internal/types"
)

func TestMuxerWritesHeaderPacketsAndTrailer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")

	m, err := Open(path, "mp4", []StreamConfig{
		{CodecID: CodecIDH264, TimeBaseNum: 1, TimeBaseDen: 30, Width: 64, Height: 64},
		{CodecID: CodecIDAAC, TimeBaseNum: 1, TimeBaseDen: 48000, SampleRate: 48000, Channels: 2},
	})
	require.NoError(t, err)

	require.NoError(t, m.WriteHeader())

	require.NoError(t, m.WritePacket(&types.EncodedPacket{
		StreamIndex: 0,
		Data:        []byte{0x00, 0x00, 0x00, 0x01, 0x65},
		PTS:         0,
		DTS:         0,
		Keyframe:    true,
	}))
	require.NoError(t, m.WritePacket(&types.EncodedPacket{
		StreamIndex: 1,
		Data:        []byte{0xFF, 0xF1, 0x00, 0x00},
		PTS:         0,
		DTS:         0,
		Keyframe:    true,
	}))

	require.NoError(t, m.WriteTrailer())
	require.NoError(t, m.Close())
}

func TestMuxerRejectsOutOfRangeStreamIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.mp4")

	m, err := Open(path, "mp4", []StreamConfig{
		{CodecID: CodecIDH264, TimeBaseNum: 1, TimeBaseDen: 30, Width: 64, Height: 64},
	})
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.WriteHeader())

	err = m.WritePacket(&types.EncodedPacket{StreamIndex: 5, Data: []byte{0x01}})
	require.Error(t, err)
}
