package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWindowModes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		window     string
		wantWindow bool
		wantDirect bool
		wantErr    bool
	}{
		{name: "screen", window: "screen", wantWindow: false},
		{name: "screen-direct", window: "screen-direct", wantWindow: false, wantDirect: true},
		{name: "hex id", window: "0x1234567", wantWindow: true},
		{name: "decimal id", window: "1234567", wantWindow: true},
		{name: "garbage", window: "not-a-window", wantErr: true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Window: c.window, FPS: 60, Output: "/tmp/out.mp4"}
			err := cfg.Validate()
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.wantWindow, cfg.IsWindowMode)
			assert.Equal(t, c.wantDirect, cfg.IsScreenDirect)
		})
	}
}

func TestValidateDefaultsQualityAndCodec(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "screen", FPS: 30, Output: "/tmp/out.mp4"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, QualityVeryHigh, cfg.Quality)
	assert.Equal(t, CodecAuto, cfg.Codec)
}

func TestValidateRejectsSizeOutsideWindowMode(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "screen", FPS: 30, Size: "800x600", Output: "/tmp/out.mp4"}
	assert.Error(t, cfg.Validate())
}

func TestValidateParsesSize(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "0x1", FPS: 30, Size: "800x600", Output: "/tmp/out.mp4"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 800, cfg.RecordWidth)
	assert.Equal(t, 600, cfg.RecordHeight)
}

func TestValidateReplayBounds(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "screen", FPS: 30, ReplaySeconds: 4, Output: "/tmp/replays"}
	assert.Error(t, cfg.Validate(), "below the 5s floor")

	cfg = &Config{Window: "screen", FPS: 30, ReplaySeconds: 1201, Output: "/tmp/replays"}
	assert.Error(t, cfg.Validate(), "above the 1200s ceiling")

	cfg = &Config{Window: "screen", FPS: 30, ReplaySeconds: 10}
	assert.Error(t, cfg.Validate(), "-r requires -o")

	cfg = &Config{Window: "screen", FPS: 30, ReplaySeconds: 10, Output: "/tmp/replays"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15, cfg.BufferSecondsWithPadding())
}

func TestValidateDefaultsOutputToStdout(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "0xDEAD", FPS: 30}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "/dev/stdout", cfg.Output)
}

func TestValidateLivestreamDetection(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "screen", FPS: 60, Output: "rtmp://localhost/live/x"}
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsLivestream)
	assert.Equal(t, "flv", cfg.Container)
}

func TestValidateFlvForcesH264(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "screen", FPS: 60, Codec: CodecH265, Output: "rtmp://localhost/live/x"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, CodecH264, cfg.Codec, "flv carries H.264 only")
	assert.True(t, cfg.CodecForced)
}

func TestValidateContainerInference(t *testing.T) {
	t.Parallel()

	cases := []struct {
		output string
		want   string
	}{
		{output: "/tmp/out.mp4", want: "mp4"},
		{output: "/tmp/out.mkv", want: "matroska"},
		{output: "/tmp/out.flv", want: "flv"},
		{output: "rtmp://localhost/live/x", want: "flv"},
	}
	for _, c := range cases {
		cfg := &Config{Window: "screen", FPS: 30, Output: c.output}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, c.want, cfg.Container)
	}
}

func TestValidateMKVAliasNormalizesToMatroska(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "screen", FPS: 30, Container: "mkv", Output: "/tmp/out.mkv"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "matroska", cfg.Container)
}

func TestWindowIDParsing(t *testing.T) {
	t.Parallel()

	cfg := &Config{Window: "0x1234567"}
	id, err := cfg.WindowID()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1234567), id)
}
