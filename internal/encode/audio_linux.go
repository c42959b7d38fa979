//go:build linux

package encode

/*
#cgo pkg-config: libavcodec libavutil libswresample
#include <libavcodec/avcodec.h>
#include <libavutil/opt.h>
#include <libavutil/channel_layout.h>
#include <libswresample/swresample.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	AVCodecContext *ctx;
	SwrContext *swr;
	AVFrame *frame;
	AVPacket *pkt;
	int sample_rate;
	int frame_size;
} AudioEncoderHandle;

static AudioEncoderHandle *audio_encoder_init(int sample_rate, int channels, int bitrate_kbps) {
	AudioEncoderHandle *e = (AudioEncoderHandle*)calloc(1, sizeof(AudioEncoderHandle));
	if (!e) return NULL;

	const AVCodec *codec = avcodec_find_encoder(AV_CODEC_ID_AAC);
	if (!codec) { free(e); return NULL; }

	e->ctx = avcodec_alloc_context3(codec);
	if (!e->ctx) { free(e); return NULL; }

	e->ctx->sample_rate = sample_rate;
	e->ctx->bit_rate = bitrate_kbps * 1000;
	e->ctx->sample_fmt = AV_SAMPLE_FMT_FLTP;
	e->ctx->time_base = (AVRational){1, sample_rate};
#if LIBAVCODEC_VERSION_MAJOR < 60
	e->ctx->channels = channels;
	e->ctx->channel_layout = channels == 2 ? AV_CH_LAYOUT_STEREO : AV_CH_LAYOUT_MONO;
#else
	av_channel_layout_default(&e->ctx->ch_layout, channels);
#endif

	if (avcodec_open2(e->ctx, codec, NULL) < 0) {
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}

	e->sample_rate = sample_rate;
	e->frame_size = e->ctx->frame_size;

	e->swr = swr_alloc();
	if (!e->swr) {
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}
	av_opt_set_int(e->swr, "in_channel_layout", channels == 2 ? AV_CH_LAYOUT_STEREO : AV_CH_LAYOUT_MONO, 0);
	av_opt_set_int(e->swr, "out_channel_layout", channels == 2 ? AV_CH_LAYOUT_STEREO : AV_CH_LAYOUT_MONO, 0);
	av_opt_set_int(e->swr, "in_sample_rate", sample_rate, 0);
	av_opt_set_int(e->swr, "out_sample_rate", sample_rate, 0);
	av_opt_set_sample_fmt(e->swr, "in_sample_fmt", AV_SAMPLE_FMT_S16, 0);
	av_opt_set_sample_fmt(e->swr, "out_sample_fmt", AV_SAMPLE_FMT_FLTP, 0);
	if (swr_init(e->swr) < 0) {
		swr_free(&e->swr);
		avcodec_free_context(&e->ctx);
		free(e);
		return NULL;
	}

	e->frame = av_frame_alloc();
	e->frame->format = AV_SAMPLE_FMT_FLTP;
	e->frame->sample_rate = sample_rate;
#if LIBAVCODEC_VERSION_MAJOR < 60
	e->frame->channels = channels;
	e->frame->channel_layout = e->ctx->channel_layout;
#else
	av_channel_layout_copy(&e->frame->ch_layout, &e->ctx->ch_layout);
#endif
	e->frame->nb_samples = e->frame_size;
	av_frame_get_buffer(e->frame, 0);

	e->pkt = av_packet_alloc();
	return e;
}

// audio_encoder_encode resamples interleaved S16 PCM into the codec's FLTP
// frame (or zero-fills the frame when pcm is NULL) and submits it. nb_in_samples
// is the number of input frames (per channel) available in pcm.
static int audio_encoder_encode(AudioEncoderHandle *e, const int16_t *pcm, int nb_in_samples,
	int64_t pts, uint8_t **out_buf, int *out_size)
{
	*out_size = 0;
	if (av_frame_make_writable(e->frame) < 0) return -1;

	if (!pcm) {
		// FLTP silence is all-zero bytes; planar audio shares linesize[0].
		for (int i = 0; i < AV_NUM_DATA_POINTERS && e->frame->data[i]; i++)
			memset(e->frame->data[i], 0, e->frame->linesize[0]);
	} else {
		const uint8_t *in_planes[1] = { (const uint8_t*)pcm };
		int converted = swr_convert(e->swr, e->frame->data, e->frame->nb_samples, in_planes, nb_in_samples);
		if (converted < 0) return -1;
	}

	e->frame->pts = pts;
	int ret = avcodec_send_frame(e->ctx, e->frame);
	if (ret < 0) return -1;

	ret = avcodec_receive_packet(e->ctx, e->pkt);
	if (ret == AVERROR(EAGAIN) || ret == AVERROR_EOF) return 0;
	if (ret < 0) return -1;

	*out_buf = e->pkt->data;
	*out_size = e->pkt->size;
	return 0;
}

static void audio_encoder_unref(AudioEncoderHandle *e) { av_packet_unref(e->pkt); }

static void audio_encoder_destroy(AudioEncoderHandle *e) {
	if (!e) return;
	if (e->pkt) av_packet_free(&e->pkt);
	if (e->frame) av_frame_free(&e->frame);
	if (e->swr) swr_free(&e->swr);
	if (e->ctx) avcodec_free_context(&e->ctx);
	free(e);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/gsrec/gsrec/internal/types"
)

// AudioEncoder is the AAC encoder for one audio track, fed interleaved S16
// PCM (or silence) and resampled internally to the codec's native FLTP.
type AudioEncoder struct {
	e          *C.AudioEncoderHandle
	sampleRate int
	frameSize  int
}

// NewAudioEncoder opens an AAC encoder at the given sample rate/channel
// count/bitrate. The codec's frame_size (FrameSize) dictates how many
// interleaved sample-frames each Encode call expects.
func NewAudioEncoder(sampleRate, channels, bitrateKbps int) (*AudioEncoder, error) {
	e := C.audio_encoder_init(C.int(sampleRate), C.int(channels), C.int(bitrateKbps))
	if e == nil {
		return nil, fmt.Errorf("encode: failed to open AAC encoder")
	}
	return &AudioEncoder{e: e, sampleRate: int(e.sample_rate), frameSize: int(e.frame_size)}, nil
}

// Encode submits interleaved S16 PCM (nil submits a silence frame of
// FrameSize samples) at the given pts.
func (a *AudioEncoder) Encode(pcm []int16, pts int64) (*types.EncodedPacket, error) {
	var ptr *C.int16_t
	nbSamples := a.frameSize
	if pcm != nil {
		ptr = (*C.int16_t)(unsafe.Pointer(&pcm[0]))
		nbSamples = len(pcm) / channelsFromLen(pcm, a.frameSize)
	}

	var outBuf *C.uint8_t
	var outSize C.int
	if C.audio_encoder_encode(a.e, ptr, C.int(nbSamples), C.int64_t(pts), &outBuf, &outSize) != 0 {
		return nil, fmt.Errorf("encode: AAC submission failed")
	}
	if outSize == 0 {
		return nil, nil
	}

	data := C.GoBytes(unsafe.Pointer(outBuf), outSize)
	C.audio_encoder_unref(a.e)

	return &types.EncodedPacket{
		Data:     data,
		PTS:      pts,
		DTS:      pts,
		Keyframe: true,
	}, nil
}

func channelsFromLen(pcm []int16, frameSize int) int {
	if frameSize == 0 {
		return 1
	}
	c := len(pcm) / frameSize
	if c <= 0 {
		return 1
	}
	return c
}

func (a *AudioEncoder) FrameSize() int   { return a.frameSize }
func (a *AudioEncoder) SampleRate() int  { return a.sampleRate }
func (a *AudioEncoder) Close()           { C.audio_encoder_destroy(a.e) }
