//go:build linux

// Package mux writes an encoded packet stream into a container file or a
// network output (RTMP/HTTP) via libavformat. One Muxer per output file:
// the live pipeline owns one, and each replay snapshot opens its own.
package mux

/*
#cgo pkg-config: libavformat libavcodec libavutil
#include <libavformat/avformat.h>
#include <libavcodec/avcodec.h>
#include <libavutil/avutil.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
	AVFormatContext *fmt_ctx;
	AVStream **streams;
	int nb_streams;
} MuxerHandle;

static MuxerHandle *mux_open(const char *path, const char *container_format) {
	MuxerHandle *m = (MuxerHandle*)calloc(1, sizeof(MuxerHandle));
	if (!m) return NULL;

	if (avformat_alloc_output_context2(&m->fmt_ctx, NULL, container_format, path) < 0 || !m->fmt_ctx) {
		free(m);
		return NULL;
	}
	m->fmt_ctx->flags |= AVFMT_FLAG_GENPTS;

	if (!(m->fmt_ctx->oformat->flags & AVFMT_NOFILE)) {
		if (avio_open(&m->fmt_ctx->pb, path, AVIO_FLAG_WRITE) < 0) {
			avformat_free_context(m->fmt_ctx);
			free(m);
			return NULL;
		}
	}
	return m;
}

// mux_add_stream registers one output stream. timebase_den/num describe the
// producing encoder's time_base; codec_id/width/height/sample_rate/channels
// are zero for whichever don't apply to this stream's media type.
static AVStream *mux_add_stream(MuxerHandle *m, int codec_id, int tb_num, int tb_den,
	int width, int height, int sample_rate, int channels, int codec_tag, int is_global_header)
{
	AVStream *stream = avformat_new_stream(m->fmt_ctx, NULL);
	if (!stream) return NULL;

	stream->time_base = (AVRational){tb_num, tb_den};
	stream->codecpar->codec_id = (enum AVCodecID)codec_id;
	if (width > 0) {
		stream->codecpar->codec_type = AVMEDIA_TYPE_VIDEO;
		stream->codecpar->width = width;
		stream->codecpar->height = height;
	} else {
		stream->codecpar->codec_type = AVMEDIA_TYPE_AUDIO;
		stream->codecpar->sample_rate = sample_rate;
#if LIBAVCODEC_VERSION_MAJOR < 60
		stream->codecpar->channels = channels;
#else
		av_channel_layout_default(&stream->codecpar->ch_layout, channels);
#endif
		stream->codecpar->format = AV_SAMPLE_FMT_FLTP;
	}
	if (codec_tag) stream->codecpar->codec_tag = codec_tag;
	if (is_global_header) m->fmt_ctx->flags |= AVFMT_FLAG_GENPTS;

	m->nb_streams++;
	m->streams = (AVStream**)realloc(m->streams, sizeof(AVStream*) * m->nb_streams);
	m->streams[m->nb_streams - 1] = stream;
	return stream;
}

static int mux_write_header(MuxerHandle *m) {
	return avformat_write_header(m->fmt_ctx, NULL);
}

static int mux_write_packet(MuxerHandle *m, int stream_index, const uint8_t *data, int size,
	int64_t pts, int64_t dts, int keyframe, int src_tb_num, int src_tb_den)
{
	if (stream_index < 0 || stream_index >= m->nb_streams) return -1;
	AVStream *stream = m->streams[stream_index];

	AVPacket *pkt = av_packet_alloc();
	if (!pkt) return -1;
	if (av_new_packet(pkt, size) < 0) {
		av_packet_free(&pkt);
		return -1;
	}
	memcpy(pkt->data, data, size);
	pkt->pts = pts;
	pkt->dts = dts;
	pkt->stream_index = stream->index;
	if (keyframe) pkt->flags |= AV_PKT_FLAG_KEY;

	av_packet_rescale_ts(pkt, (AVRational){src_tb_num, src_tb_den}, stream->time_base);

	int ret = av_write_frame(m->fmt_ctx, pkt);
	av_packet_free(&pkt);
	return ret;
}

static int mux_write_trailer(MuxerHandle *m) {
	return av_write_trailer(m->fmt_ctx);
}

static void mux_close(MuxerHandle *m) {
	if (!m) return;
	if (m->fmt_ctx) {
		if (m->fmt_ctx->pb && !(m->fmt_ctx->oformat->flags & AVFMT_NOFILE))
			avio_closep(&m->fmt_ctx->pb);
		avformat_free_context(m->fmt_ctx);
	}
	free(m->streams);
	free(m);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/gsrec/gsrec/internal/types"
)

// Codec IDs accepted by StreamConfig.CodecID, re-exported from libavcodec so
// callers outside this package never need their own cgo import just to open
// a Muxer.
const (
	CodecIDH264 = int(C.AV_CODEC_ID_H264)
	CodecIDHEVC = int(C.AV_CODEC_ID_HEVC)
	CodecIDAAC  = int(C.AV_CODEC_ID_AAC)
)

// StreamConfig describes one output stream's codec parameters at mux-open
// time. Video streams set Width/Height; audio streams set SampleRate/
// Channels. CodecTag is only needed for HEVC-in-mp4 (hvc1).
type StreamConfig struct {
	CodecID     int
	TimeBaseNum int
	TimeBaseDen int
	Width       int
	Height      int
	SampleRate  int
	Channels    int
	CodecTag    uint32
}

// Muxer writes to one output path (file path, or an rtmp(s)://, http(s)://
// URL for livestreaming — libavformat's protocol handlers pick the
// transport from the URL scheme, nothing here differs by output kind).
type Muxer struct {
	m       *C.MuxerHandle
	streams []StreamConfig
}

// Open allocates an output context for path using containerFormat (mp4,
// matroska, flv) and registers one stream per entry in streams, in order —
// the EncodedPacket.StreamIndex passed to WritePacket must match
// this order (video first, then audio tracks).
func Open(path, containerFormat string, streams []StreamConfig) (*Muxer, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	cFormat := C.CString(containerFormat)
	defer C.free(unsafe.Pointer(cFormat))

	m := C.mux_open(cPath, cFormat)
	if m == nil {
		return nil, fmt.Errorf("mux: failed to open output %q (format %q)", path, containerFormat)
	}

	for _, s := range streams {
		tag := C.int(0)
		if s.CodecTag != 0 {
			tag = C.int(s.CodecTag)
		}
		st := C.mux_add_stream(m, C.int(s.CodecID), C.int(s.TimeBaseNum), C.int(s.TimeBaseDen),
			C.int(s.Width), C.int(s.Height), C.int(s.SampleRate), C.int(s.Channels), tag, 1)
		if st == nil {
			C.mux_close(m)
			return nil, fmt.Errorf("mux: failed to add stream to %q", path)
		}
	}

	return &Muxer{m: m, streams: streams}, nil
}

func (mx *Muxer) WriteHeader() error {
	if C.mux_write_header(mx.m) < 0 {
		return fmt.Errorf("mux: failed to write container header")
	}
	return nil
}

// WritePacket writes pkt to the stream at pkt.StreamIndex. The packet's
// PTS/DTS are in TimeBaseNum/TimeBaseDen (the producing encoder's time
// base); WritePacket rescales to the container stream's time base.
func (mx *Muxer) WritePacket(pkt *types.EncodedPacket) error {
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(mx.streams) {
		return fmt.Errorf("mux: packet stream index %d out of range", pkt.StreamIndex)
	}
	cfg := mx.streams[pkt.StreamIndex]

	keyframe := C.int(0)
	if pkt.Keyframe {
		keyframe = 1
	}

	ret := C.mux_write_packet(mx.m, C.int(pkt.StreamIndex),
		(*C.uint8_t)(unsafe.Pointer(&pkt.Data[0])), C.int(len(pkt.Data)),
		C.int64_t(pkt.PTS), C.int64_t(pkt.DTS), keyframe,
		C.int(cfg.TimeBaseNum), C.int(cfg.TimeBaseDen))
	if ret < 0 {
		return fmt.Errorf("mux: failed to write packet to stream %d", pkt.StreamIndex)
	}
	return nil
}

func (mx *Muxer) WriteTrailer() error {
	if C.mux_write_trailer(mx.m) < 0 {
		return fmt.Errorf("mux: failed to write container trailer")
	}
	return nil
}

func (mx *Muxer) Close() error {
	C.mux_close(mx.m)
	return nil
}
