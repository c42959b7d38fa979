//go:build linux

// Package encode wraps libavcodec/libswresample for NVENC hardware video
// encoding and AAC audio encoding. Software encoding is out of scope: every
// path here assumes an NVIDIA GPU and a CUDA-resident source frame.
package encode

/*
#cgo pkg-config: libavcodec libavutil
#cgo CFLAGS: -I${SRCDIR}/../cvendor
#include <libavcodec/avcodec.h>
#include <libavutil/opt.h>
#include <libavutil/hwcontext.h>
#include <libavutil/hwcontext_cuda.h>
#include <libavutil/pixdesc.h>
#include <stdlib.h>
#include <string.h>
#include "cuda_defs.h"

typedef struct {
	AVCodecContext *ctx;
	AVBufferRef *hw_device_ctx;
	AVBufferRef *hw_frames_ctx;
	AVFrame *frame;
	AVPacket *pkt;
	int width;
	int height;
	void *cuMemcpy2D_fn;
} VideoEncoderHandle;

// video_encoder_init opens an NVENC encoder with constant-QP rate control,
// the preset/QP table ported from the original tool's GPU-age heuristic,
// and the livestream-only low-delay/closed-GOP flags.
static VideoEncoderHandle *video_encoder_init(
	int width, int height, int fps, int gop, int qp,
	int is_hevc, int is_livestream, int hvc1_tag, int very_old_gpu,
	void *cuda_ctx_ptr, void *cuMemcpy2D_fn)
{
	VideoEncoderHandle *e = (VideoEncoderHandle*)calloc(1, sizeof(VideoEncoderHandle));
	if (!e) return NULL;
	e->width = width;
	e->height = height;
	e->cuMemcpy2D_fn = cuMemcpy2D_fn;

	e->hw_device_ctx = av_hwdevice_ctx_alloc(AV_HWDEVICE_TYPE_CUDA);
	if (!e->hw_device_ctx) { free(e); return NULL; }

	AVHWDeviceContext *device_ctx = (AVHWDeviceContext*)e->hw_device_ctx->data;
	AVCUDADeviceContext *cuda_device_ctx = (AVCUDADeviceContext*)device_ctx->hwctx;
	cuda_device_ctx->cuda_ctx = (CUcontext)cuda_ctx_ptr;
	cuda_device_ctx->internal = NULL;

	if (av_hwdevice_ctx_init(e->hw_device_ctx) < 0) {
		av_buffer_unref(&e->hw_device_ctx);
		free(e);
		return NULL;
	}

	e->hw_frames_ctx = av_hwframe_ctx_alloc(e->hw_device_ctx);
	if (!e->hw_frames_ctx) {
		av_buffer_unref(&e->hw_device_ctx);
		free(e);
		return NULL;
	}

	AVHWFramesContext *frames_ctx = (AVHWFramesContext*)e->hw_frames_ctx->data;
	frames_ctx->format = AV_PIX_FMT_CUDA;
	frames_ctx->sw_format = AV_PIX_FMT_NV12;
	frames_ctx->width = width;
	frames_ctx->height = height;
	frames_ctx->initial_pool_size = 1;

	if (av_hwframe_ctx_init(e->hw_frames_ctx) < 0) {
		av_buffer_unref(&e->hw_frames_ctx);
		av_buffer_unref(&e->hw_device_ctx);
		free(e);
		return NULL;
	}

	const AVCodec *codec = avcodec_find_encoder_by_name(is_hevc ? "hevc_nvenc" : "h264_nvenc");
	if (!codec) {
		av_buffer_unref(&e->hw_frames_ctx);
		av_buffer_unref(&e->hw_device_ctx);
		free(e);
		return NULL;
	}

	e->ctx = avcodec_alloc_context3(codec);
	if (!e->ctx) {
		av_buffer_unref(&e->hw_frames_ctx);
		av_buffer_unref(&e->hw_device_ctx);
		free(e);
		return NULL;
	}

	e->ctx->width = width;
	e->ctx->height = height;
	e->ctx->time_base = (AVRational){1, fps};
	e->ctx->framerate = (AVRational){fps, 1};
	e->ctx->pix_fmt = AV_PIX_FMT_CUDA;
	e->ctx->sw_pix_fmt = AV_PIX_FMT_NV12;
	e->ctx->gop_size = gop;
	e->ctx->max_b_frames = 0;
	e->ctx->hw_frames_ctx = av_buffer_ref(e->hw_frames_ctx);

	if (is_livestream) {
		e->ctx->flags |= AV_CODEC_FLAG_LOW_DELAY;
		e->ctx->flags |= AV_CODEC_FLAG_CLOSED_GOP;
	}
	if (hvc1_tag) {
		e->ctx->codec_tag = MKTAG('h','v','c','1');
	}

	int supports_p4 = 0, supports_p7 = 0;
	const AVOption *opt = NULL;
	while ((opt = av_opt_next(e->ctx->priv_data, opt))) {
		if (opt->type == AV_OPT_TYPE_CONST) {
			if (strcmp(opt->name, "p4") == 0) supports_p4 = 1;
			else if (strcmp(opt->name, "p7") == 0) supports_p7 = 1;
		}
	}

	AVDictionary *options = NULL;
	av_dict_set_int(&options, "qp", qp, 0);
	if (very_old_gpu)
		av_dict_set(&options, "preset", supports_p4 ? "p4" : "medium", 0);
	else
		av_dict_set(&options, "preset", supports_p7 ? "p7" : "slow", 0);
	av_dict_set(&options, "tune", "hq", 0);
	av_dict_set(&options, "rc", "constqp", 0);

	int ret = avcodec_open2(e->ctx, codec, &options);
	av_dict_free(&options);
	if (ret < 0) {
		avcodec_free_context(&e->ctx);
		av_buffer_unref(&e->hw_frames_ctx);
		av_buffer_unref(&e->hw_device_ctx);
		free(e);
		return NULL;
	}

	e->frame = av_frame_alloc();
	e->pkt = av_packet_alloc();
	return e;
}

typedef struct {
	size_t srcXInBytes, srcY;
	int srcMemoryType;
	const void *srcHost;
	CUdeviceptr srcDevice;
	void *srcArray;
	size_t srcPitch;
	size_t dstXInBytes, dstY;
	int dstMemoryType;
	void *dstHost;
	CUdeviceptr dstDevice;
	void *dstArray;
	size_t dstPitch;
	size_t WidthInBytes, Height;
} VIDEO_CUDA_MEMCPY2D;

// video_encoder_encode_device copies an NV12 frame from a raw CUDA device
// pointer (the NvFBC display path) into the NVENC-owned hw frame.
static int video_encoder_encode_device(VideoEncoderHandle *e, unsigned long long cuda_ptr, int stride,
	int64_t pts, uint8_t **out_buf, int *out_size, int *is_key)
{
	*out_size = 0;
	av_frame_unref(e->frame);
	if (av_hwframe_get_buffer(e->hw_frames_ctx, e->frame, 0) < 0) return -1;

	if (!e->cuMemcpy2D_fn) return -1;
	typedef CUresult (*PFN)(const VIDEO_CUDA_MEMCPY2D *);
	PFN fn = (PFN)e->cuMemcpy2D_fn;

	size_t y_size = (size_t)stride * e->height;
	VIDEO_CUDA_MEMCPY2D cpy = {0};
	cpy.srcMemoryType = CU_MEMORYTYPE_DEVICE;
	cpy.srcDevice = (CUdeviceptr)cuda_ptr;
	cpy.srcPitch = stride;
	cpy.dstMemoryType = CU_MEMORYTYPE_DEVICE;
	cpy.dstDevice = (CUdeviceptr)e->frame->data[0];
	cpy.dstPitch = e->frame->linesize[0];
	cpy.WidthInBytes = e->width;
	cpy.Height = e->height;
	if (fn(&cpy) != CUDA_SUCCESS) return -1;

	VIDEO_CUDA_MEMCPY2D cpy_uv = {0};
	cpy_uv.srcMemoryType = CU_MEMORYTYPE_DEVICE;
	cpy_uv.srcDevice = (CUdeviceptr)cuda_ptr + y_size;
	cpy_uv.srcPitch = stride;
	cpy_uv.dstMemoryType = CU_MEMORYTYPE_DEVICE;
	cpy_uv.dstDevice = (CUdeviceptr)e->frame->data[1];
	cpy_uv.dstPitch = e->frame->linesize[1];
	cpy_uv.WidthInBytes = e->width;
	cpy_uv.Height = e->height / 2;
	if (fn(&cpy_uv) != CUDA_SUCCESS) return -1;

	e->frame->pts = pts;
	int ret = avcodec_send_frame(e->ctx, e->frame);
	if (ret < 0) return -1;
	ret = avcodec_receive_packet(e->ctx, e->pkt);
	if (ret == AVERROR(EAGAIN) || ret == AVERROR_EOF) return 0;
	if (ret < 0) return -1;

	*out_buf = e->pkt->data;
	*out_size = e->pkt->size;
	*is_key = (e->pkt->flags & AV_PKT_FLAG_KEY) ? 1 : 0;
	return 0;
}

// video_encoder_clear_black blanks the full NV12 destination frame: Y to 0,
// U/V to 128. Done one row at a time since only the flat cuMemsetD8 driver
// entry point is resolved (no cuMemsetD2D8).
static void video_encoder_clear_black(VideoEncoderHandle *e, void *cuMemsetD8_fn) {
	if (!cuMemsetD8_fn) return;
	typedef CUresult (*PFN_SET)(CUdeviceptr, unsigned char, size_t);
	PFN_SET setfn = (PFN_SET)cuMemsetD8_fn;

	for (int row = 0; row < e->height; row++) {
		setfn((CUdeviceptr)e->frame->data[0] + (size_t)row * e->frame->linesize[0], 0, e->width);
	}
	for (int row = 0; row < e->height / 2; row++) {
		setfn((CUdeviceptr)e->frame->data[1] + (size_t)row * e->frame->linesize[1], 128, e->width);
	}
}

// video_encoder_encode_array copies from a CUDA-graphics-interop array (the
// window-capture path's RGB texture) into the NVENC hw frame's NV12 Y plane.
// Only the [srcX, srcX+copyW) x [srcY, srcY+copyH) sub-rectangle of the
// array is copied, landing at the destination's origin; when clear is set
// the destination is blanked to black first so any uncovered area (a
// resize shrink or an off-screen clamp) reads as black, not stale or
// out-of-bounds data.
static int video_encoder_encode_array(VideoEncoderHandle *e, void *cuda_array,
	int srcX, int srcY, int copyW, int copyH, int clear, void *cuMemsetD8_fn,
	int64_t pts, uint8_t **out_buf, int *out_size, int *is_key)
{
	*out_size = 0;
	av_frame_unref(e->frame);
	if (av_hwframe_get_buffer(e->hw_frames_ctx, e->frame, 0) < 0) return -1;

	if (!e->cuMemcpy2D_fn) return -1;
	typedef CUresult (*PFN)(const VIDEO_CUDA_MEMCPY2D *);
	PFN fn = (PFN)e->cuMemcpy2D_fn;

	if (clear) video_encoder_clear_black(e, cuMemsetD8_fn);

	if (copyW > e->width) copyW = e->width;
	if (copyH > e->height) copyH = e->height;

	if (copyW > 0 && copyH > 0) {
		VIDEO_CUDA_MEMCPY2D cpy = {0};
		cpy.srcMemoryType = CU_MEMORYTYPE_ARRAY;
		cpy.srcArray = cuda_array;
		cpy.srcXInBytes = srcX;
		cpy.srcY = srcY;
		cpy.dstMemoryType = CU_MEMORYTYPE_DEVICE;
		cpy.dstDevice = (CUdeviceptr)e->frame->data[0];
		cpy.dstPitch = e->frame->linesize[0];
		cpy.WidthInBytes = copyW;
		cpy.Height = copyH;
		if (fn(&cpy) != CUDA_SUCCESS) return -1;
	}

	e->frame->pts = pts;
	int ret = avcodec_send_frame(e->ctx, e->frame);
	if (ret < 0) return -1;
	ret = avcodec_receive_packet(e->ctx, e->pkt);
	if (ret == AVERROR(EAGAIN) || ret == AVERROR_EOF) return 0;
	if (ret < 0) return -1;

	*out_buf = e->pkt->data;
	*out_size = e->pkt->size;
	*is_key = (e->pkt->flags & AV_PKT_FLAG_KEY) ? 1 : 0;
	return 0;
}

static void video_encoder_unref(VideoEncoderHandle *e) { av_packet_unref(e->pkt); }

static void video_encoder_destroy(VideoEncoderHandle *e) {
	if (!e) return;
	if (e->pkt) av_packet_free(&e->pkt);
	if (e->frame) av_frame_free(&e->frame);
	if (e->ctx) avcodec_free_context(&e->ctx);
	if (e->hw_frames_ctx) av_buffer_unref(&e->hw_frames_ctx);
	if (e->hw_device_ctx) av_buffer_unref(&e->hw_device_ctx);
	free(e);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/gsrec/gsrec/internal/types"
)

// QualityTier is one of the four CLI `-q` values.
type QualityTier int

const (
	QualityMedium QualityTier = iota
	QualityHigh
	QualityVeryHigh
	QualityUltra
)

// qpTable maps quality tier to constant QP, indexed [veryOldGPU][tier].
var qpTable = [2][4]int{
	{40, 35, 30, 24}, // modern
	{37, 32, 27, 21}, // pre-Maxwell
}

// QP returns the constant-QP value for a quality tier, per the GPU-age
// branch (pre-Maxwell GPUs use a lower QP to keep the same preset usable).
func QP(tier QualityTier, veryOldGPU bool) int {
	row := 0
	if veryOldGPU {
		row = 1
	}
	return qpTable[row][int(tier)]
}

// VideoEncoderConfig configures NVENC encoder construction.
type VideoEncoderConfig struct {
	Width, Height int
	FPS           int
	GOP           int // 0 means 2*FPS
	Quality       QualityTier
	HEVC          bool
	Livestream    bool
	HVC1Tag       bool // codec tag for H.265 in mp4
	VeryOldGPU    bool
	CUDAContext   unsafe.Pointer
	CuMemcpy2D    unsafe.Pointer
	CuMemsetD8    unsafe.Pointer // window path only; nil disables black-clear
}

// VideoEncoder is the NVENC hardware encoder. Zero B-frames; constant-QP
// rate control; GOP defaults to 2x the frame rate.
type VideoEncoder struct {
	e       *C.VideoEncoderHandle
	clearFn unsafe.Pointer
}

// NewVideoEncoder opens NVENC with the codec/dims/timebase fixed for the
// encoder's lifetime; resize events never reopen it.
func NewVideoEncoder(cfg VideoEncoderConfig) (*VideoEncoder, error) {
	gop := cfg.GOP
	if gop <= 0 {
		gop = cfg.FPS * 2
	}
	qp := QP(cfg.Quality, cfg.VeryOldGPU)

	isHEVC := 0
	if cfg.HEVC {
		isHEVC = 1
	}
	isLive := 0
	if cfg.Livestream {
		isLive = 1
	}
	hvc1 := 0
	if cfg.HVC1Tag {
		hvc1 = 1
	}
	veryOld := 0
	if cfg.VeryOldGPU {
		veryOld = 1
	}

	e := C.video_encoder_init(
		C.int(cfg.Width), C.int(cfg.Height), C.int(cfg.FPS), C.int(gop), C.int(qp),
		C.int(isHEVC), C.int(isLive), C.int(hvc1), C.int(veryOld),
		cfg.CUDAContext, cfg.CuMemcpy2D)
	if e == nil {
		codecName := "h264_nvenc"
		if cfg.HEVC {
			codecName = "hevc_nvenc"
		}
		return nil, fmt.Errorf("encode: failed to open NVENC %s encoder", codecName)
	}
	return &VideoEncoder{e: e, clearFn: cfg.CuMemsetD8}, nil
}

// Encode submits one frame at the given explicit pts. Frames from the
// display path are raw CUDA device pointers (NV12); frames from the window
// path are CUDA-interop arrays (RGB). A nil packet with a nil error means
// NVENC buffered the submission without yet emitting output.
func (v *VideoEncoder) Encode(frame *types.Frame, pts int64, keyframe bool) (*types.EncodedPacket, error) {
	if !frame.IsCUDA {
		return nil, fmt.Errorf("encode: video encoder requires a CUDA-resident frame")
	}

	var outBuf *C.uint8_t
	var outSize C.int
	var isKey C.int
	var ret C.int

	if frame.IsCUDAArray {
		clear := C.int(0)
		if frame.Clear {
			clear = 1
		}
		ret = C.video_encoder_encode_array(v.e, frame.Ptr,
			C.int(frame.SrcX), C.int(frame.SrcY), C.int(frame.SrcWidth), C.int(frame.SrcHeight),
			clear, v.clearFn, C.int64_t(pts), &outBuf, &outSize, &isKey)
	} else {
		cudaPtr := C.ulonglong(uintptr(frame.Ptr))
		ret = C.video_encoder_encode_device(v.e, cudaPtr, C.int(frame.Stride), C.int64_t(pts), &outBuf, &outSize, &isKey)
	}

	if ret != 0 {
		return nil, fmt.Errorf("encode: NVENC submission failed")
	}
	if outSize == 0 {
		return nil, nil
	}

	data := C.GoBytes(unsafe.Pointer(outBuf), outSize)
	C.video_encoder_unref(v.e)

	return &types.EncodedPacket{
		Data:        data,
		StreamIndex: 0,
		PTS:         pts,
		DTS:         pts,
		Keyframe:    isKey != 0,
	}, nil
}

func (v *VideoEncoder) Close() {
	C.video_encoder_destroy(v.e)
}

// DefaultCodec implements the codec default-selection rule: H.265 unless
// fps > 60 (H.264 gives better throughput at high frame rates) or the
// container is flv (H.264-only).
func DefaultCodec(fps int, container string) (hevc bool) {
	if fps > 60 || container == "flv" {
		return false
	}
	return true
}
