//go:build linux

package capture

/*
#cgo CFLAGS: -I${SRCDIR}/../cvendor
#include <stdlib.h>
#include <string.h>
#include <dlfcn.h>
#include <stdio.h>
#include <time.h>
#include "cuda_defs.h"
#include "nvfbc_defs.h"

// ---------------------------------------------------------------------------
// NvFBC TOCUDA full-display capturer: pulls a frame into the CUDA device
// pointer NvFBC manages internally (single-buffered; NvFBC double-buffers
// on its own), replacing the destination Frame's data pointer rather than
// copying into it.
// ---------------------------------------------------------------------------

static PFN_cuCtxSetCurrent fn_cuCtxSetCurrent;
static PFN_cuMemcpyDtoH    fn_cuMemcpyDtoH;
static void               *fn_cuMemcpy2D_ptr;

typedef struct {
	void *cuda_lib;
	void *nvfbc_lib;
	NVFBC_API_FUNCTION_LIST fn;
	NVFBC_SESSION_HANDLE session;
	CUcontext cuda_ctx;   // shared, not owned
	CUdeviceptr frame_ptr;
	CUdeviceptr grab_ptr;
	NVFBC_FRAME_GRAB_INFO grab_info;
	int width;
	int height;
	int stride;
} NvFBCCapturer;

static int nvfbc_resolve_cuda_symbols(void *cuda_lib) {
	fn_cuCtxSetCurrent = (PFN_cuCtxSetCurrent)dlsym(cuda_lib, "cuCtxSetCurrent");
	fn_cuMemcpyDtoH = (PFN_cuMemcpyDtoH)dlsym(cuda_lib, "cuMemcpyDtoH_v2");
	if (!fn_cuMemcpyDtoH) fn_cuMemcpyDtoH = (PFN_cuMemcpyDtoH)dlsym(cuda_lib, "cuMemcpyDtoH");
	fn_cuMemcpy2D_ptr = dlsym(cuda_lib, "cuMemcpy2D_v2");
	if (!fn_cuMemcpy2D_ptr) fn_cuMemcpy2D_ptr = dlsym(cuda_lib, "cuMemcpy2D");
	return (fn_cuCtxSetCurrent && fn_cuMemcpyDtoH) ? 0 : -1;
}

static void nvfbc_log_error(NvFBCCapturer *c, const char *context) {
	if (c->fn.nvFBCGetLastErrorStr) {
		const char *err = c->fn.nvFBCGetLastErrorStr(c->session);
		if (err && err[0]) {
			fprintf(stderr, "nvfbc: %s: %s\n", context, err);
			return;
		}
	}
	fprintf(stderr, "nvfbc: %s\n", context);
}

static void nvfbc_cleanup(NvFBCCapturer *c, int has_session, int has_handle) {
	if (has_session && c->fn.nvFBCDestroyCaptureSession) {
		NVFBC_DESTROY_CAPTURE_SESSION_PARAMS p;
		memset(&p, 0, sizeof(p));
		p.dwVersion = NVFBC_DESTROY_CAPTURE_SESSION_PARAMS_VER;
		c->fn.nvFBCDestroyCaptureSession(c->session, &p);
	}
	if (has_handle && c->fn.nvFBCDestroyHandle) {
		NVFBC_DESTROY_HANDLE_PARAMS p;
		memset(&p, 0, sizeof(p));
		p.dwVersion = NVFBC_DESTROY_HANDLE_PARAMS_VER;
		c->fn.nvFBCDestroyHandle(c->session, &p);
	}
	if (c->nvfbc_lib) dlclose(c->nvfbc_lib);
	free(c);
}

static NvFBCCapturer *nvfbc_init(CUcontext cuda_ctx, int fps) {
	NvFBCCapturer *c = (NvFBCCapturer*)calloc(1, sizeof(NvFBCCapturer));
	if (!c) return NULL;
	c->cuda_ctx = cuda_ctx;

	// libcuda.so.1 is already loaded by the gpu package; dlopen is
	// refcounted and returns the same handle with the same process-wide
	// symbol table, so the driver API pointers stay consistent.
	c->cuda_lib = dlopen("libcuda.so.1", RTLD_LAZY);
	if (!c->cuda_lib) c->cuda_lib = dlopen("libcuda.so", RTLD_LAZY);
	if (!c->cuda_lib) {
		fprintf(stderr, "nvfbc: failed to load libcuda.so: %s\n", dlerror());
		free(c);
		return NULL;
	}

	if (nvfbc_resolve_cuda_symbols(c->cuda_lib) != 0) {
		fprintf(stderr, "nvfbc: failed to resolve required CUDA symbols\n");
		dlclose(c->cuda_lib);
		free(c);
		return NULL;
	}

	c->nvfbc_lib = dlopen("libnvidia-fbc.so.1", RTLD_LAZY);
	if (!c->nvfbc_lib) {
		fprintf(stderr, "nvfbc: failed to load libnvidia-fbc.so.1: %s\n", dlerror());
		free(c);
		return NULL;
	}

	PFN_NvFBCCreateInstance createInstance =
		(PFN_NvFBCCreateInstance)dlsym(c->nvfbc_lib, "NvFBCCreateInstance");
	if (!createInstance) {
		fprintf(stderr, "nvfbc: NvFBCCreateInstance not found\n");
		nvfbc_cleanup(c, 0, 0);
		return NULL;
	}

	memset(&c->fn, 0, sizeof(c->fn));
	c->fn.dwVersion = NVFBC_VERSION;
	if (createInstance(&c->fn) != NVFBC_SUCCESS) {
		fprintf(stderr, "nvfbc: NvFBCCreateInstance failed\n");
		nvfbc_cleanup(c, 0, 0);
		return NULL;
	}

	NVFBC_CREATE_HANDLE_PARAMS handleParams;
	memset(&handleParams, 0, sizeof(handleParams));
	handleParams.dwVersion = NVFBC_CREATE_HANDLE_PARAMS_VER;
	if (c->fn.nvFBCCreateHandle(&c->session, &handleParams) != NVFBC_SUCCESS) {
		nvfbc_log_error(c, "NvFBCCreateHandle");
		nvfbc_cleanup(c, 0, 0);
		return NULL;
	}

	NVFBC_GET_STATUS_PARAMS statusParams;
	memset(&statusParams, 0, sizeof(statusParams));
	statusParams.dwVersion = NVFBC_GET_STATUS_PARAMS_VER;
	if (c->fn.nvFBCGetStatus(c->session, &statusParams) != NVFBC_SUCCESS) {
		nvfbc_log_error(c, "NvFBCGetStatus");
		nvfbc_cleanup(c, 0, 1);
		return NULL;
	}
	if (!statusParams.bIsCapturePossible) {
		fprintf(stderr, "nvfbc: capture not possible on this GPU\n");
		nvfbc_cleanup(c, 0, 1);
		return NULL;
	}
	c->width = statusParams.screenSize.w;
	c->height = statusParams.screenSize.h;

	NVFBC_CREATE_CAPTURE_SESSION_PARAMS captureParams;
	memset(&captureParams, 0, sizeof(captureParams));
	captureParams.dwVersion = NVFBC_CREATE_CAPTURE_SESSION_PARAMS_VER;
	captureParams.eCaptureType = NVFBC_CAPTURE_SHARED_CUDA;
	captureParams.eTrackingType = NVFBC_TRACKING_DEFAULT;
	captureParams.bWithCursor = NVFBC_TRUE;
	captureParams.dwSamplingRateMs = fps > 0 ? 1000 / fps : 33;
	captureParams.bPushModel = NVFBC_FALSE;
	if (c->fn.nvFBCCreateCaptureSession(c->session, &captureParams) != NVFBC_SUCCESS) {
		nvfbc_log_error(c, "NvFBCCreateCaptureSession");
		nvfbc_cleanup(c, 0, 1);
		return NULL;
	}

	NVFBC_TOCUDA_SETUP_PARAMS setupParams;
	memset(&setupParams, 0, sizeof(setupParams));
	setupParams.dwVersion = NVFBC_TOCUDA_SETUP_PARAMS_VER;
	setupParams.eBufferFormat = NVFBC_BUFFER_FORMAT_NV12;
	if (c->fn.nvFBCToCudaSetUp(c->session, &setupParams) != NVFBC_SUCCESS) {
		nvfbc_log_error(c, "NvFBCToCudaSetUp");
		nvfbc_cleanup(c, 1, 1);
		return NULL;
	}

	c->stride = (c->width + 255) & ~255;
	fprintf(stderr, "capture: NvFBC initialized %dx%d (display, TOCUDA)\n", c->width, c->height);
	return c;
}

// Returns 0=new frame, 1=reused last frame, -1=unrecoverable error.
static int nvfbc_grab(NvFBCCapturer *c) {
	c->grab_ptr = 0;

	NVFBC_TOCUDA_GRAB_FRAME_PARAMS grabParams;
	memset(&grabParams, 0, sizeof(grabParams));
	grabParams.dwVersion = NVFBC_TOCUDA_GRAB_FRAME_PARAMS_VER;
	grabParams.dwFlags = NVFBC_TOCUDA_GRAB_FLAGS_FORCE_REFRESH | NVFBC_TOCUDA_GRAB_FLAGS_NOWAIT;
	grabParams.pCUDADeviceBuffer = (void*)&c->grab_ptr;
	grabParams.pFrameGrabInfo = &c->grab_info;
	grabParams.dwTimeoutMs = 0;

	NVFBCSTATUS status = c->fn.nvFBCToCudaGrabFrame(c->session, &grabParams);

	// NvFBC manages its own CUDA context internally during the grab; restore
	// ours for the encoder immediately afterwards.
	if (fn_cuCtxSetCurrent) fn_cuCtxSetCurrent(c->cuda_ctx);

	if (status != NVFBC_SUCCESS) {
		if (c->frame_ptr) return 1;
		return -1;
	}

	c->frame_ptr = c->grab_ptr;
	c->width = c->grab_info.dwWidth;
	c->height = c->grab_info.dwHeight;
	if (c->grab_info.dwByteSize > 0 && c->height > 0) {
		c->stride = c->grab_info.dwByteSize / (c->height * 3 / 2);
	} else {
		c->stride = (c->width + 255) & ~255;
	}
	return 0;
}

static void *nvfbc_frame_ptr(NvFBCCapturer *c) {
	return (void*)(uintptr_t)c->frame_ptr;
}

static void nvfbc_destroy(NvFBCCapturer *c) {
	if (!c) return;
	if (c->fn.nvFBCDestroyCaptureSession) {
		NVFBC_DESTROY_CAPTURE_SESSION_PARAMS p;
		memset(&p, 0, sizeof(p));
		p.dwVersion = NVFBC_DESTROY_CAPTURE_SESSION_PARAMS_VER;
		c->fn.nvFBCDestroyCaptureSession(c->session, &p);
	}
	if (c->fn.nvFBCDestroyHandle) {
		NVFBC_DESTROY_HANDLE_PARAMS p;
		memset(&p, 0, sizeof(p));
		p.dwVersion = NVFBC_DESTROY_HANDLE_PARAMS_VER;
		c->fn.nvFBCDestroyHandle(c->session, &p);
	}
	// Do not dlclose cuda_lib: fn_cuCtxSetCurrent/fn_cuMemcpyDtoH are
	// static function pointers shared by every DisplayCapture instance.
	if (c->nvfbc_lib) dlclose(c->nvfbc_lib);
	free(c);
}

static void *nvfbc_cuMemcpy2D_ptr(void) {
	return fn_cuMemcpy2D_ptr;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/gsrec/gsrec/internal/types"
)

// DisplayCapture captures the full NVIDIA-managed display via NvFBC's
// TOCUDA path: zero-copy, single-buffered (NvFBC double-buffers itself).
type DisplayCapture struct {
	c *C.NvFBCCapturer
}

// NewDisplayCapture opens an NvFBC TOCUDA session against the given shared
// CUDA context (owned by gpu.Context) at the requested pacing rate.
func NewDisplayCapture(cudaCtx unsafe.Pointer, fps int) (*DisplayCapture, error) {
	c := C.nvfbc_init(C.CUcontext(cudaCtx), C.int(fps))
	if c == nil {
		return nil, fmt.Errorf("capture: failed to initialize NvFBC display capture")
	}
	return &DisplayCapture{c: c}, nil
}

func (d *DisplayCapture) Width() int  { return int(d.c.width) }
func (d *DisplayCapture) Height() int { return int(d.c.height) }

// CaptureInto replaces frame's device pointer with the latest NvFBC-owned
// CUDA buffer; no copy occurs.
func (d *DisplayCapture) CaptureInto(frame *types.Frame) error {
	ret := C.nvfbc_grab(d.c)
	if ret < 0 {
		return fmt.Errorf("capture: NvFBC grab failed")
	}
	frame.Ptr = unsafe.Pointer(C.nvfbc_frame_ptr(d.c))
	frame.Width = int(d.c.width)
	frame.Height = int(d.c.height)
	frame.Stride = int(d.c.stride)
	frame.IsCUDA = true
	frame.PixFmt = types.PixFmtNV12
	return nil
}

func (d *DisplayCapture) CUDAContext() unsafe.Pointer { return unsafe.Pointer(d.c.cuda_ctx) }
func (d *DisplayCapture) CuMemcpy2D() unsafe.Pointer   { return unsafe.Pointer(C.nvfbc_cuMemcpy2D_ptr()) }

func (d *DisplayCapture) Close() {
	C.nvfbc_destroy(d.c)
}
