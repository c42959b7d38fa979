//go:build linux

// Package gpu owns the CUDA device context and, for the window capture
// path, the invisible GLX window the X11 texture is bound through.
package gpu

/*
#cgo CFLAGS: -I${SRCDIR}/../cvendor
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdio.h>
#include <stdlib.h>
#include "cuda_defs.h"

static PFN_cuInit               fn_cuInit;
static PFN_cuDeviceGet          fn_cuDeviceGet;
static PFN_cuDeviceGetName      fn_cuDeviceGetName;
static PFN_cuDeviceGetByPCIBusId fn_cuDeviceGetByPCIBusId;
static PFN_cuCtxCreate          fn_cuCtxCreate;
static PFN_cuCtxDestroy         fn_cuCtxDestroy;
static PFN_cuCtxSetCurrent      fn_cuCtxSetCurrent;
static void *cuda_lib;

// gpu_load_cuda resolves the driver API entry points this package needs from
// libcuda.so.1. The resolved pointers are process-global: the library is
// never dlclose'd while any CUDA-backed object is alive.
static int gpu_load_cuda(void) {
	if (cuda_lib) return 0;

	cuda_lib = dlopen("libcuda.so.1", RTLD_LAZY);
	if (!cuda_lib) cuda_lib = dlopen("libcuda.so", RTLD_LAZY);
	if (!cuda_lib) {
		fprintf(stderr, "gpu: failed to load libcuda.so: %s\n", dlerror());
		return -1;
	}

	fn_cuInit = (PFN_cuInit)dlsym(cuda_lib, "cuInit");
	fn_cuDeviceGet = (PFN_cuDeviceGet)dlsym(cuda_lib, "cuDeviceGet");
	fn_cuDeviceGetName = (PFN_cuDeviceGetName)dlsym(cuda_lib, "cuDeviceGetName");
	fn_cuDeviceGetByPCIBusId = (PFN_cuDeviceGetByPCIBusId)dlsym(cuda_lib, "cuDeviceGetByPCIBusId");
	fn_cuCtxCreate = (PFN_cuCtxCreate)dlsym(cuda_lib, "cuCtxCreate_v2");
	if (!fn_cuCtxCreate) fn_cuCtxCreate = (PFN_cuCtxCreate)dlsym(cuda_lib, "cuCtxCreate");
	fn_cuCtxDestroy = (PFN_cuCtxDestroy)dlsym(cuda_lib, "cuCtxDestroy_v2");
	if (!fn_cuCtxDestroy) fn_cuCtxDestroy = (PFN_cuCtxDestroy)dlsym(cuda_lib, "cuCtxDestroy");
	fn_cuCtxSetCurrent = (PFN_cuCtxSetCurrent)dlsym(cuda_lib, "cuCtxSetCurrent");

	if (!fn_cuInit || !fn_cuDeviceGet || !fn_cuCtxCreate || !fn_cuCtxDestroy) {
		fprintf(stderr, "gpu: failed to resolve CUDA driver API symbols\n");
		return -1;
	}
	return 0;
}

static CUcontext gpu_create_context(int device_index) {
	if (gpu_load_cuda() != 0) return NULL;

	if (fn_cuInit(0) != CUDA_SUCCESS) {
		fprintf(stderr, "gpu: cuInit failed\n");
		return NULL;
	}

	CUdevice device;
	if (fn_cuDeviceGet(&device, device_index) != CUDA_SUCCESS) {
		fprintf(stderr, "gpu: cuDeviceGet(%d) failed\n", device_index);
		return NULL;
	}

	if (fn_cuDeviceGetName) {
		char name[256] = {0};
		fn_cuDeviceGetName(name, sizeof(name), device);
		fprintf(stderr, "gpu: device %d: %s\n", device_index, name);
	}

	CUcontext ctx;
	if (fn_cuCtxCreate(&ctx, CU_CTX_SCHED_AUTO, device) != CUDA_SUCCESS) {
		fprintf(stderr, "gpu: cuCtxCreate failed\n");
		return NULL;
	}
	return ctx;
}

static void gpu_destroy_context(CUcontext ctx) {
	if (ctx && fn_cuCtxDestroy) fn_cuCtxDestroy(ctx);
}

static void gpu_set_current(CUcontext ctx) {
	if (ctx && fn_cuCtxSetCurrent) fn_cuCtxSetCurrent(ctx);
}
*/
import "C"

import (
	"fmt"
	"regexp"
	"strconv"
	"unsafe"
)

// Context owns the process-wide CUDA device context. It is constructed
// once at startup and destroyed at shutdown; the teardown order for every
// GPU resource that references it (frame pools, encoders, capture sources)
// must run leaves-first, before Context.Close.
type Context struct {
	cuCtx unsafe.Pointer
}

// New creates a CUDA context on the given device index with automatic
// scheduling (CU_CTX_SCHED_AUTO).
func New(deviceIndex int) (*Context, error) {
	ctx := C.gpu_create_context(C.int(deviceIndex))
	if ctx == nil {
		return nil, fmt.Errorf("gpu: failed to create CUDA context on device %d", deviceIndex)
	}
	return &Context{cuCtx: unsafe.Pointer(ctx)}, nil
}

// CUDA returns the raw CUcontext for callers (encoder, capture sources)
// that must pass it across a cgo boundary.
func (c *Context) CUDA() unsafe.Pointer { return c.cuCtx }

// SetCurrent re-pushes this context as current on the calling OS thread.
// NvFBC internally manages its own CUDA context during a grab and this
// must be called afterwards to restore the context the encoder expects.
func (c *Context) SetCurrent() {
	C.gpu_set_current(C.CUcontext(c.cuCtx))
}

func (c *Context) Close() {
	C.gpu_destroy_context(C.CUcontext(c.cuCtx))
	c.cuCtx = nil
}

var gpuNumPattern = regexp.MustCompile(`\S+\s+\S+\s+\S+\s+(\d+)`)

// IsVeryOldGPU parses an OpenGL GL_RENDERER string the way the original
// tool does: the leading number of the token that follows three
// whitespace-separated tokens (the fourth token in the usual
// "NVIDIA GeForce GTX 1080/PCIe/SSE2" form) is the GPU model number, and
// anything below 900 predates the Maxwell
// architecture and should use the lower preset/QP table.
func IsVeryOldGPU(glRenderer string) bool {
	m := gpuNumPattern.FindStringSubmatch(glRenderer)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	return n < 900
}
