//go:build linux

package capture

/*
#cgo pkg-config: x11 xcomposite xfixes gl
#cgo CFLAGS: -I${SRCDIR}/../cvendor
#cgo LDFLAGS: -lGLX -ldl
#include <X11/Xlib.h>
#include <X11/Xutil.h>
#include <X11/extensions/Xcomposite.h>
#include <X11/extensions/Xfixes.h>
#include <GL/glx.h>
#include <GL/glxext.h>
#include <dlfcn.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include "cuda_defs.h"

static PFNGLCOPYIMAGESUBDATAPROC        gl_glCopyImageSubData;
static PFNGLXBINDTEXIMAGEEXTPROC        gl_glXBindTexImageEXT;
static PFNGLXRELEASETEXIMAGEEXTPROC     gl_glXReleaseTexImageEXT;

static PFN_cuGraphicsGLRegisterImage             fn_cuGraphicsGLRegisterImage;
static PFN_cuGraphicsUnregisterResource          fn_cuGraphicsUnregisterResource;
static PFN_cuGraphicsMapResources                fn_cuGraphicsMapResources;
static PFN_cuGraphicsUnmapResources               fn_cuGraphicsUnmapResources;
static PFN_cuGraphicsSubResourceGetMappedArray   fn_cuGraphicsSubResourceGetMappedArray;
static PFN_cuCtxPushCurrent                      fn_cuCtxPushCurrent;
static PFN_cuCtxPopCurrent                       fn_cuCtxPopCurrent;
static void                                      *fn_cuMemcpy2D_ptr;
static PFN_cuMemsetD8                            fn_cuMemsetD8;

#define GL_TEXTURE_2D 0x0DE1
#define GL_RGB 0x1907
#define GL_UNSIGNED_BYTE 0x1401
#define GL_TEXTURE_MAG_FILTER 0x2800
#define GL_TEXTURE_MIN_FILTER 0x2801
#define GL_NEAREST 0x2600

typedef struct {
	Display *dpy;
	Window target_window;       // window being recorded
	Window composite_window;    // set when falling back to the compositor overlay
	Pixmap pixmap;
	GLXPixmap glx_pixmap;
	unsigned int texture_id;        // bound directly to the named pixmap
	unsigned int target_texture_id; // secondary texture shared via CUDA interop
	int texture_width, texture_height;
	CUgraphicsResource cuda_resource;
	CUcontext cuda_ctx; // shared, not owned

	int window_x, window_y;       // target window's screen position
	int window_width, window_height;
} WindowCapturer;

static int window_resolve_gl_symbols(void) {
	gl_glCopyImageSubData = (PFNGLCOPYIMAGESUBDATAPROC)glXGetProcAddress((const GLubyte*)"glCopyImageSubData");
	gl_glXBindTexImageEXT = (PFNGLXBINDTEXIMAGEEXTPROC)glXGetProcAddress((const GLubyte*)"glXBindTexImageEXT");
	gl_glXReleaseTexImageEXT = (PFNGLXRELEASETEXIMAGEEXTPROC)glXGetProcAddress((const GLubyte*)"glXReleaseTexImageEXT");
	return (gl_glCopyImageSubData && gl_glXBindTexImageEXT) ? 0 : -1;
}

static int window_resolve_cuda_symbols(void *cuda_lib) {
	fn_cuGraphicsGLRegisterImage = (PFN_cuGraphicsGLRegisterImage)dlsym(cuda_lib, "cuGraphicsGLRegisterImage");
	fn_cuGraphicsUnregisterResource = (PFN_cuGraphicsUnregisterResource)dlsym(cuda_lib, "cuGraphicsUnregisterResource");
	fn_cuGraphicsMapResources = (PFN_cuGraphicsMapResources)dlsym(cuda_lib, "cuGraphicsMapResources");
	fn_cuGraphicsUnmapResources = (PFN_cuGraphicsUnmapResources)dlsym(cuda_lib, "cuGraphicsUnmapResources");
	fn_cuGraphicsSubResourceGetMappedArray = (PFN_cuGraphicsSubResourceGetMappedArray)dlsym(cuda_lib, "cuGraphicsSubResourceGetMappedArray");
	fn_cuCtxPushCurrent = (PFN_cuCtxPushCurrent)dlsym(cuda_lib, "cuCtxPushCurrent_v2");
	fn_cuCtxPopCurrent = (PFN_cuCtxPopCurrent)dlsym(cuda_lib, "cuCtxPopCurrent_v2");
	fn_cuMemcpy2D_ptr = dlsym(cuda_lib, "cuMemcpy2D_v2");
	if (!fn_cuMemcpy2D_ptr) fn_cuMemcpy2D_ptr = dlsym(cuda_lib, "cuMemcpy2D");
	fn_cuMemsetD8 = (PFN_cuMemsetD8)dlsym(cuda_lib, "cuMemsetD8_v2");
	if (!fn_cuMemsetD8) fn_cuMemsetD8 = (PFN_cuMemsetD8)dlsym(cuda_lib, "cuMemsetD8");
	return (fn_cuGraphicsGLRegisterImage && fn_cuGraphicsMapResources) ? 0 : -1;
}

static void *window_cuMemcpy2D_ptr(void) {
	return fn_cuMemcpy2D_ptr;
}

static void *window_cuMemsetD8_ptr(void) {
	return (void*)fn_cuMemsetD8;
}

// get_compositor_window finds the root-level composite overlay window that
// a desktop compositor composites all other windows into. Used as a single
// recursion-depth fallback when the target window's own named pixmap binds
// to a zero-sized texture (undecorated/client-side-decorated windows).
static Window window_get_compositor_window(Display *dpy) {
	Atom net_wm_cm = XInternAtom(dpy, "_NET_WM_CM_S0", False);
	Window owner = XGetSelectionOwner(dpy, net_wm_cm);
	if (owner) return owner;

	Window root = DefaultRootWindow(dpy);
	Window parent, *children;
	unsigned int nchildren = 0;
	if (!XQueryTree(dpy, root, &root, &parent, &children, &nchildren))
		return None;

	Window compositor_window = None;
	for (unsigned int i = 0; i < nchildren; i++) {
		XTextProperty prop;
		if (XGetWMName(dpy, children[i], &prop) && prop.value) {
			if (strstr((const char*)prop.value, "compton") || strstr((const char*)prop.value, "picom")) {
				compositor_window = children[i];
				XFree(prop.value);
				break;
			}
			XFree(prop.value);
		}
	}
	if (children) XFree(children);
	return compositor_window;
}

static void window_cleanup_pixmap(WindowCapturer *c) {
	if (c->cuda_resource && fn_cuGraphicsUnregisterResource) {
		fn_cuGraphicsUnregisterResource(c->cuda_resource);
		c->cuda_resource = NULL;
	}
	if (c->target_texture_id) {
		glDeleteTextures(1, &c->target_texture_id);
		c->target_texture_id = 0;
	}
	if (c->texture_id) {
		glDeleteTextures(1, &c->texture_id);
		c->texture_id = 0;
	}
	if (c->glx_pixmap) {
		if (gl_glXReleaseTexImageEXT) gl_glXReleaseTexImageEXT(c->dpy, c->glx_pixmap, GLX_FRONT_EXT);
		glXDestroyPixmap(c->dpy, c->glx_pixmap);
		c->glx_pixmap = None;
	}
	if (c->pixmap) {
		XFreePixmap(c->dpy, c->pixmap);
		c->pixmap = None;
	}
	if (c->composite_window) {
		XCompositeUnredirectWindow(c->dpy, c->composite_window, CompositeRedirectAutomatic);
		c->composite_window = None;
	}
}

// Returns 1 on success, 0 on failure (caller decides whether to fall back).
static int window_bind_pixmap(WindowCapturer *c, Window window_id, int allow_fallback) {
	XWindowAttributes attr;
	if (!XGetWindowAttributes(c->dpy, window_id, &attr)) {
		fprintf(stderr, "capture: failed to get window attributes\n");
		return 0;
	}

	int fbattr[] = {
		GLX_BIND_TO_TEXTURE_RGB_EXT, True,
		GLX_DRAWABLE_TYPE, GLX_PIXMAP_BIT | GLX_WINDOW_BIT,
		GLX_BIND_TO_TEXTURE_TARGETS_EXT, GLX_TEXTURE_2D_BIT_EXT,
		GLX_BUFFER_SIZE, 24,
		GLX_RED_SIZE, 8, GLX_GREEN_SIZE, 8, GLX_BLUE_SIZE, 8, GLX_ALPHA_SIZE, 0,
		None
	};
	int pixmap_attribs[] = {
		GLX_TEXTURE_TARGET_EXT, GLX_TEXTURE_2D_EXT,
		GLX_TEXTURE_FORMAT_EXT, GLX_TEXTURE_FORMAT_RGB_EXT,
		None
	};

	int nconfigs = 0;
	GLXFBConfig *configs = glXChooseFBConfig(c->dpy, DefaultScreen(c->dpy), fbattr, &nconfigs);
	if (!configs) {
		fprintf(stderr, "capture: no matching GLX fbconfig for window pixmap\n");
		return 0;
	}

	GLXFBConfig chosen;
	int found = 0;
	for (int i = 0; i < nconfigs; i++) {
		XVisualInfo *vi = glXGetVisualFromFBConfig(c->dpy, configs[i]);
		if (!vi) continue;
		if (vi->depth == attr.depth) { chosen = configs[i]; found = 1; XFree(vi); break; }
		XFree(vi);
	}
	XFree(configs);
	if (!found) {
		fprintf(stderr, "capture: no matching fbconfig depth for window pixmap\n");
		return 0;
	}

	Pixmap pixmap = XCompositeNameWindowPixmap(c->dpy, window_id);
	if (!pixmap) {
		fprintf(stderr, "capture: XCompositeNameWindowPixmap failed\n");
		return 0;
	}

	GLXPixmap glxpm = glXCreatePixmap(c->dpy, chosen, pixmap, pixmap_attribs);
	if (!glxpm) {
		XFreePixmap(c->dpy, pixmap);
		fprintf(stderr, "capture: glXCreatePixmap failed\n");
		return 0;
	}

	c->pixmap = pixmap;
	c->glx_pixmap = glxpm;

	glGenTextures(1, &c->texture_id);
	glBindTexture(GL_TEXTURE_2D, c->texture_id);
	gl_glXBindTexImageEXT(c->dpy, c->glx_pixmap, GLX_FRONT_EXT, NULL);
	glTexParameteri(GL_TEXTURE_2D, GL_TEXTURE_MAG_FILTER, GL_NEAREST);
	glTexParameteri(GL_TEXTURE_2D, GL_TEXTURE_MIN_FILTER, GL_NEAREST);
	glGetTexLevelParameteriv(GL_TEXTURE_2D, 0, GL_TEXTURE_WIDTH, &c->texture_width);
	glGetTexLevelParameteriv(GL_TEXTURE_2D, 0, GL_TEXTURE_HEIGHT, &c->texture_height);
	glBindTexture(GL_TEXTURE_2D, 0);

	if (c->texture_width == 0 || c->texture_height == 0) {
		if (allow_fallback) {
			Window compositor = window_get_compositor_window(c->dpy);
			if (!compositor) {
				fprintf(stderr, "capture: warning: failed to get texture size and no compositor overlay window found; recording will degrade to black frames\n");
				c->texture_width = attr.width;
				c->texture_height = attr.height;
				return 0;
			}
			fprintf(stderr, "capture: warning: window texture bound with zero size (client-side decorations?); falling back to compositor overlay window\n");
			window_cleanup_pixmap(c);
			XCompositeRedirectWindow(c->dpy, compositor, CompositeRedirectAutomatic);
			// allow_fallback=0: only one level of fallback is attempted.
			if (window_bind_pixmap(c, compositor, 0)) {
				c->composite_window = compositor;
				c->texture_width = attr.width;
				c->texture_height = attr.height;
				return 1;
			}
			c->texture_width = attr.width;
			c->texture_height = attr.height;
			return 0;
		}
		fprintf(stderr, "capture: warning: texture bind yielded zero size, no further fallback available\n");
		return 0;
	}

	// Secondary texture: cuGraphicsGLRegisterImage cannot register the
	// texture bound directly to the pixmap, so the copy target is a plain
	// texture of the same size, refreshed via glCopyImageSubData each tick.
	glGenTextures(1, &c->target_texture_id);
	glBindTexture(GL_TEXTURE_2D, c->target_texture_id);
	glTexImage2D(GL_TEXTURE_2D, 0, GL_RGB, c->texture_width, c->texture_height, 0, GL_RGB, GL_UNSIGNED_BYTE, NULL);
	glTexParameteri(GL_TEXTURE_2D, GL_TEXTURE_MAG_FILTER, GL_NEAREST);
	glTexParameteri(GL_TEXTURE_2D, GL_TEXTURE_MIN_FILTER, GL_NEAREST);
	glBindTexture(GL_TEXTURE_2D, 0);

	return c->texture_id != 0 && c->target_texture_id != 0;
}

static WindowCapturer *window_init(Display *dpy, Window window_id, CUcontext cuda_ctx) {
	if (window_resolve_gl_symbols() != 0) {
		fprintf(stderr, "capture: required GL extension entry points unavailable\n");
		return NULL;
	}

	// libcuda.so.1 is already loaded by the gpu package; dlopen is refcounted
	// and returns the same handle with the same process-wide symbol table.
	void *cuda_lib = dlopen("libcuda.so.1", RTLD_LAZY);
	if (!cuda_lib) cuda_lib = dlopen("libcuda.so", RTLD_LAZY);
	if (!cuda_lib) {
		fprintf(stderr, "capture: failed to load libcuda.so: %s\n", dlerror());
		return NULL;
	}
	if (window_resolve_cuda_symbols(cuda_lib) != 0) {
		fprintf(stderr, "capture: required CUDA interop symbols unavailable\n");
		return NULL;
	}

	WindowCapturer *c = (WindowCapturer*)calloc(1, sizeof(WindowCapturer));
	if (!c) return NULL;
	c->dpy = dpy;
	c->target_window = window_id;
	c->cuda_ctx = cuda_ctx;

	XCompositeRedirectWindow(dpy, window_id, CompositeRedirectAutomatic);
	XSelectInput(dpy, window_id, StructureNotifyMask);

	if (!window_bind_pixmap(c, window_id, 1)) {
		free(c);
		return NULL;
	}

	CUresult res = fn_cuGraphicsGLRegisterImage(&c->cuda_resource, c->target_texture_id,
		GL_TEXTURE_2D, CU_GRAPHICS_REGISTER_FLAGS_READ_ONLY);
	if (res != CUDA_SUCCESS) {
		fprintf(stderr, "capture: cuGraphicsGLRegisterImage failed: %d\n", res);
		window_cleanup_pixmap(c);
		free(c);
		return NULL;
	}

	XWindowAttributes attr;
	if (XGetWindowAttributes(dpy, window_id, &attr)) {
		Window child;
		c->window_width = attr.width;
		c->window_height = attr.height;
		XTranslateCoordinates(dpy, window_id, DefaultRootWindow(dpy), 0, 0, &c->window_x, &c->window_y, &child);
	}

	return c;
}

// window_copy_frame copies the current contents of the bound pixmap into
// the interop-registered destination texture, then maps the CUDA array for
// the encoder. Returns the mapped CUarray, or NULL on failure.
static CUarray window_copy_frame(WindowCapturer *c) {
	glBindTexture(GL_TEXTURE_2D, c->texture_id);
	gl_glXReleaseTexImageEXT(c->dpy, c->glx_pixmap, GLX_FRONT_EXT);
	gl_glXBindTexImageEXT(c->dpy, c->glx_pixmap, GLX_FRONT_EXT, NULL);
	glBindTexture(GL_TEXTURE_2D, 0);

	gl_glCopyImageSubData(
		c->texture_id, GL_TEXTURE_2D, 0, 0, 0, 0,
		c->target_texture_id, GL_TEXTURE_2D, 0, 0, 0, 0,
		c->texture_width, c->texture_height, 1);
	GLenum err = glGetError();
	if (err != 0) {
		static int warned = 0;
		if (!warned) {
			fprintf(stderr, "capture: glCopyImageSubData reported GL error %u (suppressing further warnings)\n", err);
			warned = 1;
		}
	}

	CUcontext old_ctx;
	if (fn_cuCtxPushCurrent) fn_cuCtxPushCurrent(c->cuda_ctx);

	CUresult res = fn_cuGraphicsMapResources(1, &c->cuda_resource, NULL);
	if (res != CUDA_SUCCESS) {
		if (fn_cuCtxPopCurrent) fn_cuCtxPopCurrent(&old_ctx);
		return NULL;
	}

	CUarray arr;
	res = fn_cuGraphicsSubResourceGetMappedArray(&arr, c->cuda_resource, 0, 0);
	fn_cuGraphicsUnmapResources(1, &c->cuda_resource, NULL);
	if (fn_cuCtxPopCurrent) fn_cuCtxPopCurrent(&old_ctx);
	if (res != CUDA_SUCCESS) return NULL;
	return arr;
}

static void window_destroy(WindowCapturer *c) {
	if (!c) return;
	window_cleanup_pixmap(c);
	free(c);
}

// window_drain_events pumps every X event already queued on dpy without
// blocking, updating the tracked window geometry on ConfigureNotify.
// Returns 1 if at least one ConfigureNotify for target_window was seen.
static int window_drain_events(WindowCapturer *c) {
	int got_configure = 0;
	while (XPending(c->dpy)) {
		XEvent ev;
		XNextEvent(c->dpy, &ev);
		if (ev.type == ConfigureNotify && ev.xconfigure.window == c->target_window) {
			got_configure = 1;
			c->window_width = ev.xconfigure.width;
			c->window_height = ev.xconfigure.height;
			Window child;
			XTranslateCoordinates(c->dpy, c->target_window, DefaultRootWindow(c->dpy),
				0, 0, &c->window_x, &c->window_y, &child);
		}
	}
	return got_configure;
}
*/
import "C"

import (
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	"github.com/gsrec/gsrec/internal/types"
)

// resizeDebounce is the delay after the last ConfigureNotify before the
// pixmap binding, texture, interop registration and destination frame are
// torn down and recreated.
const resizeDebounce = 1 * time.Second

// WindowCapture captures a single X window via the Composite extension
// named-pixmap + GLX texture + CUDA-OpenGL interop path.
type WindowCapture struct {
	c       *C.WindowCapturer
	dpy     *C.Display
	winID   C.Window
	cudaCtx unsafe.Pointer
	fps     int

	mu           sync.Mutex
	recordW      int
	recordH      int
	resizeTimer  *time.Timer
	pendingClear bool
}

// NewWindowCapture opens an X11 display connection, redirects the target
// window into compositing mode, and binds its named pixmap as a CUDA
// interop texture. recordW/recordH are the user-requested `-s` dimensions;
// if they exceed the source texture, capture falls back to source size
// (rounded even).
func NewWindowCapture(windowID uint64, cudaCtx unsafe.Pointer, fps, recordW, recordH int) (*WindowCapture, error) {
	dpy := C.XOpenDisplay(nil)
	if dpy == nil {
		return nil, fmt.Errorf("capture: failed to open X display")
	}

	win := C.Window(windowID)
	c := C.window_init(dpy, win, C.CUcontext(cudaCtx))
	if c == nil {
		C.XCloseDisplay(dpy)
		return nil, fmt.Errorf("capture: failed to bind window %#x for capture", windowID)
	}

	w := &WindowCapture{c: c, dpy: dpy, winID: win, cudaCtx: cudaCtx, fps: fps}
	if recordW > 0 && recordH > 0 && recordW <= int(c.texture_width) && recordH <= int(c.texture_height) {
		w.recordW, w.recordH = evenDown(recordW), evenDown(recordH)
	} else {
		w.recordW, w.recordH = evenDown(int(c.texture_width)), evenDown(int(c.texture_height))
	}
	return w, nil
}

func evenDown(n int) int {
	if n%2 != 0 {
		return n - 1
	}
	return n
}

func (w *WindowCapture) Width() int  { return w.recordW }
func (w *WindowCapture) Height() int { return w.recordH }

func (w *WindowCapture) CUDAContext() unsafe.Pointer { return w.cudaCtx }

// CuMemcpy2D returns this package's own resolved cuMemcpy2D symbol, loaded
// against the same refcounted libcuda.so.1 handle DisplayCapture uses.
func (w *WindowCapture) CuMemcpy2D() unsafe.Pointer { return unsafe.Pointer(C.window_cuMemcpy2D_ptr()) }

// CuMemsetD8 returns the resolved cuMemsetD8 symbol the encoder uses to
// blank the NV12 destination to black around a clamped or shrunk region.
func (w *WindowCapture) CuMemsetD8() unsafe.Pointer { return unsafe.Pointer(C.window_cuMemsetD8_ptr()) }

// CaptureInto performs the GPU-to-GPU copy: refresh the named-pixmap
// texture, glCopyImageSubData the full current surface into the interop
// texture, then map the resulting CUDA array into frame.Ptr along with the
// (possibly clamped or shrunk) sub-rectangle the encoder should actually
// copy from it.
func (w *WindowCapture) CaptureInto(frame *types.Frame) error {
	w.mu.Lock()
	pendingClear := w.pendingClear
	w.pendingClear = false
	w.mu.Unlock()

	arr := C.window_copy_frame(w.c)
	if arr == nil {
		return fmt.Errorf("capture: window frame copy failed")
	}

	region := w.Region()
	copyW, copyH := region.Width, region.Height
	if copyW > w.recordW {
		copyW = w.recordW
	}
	if copyH > w.recordH {
		copyH = w.recordH
	}
	if copyW < 0 {
		copyW = 0
	}
	if copyH < 0 {
		copyH = 0
	}
	// A rebind that shrank the source surface below the fixed destination
	// size, or an off-screen clamp, both leave part of the destination
	// uncovered and need a black clear; pendingClear covers the debounced
	// resize itself (the tick right after Rebind ran).
	clear := pendingClear || region.Clamped || copyW < w.recordW || copyH < w.recordH

	frame.Ptr = unsafe.Pointer(arr)
	frame.Width = w.recordW
	frame.Height = w.recordH
	frame.IsCUDA = true
	frame.IsCUDAArray = true
	frame.PixFmt = types.PixFmtBGRA
	frame.SrcX = region.SourceX
	frame.SrcY = region.SourceY
	frame.SrcWidth = copyW
	frame.SrcHeight = copyH
	frame.Clear = clear
	return nil
}

// Region computes the per-tick source rectangle inside the bound surface.
// When capturing the window's own named pixmap, that pixmap already holds
// exactly the window's content, so the source origin is (0,0). Only the
// compositor-overlay fallback (the named pixmap binds the whole screen)
// needs the window's screen offset, clamped for windows with negative
// screen coordinates (partially off-screen).
func (w *WindowCapture) Region() types.CapturedRegion {
	if w.c.composite_window == C.None {
		return types.CapturedRegion{Width: int(w.c.texture_width), Height: int(w.c.texture_height)}
	}

	x, y := int(w.c.window_x), int(w.c.window_y)
	width, height := int(w.c.window_width), int(w.c.window_height)
	clamped := false
	if x < 0 {
		width += x
		x = 0
		clamped = true
	}
	if y < 0 {
		height += y
		y = 0
		clamped = true
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return types.CapturedRegion{SourceX: x, SourceY: y, Width: width, Height: height, Clamped: clamped}
}

// OnConfigureNotify arms (or re-arms) the resize debounce timer. When it
// fires without further events, the pixmap binding and interop
// registration are torn down and rebuilt against the window's new size;
// the destination frame dimensions (codec width/height) never change.
func (w *WindowCapture) OnConfigureNotify(rebind func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.resizeTimer != nil {
		w.resizeTimer.Stop()
	}
	w.resizeTimer = time.AfterFunc(resizeDebounce, func() {
		w.mu.Lock()
		w.pendingClear = true
		w.mu.Unlock()
		rebind()
	})
}

// DrainEvents pumps pending X11 events for the captured window and arms the
// resize debounce on each ConfigureNotify. Call once per pacing tick.
func (w *WindowCapture) DrainEvents() {
	if C.window_drain_events(w.c) == 0 {
		return
	}
	w.OnConfigureNotify(func() {
		if err := w.Rebind(); err != nil {
			fmt.Fprintf(os.Stderr, "capture: %v\n", err)
		}
	})
}

// Rebind tears down and recreates the pixmap binding, texture and interop
// registration after a debounced resize. The outer WindowCapture and its
// codec dimensions are unaffected.
func (w *WindowCapture) Rebind() error {
	C.window_cleanup_pixmap(w.c)
	if C.window_bind_pixmap(w.c, w.winID, 1) == 0 {
		return fmt.Errorf("capture: failed to rebind window pixmap after resize")
	}
	return nil
}

func (w *WindowCapture) Close() {
	w.mu.Lock()
	if w.resizeTimer != nil {
		w.resizeTimer.Stop()
	}
	w.mu.Unlock()
	C.window_destroy(w.c)
	C.XCloseDisplay(w.dpy)
}
