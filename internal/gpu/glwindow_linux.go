//go:build linux

package gpu

/*
#cgo pkg-config: x11 gl
#cgo LDFLAGS: -lGLX
#include <X11/Xlib.h>
#include <GL/glx.h>
#include <stdlib.h>
#include <stdio.h>

// gpu_create_gl_window creates a 1x1 invisible X window with a GLX context
// made current on it. It exists only so glCopyImageSubData / texture
// binding has a context to run against; nothing is ever drawn to it.
static Window gpu_create_gl_window(Display *dpy, GLXContext *out_ctx) {
	int fbattr[] = {
		GLX_RENDER_TYPE, GLX_RGBA_BIT,
		GLX_DRAWABLE_TYPE, GLX_WINDOW_BIT,
		GLX_DOUBLEBUFFER, True,
		GLX_RED_SIZE, 8, GLX_GREEN_SIZE, 8, GLX_BLUE_SIZE, 8, GLX_ALPHA_SIZE, 8,
		GLX_DEPTH_SIZE, 0,
		None
	};

	int numfbconfigs = 0;
	GLXFBConfig *fbconfigs = glXChooseFBConfig(dpy, DefaultScreen(dpy), fbattr, &numfbconfigs);
	if (!fbconfigs || numfbconfigs == 0) {
		fprintf(stderr, "gpu: no appropriate GLX fbconfig found\n");
		return None;
	}

	XVisualInfo *visual = NULL;
	GLXFBConfig chosen;
	for (int i = 0; i < numfbconfigs; i++) {
		visual = glXGetVisualFromFBConfig(dpy, fbconfigs[i]);
		if (visual) { chosen = fbconfigs[i]; break; }
	}
	XFree(fbconfigs);
	if (!visual) {
		fprintf(stderr, "gpu: no matching GLX visual found\n");
		return None;
	}

	GLXContext glctx = glXCreateContext(dpy, visual, NULL, True);
	if (!glctx) {
		fprintf(stderr, "gpu: failed to create GLX context\n");
		XFree(visual);
		return None;
	}

	Colormap cmap = XCreateColormap(dpy, DefaultRootWindow(dpy), visual->visual, AllocNone);
	XSetWindowAttributes attr;
	attr.colormap = cmap;

	Window win = XCreateWindow(dpy, DefaultRootWindow(dpy), 0, 0, 1, 1, 0,
		visual->depth, InputOutput, visual->visual, CWColormap, &attr);
	XFree(visual);

	if (!win) {
		fprintf(stderr, "gpu: failed to create 1x1 gl window\n");
		glXDestroyContext(dpy, glctx);
		XFreeColormap(dpy, cmap);
		return None;
	}

	if (!glXMakeContextCurrent(dpy, win, win, glctx)) {
		fprintf(stderr, "gpu: failed to make gl context current\n");
		XDestroyWindow(dpy, win);
		glXDestroyContext(dpy, glctx);
		XFreeColormap(dpy, cmap);
		return None;
	}

	*out_ctx = glctx;
	return win;
}

static void gpu_destroy_gl_window(Display *dpy, Window win, GLXContext glctx) {
	if (glctx) glXDestroyContext(dpy, glctx);
	if (win) XDestroyWindow(dpy, win);
}

static const char *gpu_gl_renderer(void) {
	return (const char*)glGetString(GL_RENDERER);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// OpenDefaultDisplay opens the X11 display named by $DISPLAY (or the
// default one) purely for GPU-age probing at startup; the capture sources
// each open their own independent connection.
func OpenDefaultDisplay() (unsafe.Pointer, error) {
	dpy := C.XOpenDisplay(nil)
	if dpy == nil {
		return nil, fmt.Errorf("gpu: failed to open X display")
	}
	return unsafe.Pointer(dpy), nil
}

// CloseDisplay closes a display opened by OpenDefaultDisplay.
func CloseDisplay(dpy unsafe.Pointer) {
	C.XCloseDisplay((*C.Display)(dpy))
}

// GLWindow is the 1x1 invisible X window + GLX context used as the
// rendering context for window-path texture binding and interop.
type GLWindow struct {
	dpy  *C.Display
	win  C.Window
	ctx  C.GLXContext
}

// NewGLWindow creates the invisible GL window on the given already-open X
// display connection. The caller retains ownership of dpy.
func NewGLWindow(dpy unsafe.Pointer) (*GLWindow, error) {
	d := (*C.Display)(dpy)
	var ctx C.GLXContext
	win := C.gpu_create_gl_window(d, &ctx)
	if win == C.None {
		return nil, fmt.Errorf("gpu: failed to create invisible GL window")
	}
	return &GLWindow{dpy: d, win: win, ctx: ctx}, nil
}

// Renderer returns the GL_RENDERER string for GPU-age detection.
func (w *GLWindow) Renderer() string {
	return C.GoString(C.gpu_gl_renderer())
}

func (w *GLWindow) Close() {
	C.gpu_destroy_gl_window(w.dpy, w.win, w.ctx)
}
