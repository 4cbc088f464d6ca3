//go:build darwin

package nativedecoder

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework VideoToolbox -framework CoreMedia -framework CoreFoundation -framework CoreVideo

#include <VideoToolbox/VideoToolbox.h>
#include <CoreMedia/CoreMedia.h>
#include <CoreFoundation/CoreFoundation.h>
#include <CoreVideo/CoreVideo.h>
#include <stdlib.h>
#include <string.h>

typedef struct {
    VTDecompressionSessionRef session;
    CMFormatDescriptionRef formatDesc;

    // BGRA output, width * height * 4
    unsigned char *output;
    int width;
    int height;
    int ready;
} VTEngineContext;

static void outputCallback(void *refCon,
                           void *sourceFrameRefCon,
                           OSStatus status,
                           VTDecodeInfoFlags infoFlags,
                           CVImageBufferRef imageBuffer,
                           CMTime pts,
                           CMTime duration) {
    VTEngineContext *ctx = (VTEngineContext*)refCon;
    if (status != noErr || imageBuffer == NULL) {
        ctx->ready = 0;
        return;
    }
    if (CVPixelBufferGetPixelFormatType(imageBuffer) != kCVPixelFormatType_32BGRA) {
        ctx->ready = 0;
        return;
    }

    CVPixelBufferLockBaseAddress(imageBuffer, kCVPixelBufferLock_ReadOnly);

    size_t width = CVPixelBufferGetWidth(imageBuffer);
    size_t height = CVPixelBufferGetHeight(imageBuffer);
    if (width > (size_t)ctx->width) width = ctx->width;
    if (height > (size_t)ctx->height) height = ctx->height;

    unsigned char *base = CVPixelBufferGetBaseAddress(imageBuffer);
    size_t bytesPerRow = CVPixelBufferGetBytesPerRow(imageBuffer);
    size_t rowBytes = (size_t)ctx->width * 4;
    for (size_t y = 0; y < height; y++) {
        memcpy(ctx->output + y * rowBytes, base + y * bytesPerRow, width * 4);
    }

    CVPixelBufferUnlockBaseAddress(imageBuffer, kCVPixelBufferLock_ReadOnly);
    ctx->ready = 1;
}

static VTEngineContext* vtCreate(const uint8_t *sps, size_t spsSize,
                                 const uint8_t *pps, size_t ppsSize,
                                 int width, int height) {
    VTEngineContext *ctx = (VTEngineContext*)calloc(1, sizeof(VTEngineContext));
    if (!ctx) return NULL;
    ctx->width = width;
    ctx->height = height;
    ctx->output = (unsigned char*)calloc((size_t)width * height, 4);
    if (!ctx->output) {
        free(ctx);
        return NULL;
    }

    const uint8_t *sets[2] = { sps, pps };
    size_t sizes[2] = { spsSize, ppsSize };
    OSStatus status = CMVideoFormatDescriptionCreateFromH264ParameterSets(
        kCFAllocatorDefault, 2, sets, sizes, 4, &ctx->formatDesc);
    if (status != noErr) {
        free(ctx->output);
        free(ctx);
        return NULL;
    }

    CFMutableDictionaryRef attrs = CFDictionaryCreateMutable(
        kCFAllocatorDefault, 0,
        &kCFTypeDictionaryKeyCallBacks,
        &kCFTypeDictionaryValueCallBacks);
    SInt32 pixelFormat = kCVPixelFormatType_32BGRA;
    CFNumberRef pf = CFNumberCreate(kCFAllocatorDefault, kCFNumberSInt32Type, &pixelFormat);
    CFDictionarySetValue(attrs, kCVPixelBufferPixelFormatTypeKey, pf);
    CFRelease(pf);

    VTDecompressionOutputCallbackRecord cb;
    cb.decompressionOutputCallback = outputCallback;
    cb.decompressionOutputRefCon = ctx;

    status = VTDecompressionSessionCreate(
        kCFAllocatorDefault, ctx->formatDesc, NULL, attrs, &cb, &ctx->session);
    CFRelease(attrs);
    if (status != noErr) {
        CFRelease(ctx->formatDesc);
        free(ctx->output);
        free(ctx);
        return NULL;
    }
    return ctx;
}

// vtDecode decodes one length-prefixed sample synchronously.
// Returns 0 with output ready, 1 when no image was emitted, negative on error.
static int vtDecode(VTEngineContext *ctx, const uint8_t *data, size_t size) {
    ctx->ready = 0;

    void *copy = malloc(size);
    if (!copy) return -1;
    memcpy(copy, data, size);

    CMBlockBufferRef block = NULL;
    OSStatus status = CMBlockBufferCreateWithMemoryBlock(
        kCFAllocatorDefault, copy, size, kCFAllocatorDefault, NULL, 0, size, 0, &block);
    if (status != noErr) {
        free(copy);
        return -1;
    }

    CMSampleBufferRef sample = NULL;
    size_t sampleSizes[] = { size };
    status = CMSampleBufferCreate(
        kCFAllocatorDefault, block, true, NULL, NULL, ctx->formatDesc,
        1, 0, NULL, 1, sampleSizes, &sample);
    CFRelease(block);
    if (status != noErr) return -2;

    VTDecodeInfoFlags infoFlags;
    status = VTDecompressionSessionDecodeFrame(ctx->session, sample, 0, NULL, &infoFlags);
    CFRelease(sample);
    if (status != noErr) return -3;

    VTDecompressionSessionWaitForAsynchronousFrames(ctx->session);
    return ctx->ready ? 0 : 1;
}

static void vtDestroy(VTEngineContext *ctx) {
    if (!ctx) return;
    if (ctx->session) {
        VTDecompressionSessionInvalidate(ctx->session);
        CFRelease(ctx->session);
    }
    if (ctx->formatDesc) CFRelease(ctx->formatDesc);
    free(ctx->output);
    free(ctx);
}
*/
import "C"

import (
	"fmt"
	"io"
	"unsafe"
)

// vtEngine decodes H.264 samples with VideoToolbox.
//
// Output is reordered into presentation order by a reorderer.
type vtEngine struct {
	r   io.ReadSeeker
	ctx *C.VTEngineContext
	t   *track
	ro  reorderer
}

func nativeAvailable() bool {
	return true
}

func newNativeEngine(r io.ReadSeeker) (engine, error) {
	return &vtEngine{r: r}, nil
}

func (e *vtEngine) name() Engine { return EngineVideoToolbox }

func (e *vtEngine) start(t *track, from int) error {
	if e.ctx == nil {
		sps, pps := t.sps[0], t.pps[0]
		e.ctx = C.vtCreate(
			(*C.uint8_t)(unsafe.Pointer(&sps[0])), C.size_t(len(sps)),
			(*C.uint8_t)(unsafe.Pointer(&pps[0])), C.size_t(len(pps)),
			C.int(t.width), C.int(t.height),
		)
		if e.ctx == nil {
			return fmt.Errorf("create VideoToolbox session")
		}
	}
	e.t = t
	e.ro.reset(t, from)
	return nil
}

func (e *vtEngine) next(dst []byte) error {
	return e.ro.next(e.r, dst, e.decode)
}

// decode feeds one AVCC sample; vtDecode returns 1 when no image came out.
func (e *vtEngine) decode(data []byte) ([]byte, error) {
	rc := C.vtDecode(e.ctx, (*C.uint8_t)(unsafe.Pointer(&data[0])), C.size_t(len(data)))
	switch {
	case rc < 0:
		return nil, fmt.Errorf("VideoToolbox decode: code %d", int(rc))
	case rc > 0:
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(e.ctx.output)), e.t.width*e.t.height*4), nil
}

func (e *vtEngine) close() error {
	e.ro.release()
	if e.ctx != nil {
		C.vtDestroy(e.ctx)
		e.ctx = nil
	}
	return nil
}
