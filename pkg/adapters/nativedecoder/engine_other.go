//go:build !darwin

package nativedecoder

import "io"

func nativeAvailable() bool {
	return false
}

func newNativeEngine(io.ReadSeeker) (engine, error) {
	return nil, ErrPlatformNotSupported
}
