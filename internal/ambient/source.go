package ambient

import (
	"context"
	"errors"
	"time"
)

// Pixel formats a capture device can be asked for.
const (
	FourCCRGB3 = "RGB3" // packed 24-bit RGB
	FourCCMJPG = "MJPG" // motion JPEG, one JPEG image per frame
)

var (
	// ErrDeviceUnavailable means the capture device could not be opened.
	ErrDeviceUnavailable = errors.New("ambient: device unavailable")
	// ErrConfig means no usable capture format could be negotiated.
	ErrConfig = errors.New("ambient: capture format rejected")
	// ErrStream means a frame could not be read from an open device.
	ErrStream = errors.New("ambient: stream failed")
	// ErrDecode means a frame could not be turned into pixels.
	ErrDecode = errors.New("ambient: frame decode failed")
)

type Format struct {
	FourCC string
	Width  int
	Height int
}

// RawFrame is one captured buffer as the device delivered it.
type RawFrame struct {
	Format   Format
	Data     []byte
	Captured time.Time
}

// Source opens capture devices. Every monitor session opens a fresh Device.
type Source interface {
	Open(ctx context.Context) (Device, error)
}

// Device is an open capture device.
//
// Configure asks for a format and returns the one the device actually
// settled on, which may differ from the request.
// NextFrame blocks until a frame is available.
type Device interface {
	Configure(want Format) (Format, error)
	NextFrame(ctx context.Context) (RawFrame, error)
	Close() error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Device, error)

func (f SourceFunc) Open(ctx context.Context) (Device, error) { return f(ctx) }
