//go:build !linux

package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/coreman2200/matryx/internal/ambient"
)

// V4L2 is only available on linux.
type V4L2 struct {
	Device       string
	StartTimeout time.Duration
}

func NewV4L2(device string) *V4L2 { return &V4L2{Device: device} }

func (v *V4L2) Open(ctx context.Context) (ambient.Device, error) {
	return nil, fmt.Errorf("%w: video4linux not supported on this platform", ambient.ErrDeviceUnavailable)
}
