package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/matryx/internal/ambient"
)

func TestSyntheticScriptedOpens(t *testing.T) {
	s := &Synthetic{FailOpens: 2}
	ctx := context.Background()

	_, err := s.Open(ctx)
	assert.ErrorIs(t, err, ambient.ErrDeviceUnavailable)
	_, err = s.Open(ctx)
	assert.ErrorIs(t, err, ambient.ErrDeviceUnavailable)
	dev, err := s.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Opens())
	require.NoError(t, dev.Close())
}

func TestSyntheticFallsBackToMJPG(t *testing.T) {
	s := &Synthetic{RejectRGB: true, Level: Constant(180)}
	dev, err := s.Open(context.Background())
	require.NoError(t, err)
	defer dev.Close()

	f, err := ambient.Negotiate(dev, ambient.Format{Width: 32, Height: 24})
	require.NoError(t, err)
	assert.Equal(t, ambient.FourCCMJPG, f.FourCC)

	frame, err := dev.NextFrame(context.Background())
	require.NoError(t, err)
	level, err := ambient.Reduce(frame, 0, 90)
	require.NoError(t, err)
	assert.InDelta(t, 180, int(level), 2)
}

func TestSyntheticRGBFrame(t *testing.T) {
	s := &Synthetic{Level: Constant(33)}
	dev, err := s.Open(context.Background())
	require.NoError(t, err)
	_, err = dev.Configure(ambient.Format{FourCC: ambient.FourCCRGB3, Width: 4, Height: 2})
	require.NoError(t, err)

	f, err := dev.NextFrame(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.Data, 4*2*3)
	level, err := ambient.Reduce(f, 0, 90)
	require.NoError(t, err)
	assert.Equal(t, uint8(33), level)

	require.NoError(t, dev.Close())
	_, err = dev.NextFrame(context.Background())
	assert.ErrorIs(t, err, ambient.ErrStream)
}

func TestSyntheticReadFailure(t *testing.T) {
	s := &Synthetic{FailReads: 2}
	dev, err := s.Open(context.Background())
	require.NoError(t, err)
	_, err = dev.Configure(ambient.Format{FourCC: ambient.FourCCRGB3, Width: 2, Height: 2})
	require.NoError(t, err)

	_, err = dev.NextFrame(context.Background())
	require.NoError(t, err)
	_, err = dev.NextFrame(context.Background())
	assert.ErrorIs(t, err, ambient.ErrStream)
}

func TestSyntheticFrameDelayHonoursContext(t *testing.T) {
	s := &Synthetic{FrameDelay: time.Hour}
	dev, err := s.Open(context.Background())
	require.NoError(t, err)
	_, err = dev.Configure(ambient.Format{FourCC: ambient.FourCCRGB3, Width: 2, Height: 2})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = dev.NextFrame(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDayNightSwings(t *testing.T) {
	f := DayNight(10, 200, time.Second)
	start := time.Now()
	assert.InDelta(t, 200, int(f(start)), 2)
	assert.InDelta(t, 10, int(f(start.Add(500*time.Millisecond))), 2)
	assert.Equal(t, uint8(200), DayNight(10, 200, 0)(start))
}

func TestMonitorWithSynthetic(t *testing.T) {
	s := &Synthetic{FailOpens: 1, Level: Constant(12)}
	m := ambient.NewMonitor(s, nil, ambient.Config{
		Preferred:   ambient.Format{Width: 8, Height: 8},
		Backoff:     5 * time.Millisecond,
		SampleDelay: time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, m.Cell().Updated, 2*time.Second, time.Millisecond)
	assert.Equal(t, uint8(12), m.Cell().Load())
	assert.Equal(t, 2, m.Attempt())
}

func TestV4L2MissingDevice(t *testing.T) {
	_, err := NewV4L2("/dev/definitely-not-a-camera").Open(context.Background())
	assert.ErrorIs(t, err, ambient.ErrDeviceUnavailable)
}
