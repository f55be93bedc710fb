//go:build linux

package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/coreman2200/matryx/internal/ambient"
)

var gstInit sync.Once

// V4L2 captures from a video4linux node through a GStreamer pipeline.
type V4L2 struct {
	Device string // e.g. /dev/video0
	// StartTimeout bounds how long Configure waits for the pipeline to play.
	StartTimeout time.Duration
}

func NewV4L2(device string) *V4L2 {
	if device == "" {
		device = "/dev/video0"
	}
	return &V4L2{Device: device, StartTimeout: 3 * time.Second}
}

func (v *V4L2) Open(ctx context.Context) (ambient.Device, error) {
	if _, err := os.Stat(v.Device); err != nil {
		return nil, fmt.Errorf("%w: %v", ambient.ErrDeviceUnavailable, err)
	}
	gstInit.Do(func() { gst.Init(nil) })
	return &gstDevice{path: v.Device, timeout: v.StartTimeout}, nil
}

type gstDevice struct {
	path    string
	timeout time.Duration

	pipeline *gst.Pipeline
	sink     *app.Sink
	format   ambient.Format
}

func capsFor(f ambient.Format) string {
	switch f.FourCC {
	case ambient.FourCCMJPG:
		return fmt.Sprintf("image/jpeg,width=%d,height=%d", f.Width, f.Height)
	default:
		return fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", f.Width, f.Height)
	}
}

// Configure rebuilds the pipeline for the requested format. v4l2src either
// negotiates those caps or the pipeline errors out before reaching PLAYING.
func (d *gstDevice) Configure(want ambient.Format) (ambient.Format, error) {
	d.teardown()

	desc := fmt.Sprintf(
		"v4l2src device=%s ! %s ! appsink name=sink sync=false max-buffers=1 drop=true",
		d.path, capsFor(want))
	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return ambient.Format{}, fmt.Errorf("%w: %v", ambient.ErrConfig, err)
	}
	elem, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.SetState(gst.StateNull)
		return ambient.Format{}, fmt.Errorf("%w: %v", ambient.ErrConfig, err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.SetState(gst.StateNull)
		return ambient.Format{}, fmt.Errorf("%w: %v", ambient.ErrConfig, err)
	}
	if err := waitPlaying(pipeline, d.timeout); err != nil {
		pipeline.SetState(gst.StateNull)
		return ambient.Format{}, fmt.Errorf("%w: %v", ambient.ErrConfig, err)
	}

	d.pipeline = pipeline
	d.sink = app.SinkFromElement(elem)
	d.format = want
	log.Debug().Str("component", "capture").Str("pipeline", desc).Msg("v4l2 pipeline playing")
	return want, nil
}

func waitPlaying(p *gst.Pipeline, timeout time.Duration) error {
	bus := p.GetPipelineBus()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("%s (%s)", gerr.Error(), gerr.DebugString())
		case gst.MessageEOS:
			return fmt.Errorf("end of stream before first frame")
		case gst.MessageStateChanged:
			if msg.Source() != p.GetName() {
				continue
			}
			if _, state := msg.ParseStateChanged(); state == gst.StatePlaying {
				return nil
			}
		}
	}
	return fmt.Errorf("pipeline did not reach PLAYING within %s", timeout)
}

func (d *gstDevice) NextFrame(ctx context.Context) (ambient.RawFrame, error) {
	if d.sink == nil {
		return ambient.RawFrame{}, fmt.Errorf("%w: pipeline not configured", ambient.ErrStream)
	}
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	sink := d.sink
	go func() {
		sample := sink.PullSample()
		if sample == nil {
			ch <- result{err: fmt.Errorf("%w: no sample (eos or stopped)", ambient.ErrStream)}
			return
		}
		buffer := sample.GetBuffer()
		if buffer == nil {
			ch <- result{err: fmt.Errorf("%w: sample without buffer", ambient.ErrStream)}
			return
		}
		mapInfo := buffer.Map(gst.MapRead)
		data := mapInfo.Bytes()
		out := make([]byte, len(data))
		copy(out, data)
		buffer.Unmap()
		if len(out) == 0 {
			ch <- result{err: fmt.Errorf("%w: empty buffer", ambient.ErrStream)}
			return
		}
		ch <- result{data: out}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return ambient.RawFrame{}, r.err
		}
		return ambient.RawFrame{Format: d.format, Data: r.data, Captured: time.Now()}, nil
	case <-ctx.Done():
		// stopping the pipeline unblocks the pending pull
		d.teardown()
		return ambient.RawFrame{}, ctx.Err()
	}
}

func (d *gstDevice) teardown() {
	if d.pipeline == nil {
		return
	}
	if err := d.pipeline.SetState(gst.StateNull); err != nil {
		log.Debug().Err(err).Str("component", "capture").Msg("pipeline stop")
	}
	d.pipeline = nil
	d.sink = nil
}

func (d *gstDevice) Close() error {
	d.teardown()
	return nil
}
