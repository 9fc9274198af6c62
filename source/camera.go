package source

import (
	"context"
	"errors"
	"fmt"
	"gocv.io/x/gocv"
)

// ErrCaptureFailed is returned when the camera stops delivering frames
var ErrCaptureFailed = errors.New("camera stopped delivering frames")

// CameraParams defines the capture device settings
type CameraParams struct {
	// Device is the camera index or a video file/stream path
	Device string
	// Width and Height request a capture resolution, zero keeps the device
	// default
	Width  int
	Height int
	// MaxReadFailures is the number of consecutive failed reads tolerated
	// before capture is abandoned
	MaxReadFailures int
}

// Camera captures frames from a video device and publishes them to a Slot
type Camera struct {
	params CameraParams
	video  *gocv.VideoCapture
}

// NewCamera opens the capture device
func NewCamera(p CameraParams) (*Camera, error) {

	video, err := gocv.OpenVideoCapture(p.Device)

	if err != nil {
		return nil, fmt.Errorf("error opening video capture device %s: %w", p.Device, err)
	}

	if p.Width > 0 && p.Height > 0 {
		video.Set(gocv.VideoCaptureFrameWidth, float64(p.Width))
		video.Set(gocv.VideoCaptureFrameHeight, float64(p.Height))
	}

	if p.MaxReadFailures <= 0 {
		p.MaxReadFailures = 30
	}

	return &Camera{
		params: p,
		video:  video,
	}, nil
}

// Size returns the resolution the device is capturing at
func (c *Camera) Size() (int, int) {
	return int(c.video.Get(gocv.VideoCaptureFrameWidth)),
		int(c.video.Get(gocv.VideoCaptureFrameHeight))
}

// Run reads frames until the context is cancelled and publishes each one to
// the slot.  The slot is closed on return so the consumer is released
func (c *Camera) Run(ctx context.Context, slot *Slot) error {

	defer slot.Close()

	failures := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		img := gocv.NewMat()

		if ok := c.video.Read(&img); !ok || img.Empty() {
			img.Close()
			failures++

			if failures >= c.params.MaxReadFailures {
				return fmt.Errorf("%w: %d consecutive read failures",
					ErrCaptureFailed, failures)
			}

			continue
		}

		failures = 0

		if !slot.Publish(img) {
			return nil
		}
	}
}

// Close releases the capture device
func (c *Camera) Close() error {
	return c.video.Close()
}
