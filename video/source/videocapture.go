package source

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// VideoCapture adapts a gocv capture device to the Camera interface.
type VideoCapture struct {
	deviceID int
	cap      *gocv.VideoCapture
}

func NewVideoCapture(deviceID int) (*VideoCapture, error) {
	cap, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", ErrDeviceUnavailable, deviceID, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: device %d", ErrDeviceUnavailable, deviceID)
	}
	return &VideoCapture{
		deviceID: deviceID,
		cap:      cap,
	}, nil
}

func (v *VideoCapture) Capture() (Frame, error) {
	mat := gocv.NewMat()
	if ok := v.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return Frame{}, fmt.Errorf("%w: device %d", ErrNoFrame, v.deviceID)
	}
	return Frame{Mat: mat, Time: time.Now()}, nil
}

func (v *VideoCapture) IsOpened() bool {
	return v.cap.IsOpened()
}

func (v *VideoCapture) Width() int {
	return int(v.cap.Get(gocv.VideoCaptureFrameWidth))
}

func (v *VideoCapture) Height() int {
	return int(v.cap.Get(gocv.VideoCaptureFrameHeight))
}

func (v *VideoCapture) FPS() float64 {
	fps := v.cap.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		// Some devices don't report a rate.
		fps = 20
	}
	return fps
}

func (v *VideoCapture) SetAutoExposure(enable bool) {
	// Follows the v4l2 convention: 0 selects automatic exposure, 1 manual.
	if enable {
		v.cap.Set(gocv.VideoCaptureAutoExposure, 0)
		v.cap.Set(gocv.VideoCaptureExposure, -7)
	} else {
		v.cap.Set(gocv.VideoCaptureAutoExposure, 1)
		v.cap.Set(gocv.VideoCaptureExposure, 0)
	}
	log.Debugf("Auto exposure set to %v on device %d", enable, v.deviceID)
}

func (v *VideoCapture) Close() error {
	return v.cap.Close()
}
