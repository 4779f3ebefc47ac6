//go:build !linux || !cgo

package rtc

import (
	"errors"

	"github.com/pion/mediadevices"
)

var errNoCapture = errors.New("media capture is only supported on linux builds")

func newCodecSelector() (*mediadevices.CodecSelector, error) {
	return nil, errNoCapture
}

func captureUserMedia(*mediadevices.CodecSelector) (audio, video mediadevices.Track, err error) {
	return nil, nil, errNoCapture
}

func captureDisplay(*mediadevices.CodecSelector) (mediadevices.Track, error) {
	return nil, errNoCapture
}
