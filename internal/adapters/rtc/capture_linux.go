//go:build linux && cgo

package rtc

import (
	"fmt"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const videoBitRate = 1_500_000

// newCodecSelector builds the VP8+Opus selector shared by capture and the
// peer connection media engine.
func newCodecSelector() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = videoBitRate

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

// captureUserMedia opens the microphone and camera (V4L2 + malgo). Both
// tracks are required; a busy device fails the whole acquisition so the
// caller can surface one error instead of a half-working call.
func captureUserMedia(selector *mediadevices.CodecSelector) (audio, video mediadevices.Track, err error) {
	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(c *mediadevices.MediaTrackConstraints) {},
		Video: func(c *mediadevices.MediaTrackConstraints) {
			c.FrameFormat = prop.FrameFormat(frame.FormatYUY2)
			c.Width = prop.Int(1280)
			c.Height = prop.Int(720)
		},
		Codec: selector,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get user media: %w", err)
	}

	for _, t := range stream.GetTracks() {
		switch t.Kind() {
		case webrtc.RTPCodecTypeAudio:
			audio = t
		case webrtc.RTPCodecTypeVideo:
			video = t
		}
	}
	if audio == nil || video == nil {
		for _, t := range stream.GetTracks() {
			_ = t.Close()
		}
		return nil, nil, fmt.Errorf("get user media: incomplete track set")
	}
	log.Debug().Str("module", "rtc").Str("audio", audio.ID()).Str("video", video.ID()).Msg("captured local media")
	return audio, video, nil
}

// captureDisplay opens a screen capture track.
func captureDisplay(selector *mediadevices.CodecSelector) (mediadevices.Track, error) {
	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {},
		Codec: selector,
	})
	if err != nil {
		return nil, fmt.Errorf("get display media: %w", err)
	}
	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, fmt.Errorf("get display media: no video track")
	}
	return tracks[0], nil
}
