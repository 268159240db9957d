package capture

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"castdeck/internal/core/domain"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
)

const (
	defaultFrameRate = 30
	defaultWidth     = 1280
	defaultHeight    = 720

	videoClockRate = 90000
	audioClockRate = 48000
	audioFrameMs   = 20

	rtpMTU = 1200
)

// videoSource produces a VP8-packetized test pattern at the hinted frame
// rate. The pattern is deterministic per frame index so snapshots are stable
// in tests.
type videoSource struct {
	id     string
	local  *webrtc.TrackLocalStaticRTP
	width  int
	height int

	frame uint64
	done  chan struct{}
	once  sync.Once
}

func newVideoTrack(id string, hint domain.CaptureHint) (*videoSource, error) {
	local, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: videoClockRate},
		id,
		"castdeck-video",
	)
	if err != nil {
		return nil, err
	}

	fps := hint.FrameRate
	if fps <= 0 {
		fps = defaultFrameRate
	}
	width, height := hint.Width, hint.Height
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}

	v := &videoSource{
		id:     id,
		local:  local,
		width:  width,
		height: height,
		done:   make(chan struct{}),
	}
	go v.run(fps)
	return v, nil
}

func (v *videoSource) run(fps int) {
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	seq := uint16(rand.Uint32())
	ts := rand.Uint32()
	ssrc := rand.Uint32()
	tsStep := uint32(videoClockRate / fps)

	payload := make([]byte, rtpMTU)

	for {
		select {
		case <-v.done:
			return
		case <-ticker.C:
			atomic.AddUint64(&v.frame, 1)
			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					Marker:         true,
					PayloadType:    96,
					SequenceNumber: seq,
					Timestamp:      ts,
					SSRC:           ssrc,
				},
				Payload: payload,
			}
			if err := v.local.WriteRTP(pkt); err != nil {
				// The track is detached; nothing to write to anymore.
				return
			}
			seq++
			ts += tsStep
		}
	}
}

func (v *videoSource) Stop() {
	v.once.Do(func() { close(v.done) })
}

func (v *videoSource) mediaTrack() *domain.MediaTrack {
	return domain.NewMediaTrack(v.id, domain.TrackVideo, v.local, v.Stop)
}

// snapshot renders the current test-pattern frame as a JPEG.
func (v *videoSource) snapshot() ([]byte, error) {
	frame := atomic.LoadUint64(&v.frame)
	img := image.NewRGBA(image.Rect(0, 0, v.width, v.height))

	// Horizontal gradient that shifts with the frame index.
	shift := uint8(frame % 256)
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x*255/v.width) + shift,
				G: uint8(y * 255 / v.height),
				B: shift,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// audioSource produces Opus-framed silence every 20ms.
type audioSource struct {
	id    string
	local *webrtc.TrackLocalStaticRTP

	done chan struct{}
	once sync.Once
}

func newAudioTrack(id string) (*audioSource, error) {
	local, err := webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audioClockRate, Channels: 2},
		id,
		"castdeck-audio",
	)
	if err != nil {
		return nil, err
	}

	a := &audioSource{id: id, local: local, done: make(chan struct{})}
	go a.run()
	return a, nil
}

func (a *audioSource) run() {
	ticker := time.NewTicker(audioFrameMs * time.Millisecond)
	defer ticker.Stop()

	seq := uint16(rand.Uint32())
	ts := rand.Uint32()
	ssrc := rand.Uint32()
	tsStep := uint32(audioClockRate * audioFrameMs / 1000)

	// Minimal Opus silence frame.
	payload := []byte{0xf8, 0xff, 0xfe}

	for {
		select {
		case <-a.done:
			return
		case <-ticker.C:
			pkt := &rtp.Packet{
				Header: rtp.Header{
					Version:        2,
					PayloadType:    111,
					SequenceNumber: seq,
					Timestamp:      ts,
					SSRC:           ssrc,
				},
				Payload: payload,
			}
			if err := a.local.WriteRTP(pkt); err != nil {
				return
			}
			seq++
			ts += tsStep
		}
	}
}

func (a *audioSource) Stop() {
	a.once.Do(func() { close(a.done) })
}

func (a *audioSource) mediaTrack() *domain.MediaTrack {
	return domain.NewMediaTrack(a.id, domain.TrackAudio, a.local, a.Stop)
}
