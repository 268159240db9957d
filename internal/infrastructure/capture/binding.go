package capture

import (
	"context"
	"fmt"

	"castdeck/internal/core/domain"
	"castdeck/internal/core/ports"
	"castdeck/pkg/config"
	"castdeck/pkg/utils"

	"go.uber.org/zap"
)

// Binding implements the capture port over synthetic media generators. The
// broadcaster runs headless, so "capture" means attaching an RTP-producing
// generator per track; the generator is the platform-capture seam a desktop
// build replaces with a real grabber.
type Binding struct {
	devices map[string]config.Device
	logger  *zap.SugaredLogger
}

func NewBinding(devices []config.Device, logger *zap.SugaredLogger) ports.CaptureBinding {
	byID := make(map[string]config.Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}
	return &Binding{devices: byID, logger: logger}
}

// Acquire builds a live stream for the source descriptor. Device-scoped
// kinds validate the selector against the configured device list; an unknown
// selector is ErrDeviceUnavailable, never fatal to the session.
func (b *Binding) Acquire(ctx context.Context, kind domain.SourceKind, deviceID string, hint domain.CaptureHint) (*domain.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("capture cancelled: %w", domain.ErrUserCancelled)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid source kind %q", kind)
	}

	if deviceID != "" {
		dev, ok := b.devices[deviceID]
		if !ok {
			return nil, fmt.Errorf("device %s: %w", deviceID, domain.ErrDeviceUnavailable)
		}
		if kind == domain.KindScreen {
			return nil, fmt.Errorf("device selector on screen capture: %w", domain.ErrDeviceUnavailable)
		}
		if (kind == domain.KindCamera && dev.Kind != "camera") ||
			(kind == domain.KindMicrophone && dev.Kind != "microphone") {
			return nil, fmt.Errorf("device %s is a %s, not a %s: %w",
				deviceID, dev.Kind, kind, domain.ErrDeviceUnavailable)
		}
	}

	streamID := utils.NewID("stm")
	var tracks []*domain.MediaTrack
	var snapshot func() ([]byte, error)

	switch kind {
	case domain.KindScreen:
		video, err := newVideoTrack(utils.NewID("trk"), hint)
		if err != nil {
			return nil, fmt.Errorf("failed to create screen video track: %w", err)
		}
		// Screen capture carries system audio alongside the frames.
		audio, err := newAudioTrack(utils.NewID("trk"))
		if err != nil {
			video.Stop()
			return nil, fmt.Errorf("failed to create screen audio track: %w", err)
		}
		tracks = append(tracks, video.mediaTrack(), audio.mediaTrack())
		snapshot = video.snapshot

	case domain.KindCamera:
		video, err := newVideoTrack(utils.NewID("trk"), hint)
		if err != nil {
			return nil, fmt.Errorf("failed to create camera track: %w", err)
		}
		tracks = append(tracks, video.mediaTrack())
		snapshot = video.snapshot

	case domain.KindMicrophone:
		audio, err := newAudioTrack(utils.NewID("trk"))
		if err != nil {
			return nil, fmt.Errorf("failed to create microphone track: %w", err)
		}
		tracks = append(tracks, audio.mediaTrack())
	}

	b.logger.Infow("stream acquired",
		"stream_id", streamID,
		"kind", kind,
		"device_id", deviceID,
		"tracks", len(tracks),
	)
	return domain.NewMediaStream(streamID, tracks, snapshot), nil
}
