package transport

import (
	"castdeck/internal/core/domain"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Hints are the outbound media quality ceilings. All best-effort: a hint
// that cannot be applied is logged at debug and otherwise ignored.
type Hints struct {
	// MaxBitrateKbps caps the aggregate send rate per call via REMB.
	MaxBitrateKbps int
	// MaxFrameRate caps the capture frame rate; applied through CaptureHint.
	MaxFrameRate int
	// ScaleDown in (0,1) shrinks the capture resolution when frame rate is
	// the preferred axis.
	ScaleDown float64
	// PreferFrameRate sacrifices resolution (via ScaleDown) instead of
	// frame rate under pressure.
	PreferFrameRate bool
}

// CaptureHint applies the ceilings to a base capture hint. MaxFrameRate is
// always a hard cap; ScaleDown only applies when frame rate is the preferred
// axis, so resolution is the dimension that gives way.
func (h Hints) CaptureHint(base domain.CaptureHint) domain.CaptureHint {
	out := base
	if h.MaxFrameRate > 0 && (out.FrameRate == 0 || out.FrameRate > h.MaxFrameRate) {
		out.FrameRate = h.MaxFrameRate
	}
	if h.PreferFrameRate && h.ScaleDown > 0 && h.ScaleDown < 1 {
		out.Width = int(float64(out.Width) * h.ScaleDown)
		out.Height = int(float64(out.Height) * h.ScaleDown)
	}
	return out
}

// applyQualityHints runs once the peer connection reports connected. The
// only wire-level knob on the send side is a REMB packet advertising the
// bitrate ceiling; receivers honoring REMB adapt their feedback accordingly.
func applyQualityHints(pc *webrtc.PeerConnection, senders []*webrtc.RTPSender, hints Hints, logger *zap.SugaredLogger) {
	if hints.MaxBitrateKbps <= 0 {
		return
	}

	var ssrcs []uint32
	for _, sender := range senders {
		for _, enc := range sender.GetParameters().Encodings {
			ssrcs = append(ssrcs, uint32(enc.SSRC))
		}
	}
	if len(ssrcs) == 0 {
		return
	}

	pkt := &rtcp.ReceiverEstimatedMaximumBitrate{
		Bitrate: float32(hints.MaxBitrateKbps) * 1000,
		SSRCs:   ssrcs,
	}
	if err := pc.WriteRTCP([]rtcp.Packet{pkt}); err != nil {
		logger.Debugw("failed to send bitrate ceiling", "error", err)
	}
}
