package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

// ErrAccessDenied means the platform refused to open a capture device.
var ErrAccessDenied = errors.New("media access denied")

// Source produces one local track of one media kind.
type Source interface {
	Kind() string
	Open(c Constraints) (*Track, error)
}

// PipelineSource captures a device through an external GStreamer pipeline
// that delivers RTP to a loopback UDP port, pumped into a local track.
type PipelineSource struct {
	kind     string
	codec    webrtc.RTPCodecCapability
	payload  string // rtp payloader elements
	buildSrc func(c Constraints) string
	envVar   string // full-pipeline override
	trackID  string
	mtu      int
}

// NewMicrophoneSource captures the default audio input as Opus RTP.
func NewMicrophoneSource() *PipelineSource {
	return &PipelineSource{
		kind:    KindAudio,
		codec:   webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		payload: "opusenc bitrate=32000 ! rtpopuspay pt=111",
		buildSrc: func(c Constraints) string {
			src := "autoaudiosrc ! audioconvert ! audioresample"
			if a := c.Audio; a != nil {
				src += fmt.Sprintf(
					" ! webrtcdsp echo-cancel=%t noise-suppression=%t gain-control=%t",
					a.EchoCancellation, a.NoiseSuppression, a.AutoGainControl)
			}
			return src
		},
		envVar:  "PARLEY_AUDIO_PIPELINE",
		trackID: "mic-opus",
		mtu:     1200,
	}
}

// NewCameraSource captures the default camera as H264 RTP.
func NewCameraSource() *PipelineSource {
	return &PipelineSource{
		kind:    KindVideo,
		codec:   webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		payload: "x264enc tune=zerolatency speed-preset=ultrafast key-int-max=60 ! h264parse config-interval=1 ! rtph264pay pt=96 config-interval=1",
		buildSrc: func(c Constraints) string {
			v := c.Video
			if v == nil {
				v = DefaultConstraints().Video
			}
			return fmt.Sprintf(
				"autovideosrc ! video/x-raw,width=%d,height=%d,framerate=%d/1 ! videoconvert",
				v.Width, v.Height, v.FrameRate)
		},
		envVar:  "PARLEY_VIDEO_PIPELINE",
		trackID: "camera-h264",
		mtu:     1400,
	}
}

// NewScreenSource captures the desktop as H264 RTP.
func NewScreenSource() *PipelineSource {
	return &PipelineSource{
		kind:    KindVideo,
		codec:   webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		payload: "x264enc tune=zerolatency speed-preset=ultrafast key-int-max=60 ! h264parse config-interval=1 ! rtph264pay pt=96 config-interval=1",
		buildSrc: func(c Constraints) string {
			fr := 15
			if c.Video != nil && c.Video.FrameRate > 0 {
				fr = c.Video.FrameRate
			}
			return fmt.Sprintf("ximagesrc use-damage=0 ! video/x-raw,framerate=%d/1 ! videoscale ! videoconvert", fr)
		},
		envVar:  "PARLEY_SCREEN_PIPELINE",
		trackID: "screen-h264",
		mtu:     1400,
	}
}

// NewSystemAudioSource captures system playback audio (for screen share
// with sound). Not every platform exposes a monitor device, so opening it
// may fail where microphone capture succeeds.
func NewSystemAudioSource() *PipelineSource {
	return &PipelineSource{
		kind:    KindAudio,
		codec:   webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		payload: "opusenc bitrate=64000 ! rtpopuspay pt=111",
		buildSrc: func(Constraints) string {
			return "pulsesrc device=@DEFAULT_MONITOR@ ! audioconvert ! audioresample"
		},
		envVar:  "PARLEY_SYSTEM_AUDIO_PIPELINE",
		trackID: "system-opus",
		mtu:     1200,
	}
}

// Kind returns the media kind this source produces.
func (p *PipelineSource) Kind() string {
	return p.kind
}

// Open starts the capture pipeline and returns a live track. Pipeline start
// failure maps to ErrAccessDenied, mirroring a refused device permission.
func (p *PipelineSource) Open(c Constraints) (*Track, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(p.codec, p.kind, p.trackID)
	if err != nil {
		return nil, fmt.Errorf("create %s track: %w", p.kind, err)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return nil, fmt.Errorf("open %s capture port: %w", p.kind, err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port

	pipeline := os.Getenv(p.envVar)
	if pipeline == "" {
		pipeline = fmt.Sprintf("%s ! %s ! udpsink host=127.0.0.1 port=%d",
			p.buildSrc(c), p.payload, port)
	} else {
		pipeline = fmt.Sprintf("%s ! udpsink host=127.0.0.1 port=%d", pipeline, port)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd, err := startPipeline(ctx, pipeline, p.kind)
	if err != nil {
		cancel()
		conn.Close()
		return nil, fmt.Errorf("%w: %s capture: %v", ErrAccessDenied, p.kind, err)
	}

	out := NewTrack(track, p.kind, func() {
		cancel()
		conn.Close()
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	})

	go pumpRTP(ctx, conn, track, out, p.mtu)
	return out, nil
}

// startPipeline launches gst-launch with the given element chain.
func startPipeline(ctx context.Context, pipeline, tag string) (*exec.Cmd, error) {
	args := append([]string{"-e"}, strings.Fields(pipeline)...)
	cmd := exec.CommandContext(ctx, "gst-launch-1.0", args...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	slog.Debug("started capture pipeline", "tag", tag, "pipeline", pipeline)
	return cmd, nil
}

// pumpRTP forwards RTP packets from the loopback port into the track.
// Packets are dropped while the track is disabled, which keeps the sender
// negotiated but silent.
func pumpRTP(ctx context.Context, conn *net.UDPConn, track *webrtc.TrackLocalStaticRTP, gate *Track, mtu int) {
	buf := make([]byte, mtu)
	for {
		// keep the read unblocked with a short timeout
		_ = conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				select {
				case <-ctx.Done():
					return
				default:
					continue
				}
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("capture read error", "kind", gate.Kind(), "err", err)
			return
		}

		if !gate.Enabled() {
			continue
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			// ignore non-RTP
			continue
		}
		if err := track.WriteRTP(&pkt); err != nil {
			slog.Error("write to local track failed", "kind", gate.Kind(), "err", err)
			return
		}
	}
}
