// Command blobtrack-replay runs the blob tracker over a recorded detection
// log and streams the resulting 32-byte frames to a serial port, exactly as
// the on-device control loop would. Without a port the frames are
// hex-dumped to stdout.
//
// The input is a JSON-lines file with one frame per line:
//
//	{"blobs":[{"X":120,"Y":80,"W":30,"H":28,"Rotation":0,"Density":0.7,"Roundness":0.8,"Pixels":600,"Code":1}],"stats":{...}}
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/Jarvis-X/blobtrack-go/ibus"
	"github.com/Jarvis-X/blobtrack-go/internal/log"
	"github.com/Jarvis-X/blobtrack-go/track"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func presetByName(name string) (track.ThresholdSet, error) {
	switch strings.ToLower(name) {
	case "green":
		return track.Green, nil
	case "purple":
		return track.Purple, nil
	default:
		return nil, errors.Errorf("unknown color preset %q (want green or purple)", name)
	}
}

// ledLogger stands in for the on-device status LED.
type ledLogger struct{}

func (ledLogger) TrackingAcquired() { log.L().Info("status led on") }
func (ledLogger) TrackingLost()     { log.L().Info("status led off") }

func main() {
	var (
		input         = flag.String("input", "", "recorded detection log (JSON lines, required)")
		portName      = flag.String("port", envOr("BLOBTRACK_PORT", ""), "serial port for frame output; hex dump to stdout when empty")
		baudRate      = flag.Int("baud", 115200, "serial baud rate")
		color         = flag.String("color", "purple", "color preset: green or purple")
		normLevel     = flag.Int("norm", 1, "feature distance norm: 1 (L1) or 2 (L2)")
		distThreshold = flag.Float64("dist-threshold", 100, "max feature distance for association")
		windowSize    = flag.Int("window", 3, "history window size for feature smoothing")
		updateRate    = flag.Float64("update-rate", 0, "adaptive threshold update rate in [0,1]")
		logLevel      = flag.String("log-level", envOr("BLOBTRACK_LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	)
	flag.Parse()
	log.Init(*logLevel)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "blobtrack-replay: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*input, *portName, *baudRate, *color, *normLevel, *distThreshold, *windowSize, *updateRate); err != nil {
		log.L().Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func run(input, portName string, baudRate int, color string, normLevel int, distThreshold float64, windowSize int, updateRate float64) error {
	thresholds, err := presetByName(color)
	if err != nil {
		return err
	}

	file, err := os.Open(input)
	if err != nil {
		return errors.Wrap(err, "Can't open detection log")
	}
	defer file.Close()
	source, err := track.LoadReplay(file)
	if err != nil {
		return err
	}
	log.L().Info("replay loaded", "frames", source.Len(), "color", color)

	var sink ibus.Sink
	if portName != "" {
		serialSink, err := ibus.OpenSerialSink(portName, baudRate)
		if err != nil {
			return err
		}
		sink = serialSink
		log.L().Info("serial sink open", "port", portName, "baud", baudRate)
	} else {
		sink = hexSink{}
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blob := track.NewTrackedBlob(normLevel, distThreshold, windowSize, 0)
	tracker := track.NewBlobTracker(blob, thresholds, source,
		track.WithUpdateRate(updateRate),
		track.WithIndicator(ledLogger{}),
		track.WithLogger(log.L()),
	)

	for {
		fv, ok, err := tracker.Track(ctx)
		if errors.Is(err, track.ErrEndOfReplay) {
			log.L().Info("replay finished", "session", tracker.SessionID())
			return nil
		}
		if errors.Is(err, context.Canceled) {
			log.L().Info("replay interrupted", "session", tracker.SessionID())
			return nil
		}
		if err != nil {
			return err
		}
		// No range finder on the replay path; the wire sentinel stands in.
		frame := ibus.Encode(fv, ok, ibus.ReadDistance(nil))
		if err := sink.WriteFrame(frame); err != nil {
			return err
		}
	}
}

// hexSink dumps frames as one hex line each.
type hexSink struct{}

func (hexSink) WriteFrame(f ibus.Frame) error {
	_, err := fmt.Println(hex.EncodeToString(f[:]))
	return err
}

func (hexSink) Close() error { return nil }
