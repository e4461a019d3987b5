package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"catnip/config"
	"catnip/notify"
	"catnip/serve"
	"catnip/store"
	"catnip/video"
	"catnip/video/source"
)

var (
	configPath      = flag.String("config", "", "Path to the JSON config file; watched for changes.")
	deviceID        = flag.Int("device-id", 0, "Device ID of the camera.")
	minimumArea     = flag.Float64("minimum-area", 2500, "Minimum area for change before motion is detected.")
	recordingLength = flag.Float64("recording-length", 5.0, "Length to record after motion has been detected, in seconds.")
	detectionWait   = flag.Float64("detection-wait", 1.0, "Time to wait between processing frames, in seconds.")
	disableExposure = flag.Bool("disable-exposure", false, "Disable automatic exposure adjustment.")
	combineStills   = flag.Bool("combine-stills", false, "Record still sequences and assemble video off the capture path.")
	capturePath     = flag.String("capture-path", "", "Root directory for recordings; defaults to the OS data directory.")
	port            = flag.Int("port", 8080, "Port to host metrics and event endpoints.")
)

// applyFlags overrides config file values with any flag explicitly set on
// the command line.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device-id":
			cfg.DeviceID = *deviceID
		case "minimum-area":
			cfg.MinimumArea = *minimumArea
		case "recording-length":
			cfg.RecordingLengthSec = *recordingLength
		case "detection-wait":
			cfg.DetectionWaitSec = *detectionWait
		case "disable-exposure":
			cfg.AutoExposure = !*disableExposure
		case "combine-stills":
			cfg.CombineStills = *combineStills
		case "capture-path":
			cfg.CapturePath = *capturePath
		case "port":
			cfg.Port = *port
		}
	})
}

func main() {
	flag.Parse()

	ctx := context.Background()
	if *configPath != "" {
		if err := config.Load(ctx, *configPath); err != nil {
			log.Fatalf("Failed to load config %v: %v", *configPath, err)
		}
	}

	cfg := *config.Get()
	applyFlags(&cfg)
	if cfg.CapturePath == "" {
		dir, err := config.DefaultCaptureDir()
		if err != nil {
			log.Fatalf("Failed to resolve capture directory: %v", err)
		}
		cfg.CapturePath = dir
	}
	config.Set(&cfg)

	camera, err := source.NewVideoCapture(cfg.DeviceID)
	if err != nil {
		log.Fatalf("Could not open the camera device: %v", err)
	}
	camera.SetAutoExposure(cfg.AutoExposure)

	m := video.NewManager(camera, &video.Options{
		CaptureRoot:     cfg.CapturePath,
		RecordingLength: cfg.RecordingLength(),
		DetectionWait:   cfg.DetectionWait(),
		CombineStills:   cfg.CombineStills,
		// Read detection tunables through the config snapshot so edits to
		// the config file apply without a restart.
		Tunables: func() source.DiffParams {
			c := config.Get()
			return source.DiffParams{
				ThresholdLevel:   float32(c.ThresholdLevel),
				ThresholdMax:     255,
				DilateIterations: c.DilateIterations,
				MinContourArea:   c.MinimumArea,
			}
		},
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	ws := serve.NewEventSocket()
	mux.Handle("/eventsws", ws)
	m.Listeners = append(m.Listeners, ws)

	if cfg.EventStoreDSN != "" {
		st, err := store.Open(cfg.EventStoreDSN)
		if err != nil {
			log.Fatalf("Failed to open event store: %v", err)
		}
		m.Listeners = append(m.Listeners, st)
		mux.Handle("/events", &serve.EventServer{Store: st})

		push, err := notify.NewWebPush("admin@localhost", st.DB())
		if err != nil {
			log.Fatalf("Failed to initialize web push: %v", err)
		}
		push.RegisterHandlers(mux)
		m.Listeners = append(m.Listeners, &notify.Notifier{
			Listeners:  []notify.NotifyListener{push},
			HoursStart: cfg.NotificationHoursStart,
			HoursEnd:   cfg.NotificationHoursEnd,
		})
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Infof("Hosting debug endpoints on %v", addr)
		h := handlers.LoggingHandler(log.StandardLogger().Writer(), mux)
		log.Errorf("HTTP server exited: %v", http.ListenAndServe(addr, h))
	}()

	if err := m.Run(); err != nil {
		log.Fatalf("Manager exited with error: %v", err)
	}
}
