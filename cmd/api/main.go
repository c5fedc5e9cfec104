package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/presence/internal/api"
	"github.com/your-org/presence/internal/api/handlers"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/internal/vision"
	"github.com/your-org/presence/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting Presence API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Initialize ONNX Runtime and the face pipeline
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

	detPath := filepath.Join(cfg.Vision.ModelsDir, "yolov8n-face.onnx")
	detector, err := vision.NewDetector(detPath, float32(cfg.Vision.DetectionThreshold), nil)
	if err != nil {
		slog.Error("init face detector", "error", err)
		os.Exit(1)
	}
	defer detector.Close()

	extractor := vision.NewExtractor(detector, cfg.Vision.FaceSize)
	faceSvc := face.NewService(extractor, db, minioStore, cfg.Vision.RecognitionThreshold)

	if _, err := faceSvc.Reload(context.Background(), nil); err != nil {
		slog.Warn("initial template load", "error", err)
	}

	workStartHour, workStartMinute, err := cfg.Attendance.WorkStartClock()
	if err != nil {
		slog.Error("parse work_start", "error", err)
		os.Exit(1)
	}
	reconciler := attendance.NewService(db, minioStore, cfg.Attendance.Cooldown, workStartHour, workStartMinute)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume reconciled events and broadcast them to live dashboards
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create event consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeEvents(ctx, "api-events", func(ctx context.Context, msg jetstream.Msg) error {
		var event models.AttendanceEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			return err
		}

		evtType := "attendance_recorded"
		if !event.Recognized {
			evtType = "face_unrecognized"
		}

		station := ""
		if event.StationID != nil {
			station = event.StationID.String()
		}

		hub.BroadcastEvent(&dto.WSEvent{
			Type:    evtType,
			Station: station,
			Data:    event,
		})
		return nil
	})
	if err != nil {
		slog.Warn("start event consumer", "error", err)
	}

	// Setup router
	router := api.NewRouter(api.Deps{
		APIKey:     cfg.Server.APIKey,
		Attendance: handlers.NewAttendanceHandler(faceSvc, reconciler, minioStore, producer),
		Personnel:  handlers.NewPersonnelHandler(db, faceSvc),
		System: handlers.NewSystemHandler(map[string]handlers.Pinger{
			"postgres": db,
			"minio":    minioStore,
			"nats":     producer,
		}),
		Hub: hub,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// getONNXLibPath returns the ONNX Runtime shared library path.
func getONNXLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "linux":
		return "libonnxruntime.so"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "onnxruntime.dll"
	}
}
