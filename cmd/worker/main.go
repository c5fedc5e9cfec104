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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/presence/internal/attendance"
	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/face"
	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/internal/vision"
)

// templateReloadInterval bounds how stale a worker's in-memory index can
// get relative to enrollments done through the API.
const templateReloadInterval = 5 * time.Minute

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting Presence capture worker",
		"workers", cfg.Vision.WorkerCount,
		"cpu_cores", runtime.NumCPU(),
	)

	// Initialize ONNX Runtime
	ort.SetSharedLibraryPath(getONNXLibPath())
	if err := ort.InitializeEnvironment(); err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer ort.DestroyEnvironment()

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

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// Face pipeline
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
		slog.Error("initial template load", "error", err)
		os.Exit(1)
	}

	workStartHour, workStartMinute, err := cfg.Attendance.WorkStartClock()
	if err != nil {
		slog.Error("parse work_start", "error", err)
		os.Exit(1)
	}
	reconciler := attendance.NewService(db, minioStore, cfg.Attendance.Cooldown, workStartHour, workStartMinute)

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming capture tasks
	err = consumer.ConsumeCaptures(ctx, "capture-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.CaptureTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal capture task", "error", err)
			return nil // Don't retry on unmarshal errors
		}

		if err := processCapture(ctx, task, faceSvc, reconciler, minioStore, producer); err != nil {
			return fmt.Errorf("process capture %s: %w", task.TaskID, err)
		}
		return nil
	}, cfg.Vision.WorkerCount)
	if err != nil {
		slog.Error("start capture consumer", "error", err)
		os.Exit(1)
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Periodically refresh templates and report queue depth
	go func() {
		reload := time.NewTicker(templateReloadInterval)
		depth := time.NewTicker(10 * time.Second)
		defer reload.Stop()
		defer depth.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-reload.C:
				if _, err := faceSvc.Reload(ctx, nil); err != nil {
					slog.Warn("reload templates", "error", err)
				}
			case <-depth.C:
				if d, err := producer.QueueDepth(ctx); err == nil {
					observability.QueueDepth.Set(float64(d))
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

// processCapture runs the full recognition and reconciliation pipeline for
// one queued frame.
func processCapture(ctx context.Context, task models.CaptureTask, faceSvc *face.Service, reconciler *attendance.Service, minioStore *storage.MinIOStore, producer *queue.Producer) error {
	observability.CapturesProcessed.WithLabelValues("queue").Inc()

	imageData, err := minioStore.GetObject(ctx, task.ImageRef)
	if err != nil {
		return fmt.Errorf("fetch capture image: %w", err)
	}

	rec, err := faceSvc.Recognize(imageData, 0)
	if err != nil {
		return fmt.Errorf("recognize: %w", err)
	}

	event := models.AttendanceEvent{
		TaskID:     task.TaskID,
		StationID:  task.StationID,
		Recognized: false,
		Timestamp:  time.Now(),
	}

	if rec.FaceFound && rec.PersonnelID != nil {
		result, err := reconciler.Process(ctx, *rec.PersonnelID, float32(rec.Score), time.Now(), task.ImageRef)
		if err != nil {
			return fmt.Errorf("reconcile attendance: %w", err)
		}
		event.PersonnelID = rec.PersonnelID
		event.PersonnelName = result.PersonnelName
		event.Outcome = result.Outcome
		event.Status = result.Status
		event.Confidence = float32(rec.Score)
		event.Recognized = true
	}

	station := "all"
	if task.StationID != nil {
		station = task.StationID.String()
	}
	if err := producer.PublishEvent(ctx, station, event); err != nil {
		slog.Warn("publish attendance event", "error", err)
	}
	return nil
}

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
