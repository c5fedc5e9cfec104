package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Vision     VisionConfig     `yaml:"vision"`
	Attendance AttendanceConfig `yaml:"attendance"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type VisionConfig struct {
	ModelsDir            string  `yaml:"models_dir"`
	FaceSize             int     `yaml:"face_size"`
	DetectionThreshold   float64 `yaml:"detection_threshold"`
	RecognitionThreshold float64 `yaml:"recognition_threshold"`
	WorkerCount          int     `yaml:"worker_count"`
}

type AttendanceConfig struct {
	Cooldown      time.Duration `yaml:"cooldown"`
	WorkStart     string        `yaml:"work_start"` // "HH:MM" local time-of-day
	RetentionDays int           `yaml:"retention_days"`
}

// WorkStartClock parses WorkStart into hour and minute.
func (a AttendanceConfig) WorkStartClock() (int, int, error) {
	t, err := time.Parse("15:04", a.WorkStart)
	if err != nil {
		return 0, 0, fmt.Errorf("parse work_start %q: %w", a.WorkStart, err)
	}
	return t.Hour(), t.Minute(), nil
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads config from YAML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if _, _, err := cfg.Attendance.WorkStartClock(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Vision.FaceSize == 0 {
		cfg.Vision.FaceSize = 112
	}
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Vision.RecognitionThreshold == 0 {
		cfg.Vision.RecognitionThreshold = 0.75
	}
	if cfg.Vision.WorkerCount == 0 {
		cfg.Vision.WorkerCount = 4
	}
	if cfg.Attendance.Cooldown == 0 {
		cfg.Attendance.Cooldown = 60 * time.Second
	}
	if cfg.Attendance.WorkStart == "" {
		cfg.Attendance.WorkStart = "08:00"
	}
	if cfg.Attendance.RetentionDays == 0 {
		cfg.Attendance.RetentionDays = 1
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRESENCE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("PRESENCE_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("PRESENCE_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("PRESENCE_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("PRESENCE_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("PRESENCE_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PRESENCE_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("PRESENCE_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("PRESENCE_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("PRESENCE_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("PRESENCE_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("PRESENCE_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("PRESENCE_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Attendance.Cooldown = d
		}
	}
	if v := os.Getenv("PRESENCE_WORK_START"); v != "" {
		cfg.Attendance.WorkStart = v
	}
	if v := os.Getenv("PRESENCE_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Attendance.RetentionDays = n
		}
	}
	if v := os.Getenv("PRESENCE_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vision.WorkerCount = n
		}
	}
}
