package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Vision   VisionConfig   `yaml:"vision"`
	Access   AccessConfig   `yaml:"access"`
	Logging  LoggingConfig  `yaml:"logging"`
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

// MQTTConfig configures the door-controller notifier. Leaving Broker empty
// disables MQTT entirely (decisions are still returned over HTTP).
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
}

type VisionConfig struct {
	ModelsDir          string  `yaml:"models_dir"`
	DetectionThreshold float64 `yaml:"detection_threshold"`
}

// AccessConfig carries the security policy: the authorized QR value (raw
// secret or its sha256 hex) and the recognition confidence threshold.
type AccessConfig struct {
	QRAuthorizedValue    string  `yaml:"qr_authorized_value"`
	RecognitionThreshold float64 `yaml:"recognition_threshold"`
	SnapshotRetention    int     `yaml:"snapshot_retention"`
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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces the settings the server must not start without. Serving
// with no authorized QR value would leave the access policy undefined.
func (c *Config) Validate() error {
	if c.Access.QRAuthorizedValue == "" {
		return fmt.Errorf("access.qr_authorized_value is required (set DOOR_QR_VALUE)")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required (set DOOR_DB_HOST)")
	}
	return nil
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
	if cfg.Vision.DetectionThreshold == 0 {
		cfg.Vision.DetectionThreshold = 0.5
	}
	if cfg.Access.RecognitionThreshold == 0 {
		cfg.Access.RecognitionThreshold = 0.5
	}
	if cfg.Access.SnapshotRetention == 0 {
		cfg.Access.SnapshotRetention = 500
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "door-lock-server"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "doorlock/command"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOOR_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DOOR_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("DOOR_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DOOR_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("DOOR_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("DOOR_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DOOR_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DOOR_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("DOOR_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("DOOR_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("DOOR_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("DOOR_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("DOOR_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("DOOR_MQTT_TOPIC"); v != "" {
		cfg.MQTT.Topic = v
	}
	if v := os.Getenv("DOOR_MODELS_DIR"); v != "" {
		cfg.Vision.ModelsDir = v
	}
	if v := os.Getenv("DOOR_QR_VALUE"); v != "" {
		cfg.Access.QRAuthorizedValue = v
	}
	if v := os.Getenv("DOOR_RECOGNITION_THRESHOLD"); v != "" {
		if t, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Access.RecognitionThreshold = t
		}
	}
}
