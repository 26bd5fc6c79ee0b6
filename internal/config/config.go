package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	S3       S3Config
	Database DatabaseConfig
	Kafka    KafkaConfig
	App      AppConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
}

type DatabaseConfig struct {
	DSN string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type AppConfig struct {
	MaxUploadSize     int64
	AllowedExtensions []string
	LogLevel          string
}

func Load() (*Config, error) {
	viper.SetDefault("SERVER_HOST", "localhost")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("S3_ENDPOINT", "http://localhost:9000")
	viper.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	viper.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	viper.SetDefault("S3_BUCKET_NAME", "documents")
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=documents port=5432 sslmode=disable")
	viper.SetDefault("KAFKA_BROKERS", "localhost:9092")
	viper.SetDefault("KAFKA_TOPIC", "document-processing")
	viper.SetDefault("KAFKA_GROUP_ID", "document-workers")
	viper.SetDefault("APP_MAX_UPLOAD_SIZE", 10*1024*1024) // 10MB
	viper.SetDefault("APP_ALLOWED_EXTENSIONS", []string{"txt", "png", "jpeg", "jpg"})
	viper.SetDefault("APP_LOG_LEVEL", "info")

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("SERVER_HOST"),
			Port: viper.GetString("SERVER_PORT"),
		},
		S3: S3Config{
			Endpoint:        viper.GetString("S3_ENDPOINT"),
			AccessKeyID:     viper.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: viper.GetString("S3_SECRET_ACCESS_KEY"),
			BucketName:      viper.GetString("S3_BUCKET_NAME"),
			Region:          viper.GetString("S3_REGION"),
		},
		Database: DatabaseConfig{
			DSN: viper.GetString("DATABASE_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers: splitBrokers(viper.GetString("KAFKA_BROKERS")),
			Topic:   viper.GetString("KAFKA_TOPIC"),
			GroupID: viper.GetString("KAFKA_GROUP_ID"),
		},
		App: AppConfig{
			MaxUploadSize:     viper.GetInt64("APP_MAX_UPLOAD_SIZE"),
			AllowedExtensions: viper.GetStringSlice("APP_ALLOWED_EXTENSIONS"),
			LogLevel:          viper.GetString("APP_LOG_LEVEL"),
		},
	}

	if cfg.Kafka.Topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}

	return cfg, nil
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
