package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Local secrets (fill up for local development)
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET"`
	Environment        string `envconfig:"ENV" default:"development"`
	Port               string `envconfig:"PORT" default:"8080"`

	// Certificate settings
	CertificateNumberPrefix string `envconfig:"CERTIFICATE_NUMBER_PREFIX" default:"IC"`

	// Object storage for rendered certificate PDFs
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"certificates"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`

	// Notification sink
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	NotificationsTopic string `envconfig:"PUBSUB_NOTIFICATIONS_TOPIC" default:"notifications"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`

	// Secret Manager (used outside development when JWT_SECRET is unset)
	JWTSecretName string `envconfig:"JWT_SECRET_NAME" default:"lms-jwt-secret"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
