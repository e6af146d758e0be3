// Package config loads the reminder service configuration from the
// environment. Values are resolved in priority order:
//
//	OS environment -> .env file -> AWS SSM Parameter Store
//
// Configuration is read once at startup. A missing required value or an
// invalid format fails startup.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // REMINDER_TIMEZONE must resolve on hosts without zoneinfo
)

// Config is the top-level configuration for reminderd and remindctl.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"carwash-reminders"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Database      DatabaseConfig
	AWS           AWSConfig
	Reminder      ReminderConfig
	Email         EmailConfig
	Broker        BrokerConfig
	Observability ObservabilityConfig

	// Injected via ldflags, not env.
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"HTTP_REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"1" validate:"gte=0"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// AWSConfig holds AWS regional configuration and resource identifiers.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// RemindersQueue is required when REMINDER_NOTIFIER=sqs.
	RemindersQueue string `envconfig:"SQS_REMINDERS" validate:"omitempty,url"`

	// LocalStack support. Empty in prod.
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`
}

// ReminderConfig controls when and how reminders fire.
type ReminderConfig struct {
	LeadTime    time.Duration `envconfig:"REMINDER_LEAD_TIME" default:"6h" validate:"gte=0s"`
	Timezone    string        `envconfig:"REMINDER_TIMEZONE" default:"Africa/Tunis" validate:"required,timezone"`
	SendNowMode string        `envconfig:"REMINDER_SEND_NOW_MODE" default:"async" validate:"oneof=async sync"`
	Notifier    string        `envconfig:"REMINDER_NOTIFIER" default:"email" validate:"oneof=email sqs amqp"`

	// NotifyTimeout bounds a single delivery. Zero disables the bound.
	NotifyTimeout time.Duration `envconfig:"REMINDER_NOTIFY_TIMEOUT" default:"30s" validate:"gte=0s"`

	RetryEnabled     bool          `envconfig:"REMINDER_RETRY_ENABLED" default:"false"`
	RetryMaxAttempts int           `envconfig:"REMINDER_RETRY_MAX_ATTEMPTS" default:"3" validate:"gte=1"`
	RetryBaseDelay   time.Duration `envconfig:"REMINDER_RETRY_BASE_DELAY" default:"1m" validate:"gt=0s"`
	RetryMaxDelay    time.Duration `envconfig:"REMINDER_RETRY_MAX_DELAY" default:"30m" validate:"gtefield=RetryBaseDelay"`
}

// Location loads the booking system's timezone.
func (c ReminderConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading REMINDER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// EmailConfig holds email provider credentials and message settings.
type EmailConfig struct {
	Provider       string       `envconfig:"EMAIL_PROVIDER" default:"ses" validate:"oneof=ses sendgrid stub"`
	SendGridAPIKey SecretString `envconfig:"SENDGRID_API_KEY"`
	SESConfigSet   string       `envconfig:"SES_CONFIGURATION_SET"`
	FromAddress    string       `envconfig:"EMAIL_FROM_ADDRESS" default:"no-reply@carwash.test" validate:"required,email"`
	FromName       string       `envconfig:"EMAIL_FROM_NAME" default:"CarWash"`
	SiteURL        string       `envconfig:"SITE_URL" default:"http://127.0.0.1:8000" validate:"required,url"`
	SupportEmail   string       `envconfig:"SUPPORT_EMAIL" validate:"omitempty,email"`
}

// BrokerConfig holds the RabbitMQ settings used when REMINDER_NOTIFIER=amqp.
type BrokerConfig struct {
	URL      SecretString `envconfig:"AMQP_URL"`
	Exchange string       `envconfig:"AMQP_EXCHANGE" default:"carwash.events"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"CarWash/Reminders"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"false"`
}

// BuildInfo holds build-time metadata injected via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	ErrMissingEnv    ConfigErrorType = "MISSING_ENV"
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	ErrValidation    ConfigErrorType = "VALIDATION_FAILED"
	ErrParsing       ConfigErrorType = "PARSING_FAILED"
)
