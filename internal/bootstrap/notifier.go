package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"carwash/internal/config"
	"carwash/internal/external"
	"carwash/internal/notifications"
	"carwash/internal/notifications/email"
	"carwash/internal/notifications/queue"
	"carwash/internal/reminder"
	"carwash/internal/types"
)

// LoadAWSConfig loads the default AWS config for the configured region,
// pointing every client at AWS_ENDPOINT_URL when it is set (LocalStack).
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// NotifierDeps holds what BuildNotifier needs. LoadAWS defaults to
// LoadAWSConfig and is only called when a backend needs AWS.
type NotifierDeps struct {
	Config   *config.Config
	Contacts email.ContactStore
	Clock    types.Clock
	Logger   *slog.Logger
	LoadAWS  func(ctx context.Context, cfg config.AWSConfig) (aws.Config, error)
}

// BuildNotifier assembles the notifier selected by REMINDER_NOTIFIER, bounded
// by REMINDER_NOTIFY_TIMEOUT and instrumented when ENABLE_METRICS is set. The
// returned close function releases broker connections and is never nil.
func BuildNotifier(ctx context.Context, deps NotifierDeps) (reminder.Notifier, func() error, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, nil, fmt.Errorf("config must not be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	loadAWS := deps.LoadAWS
	if loadAWS == nil {
		loadAWS = LoadAWSConfig
	}

	var (
		awsCfg    aws.Config
		awsLoaded bool
	)
	getAWS := func() (aws.Config, error) {
		if awsLoaded {
			return awsCfg, nil
		}
		c, err := loadAWS(ctx, cfg.AWS)
		if err != nil {
			return aws.Config{}, err
		}
		awsCfg, awsLoaded = c, true
		return awsCfg, nil
	}

	adapter := SlogAdapter{Logger: logger}
	closeFn := func() error { return nil }

	var (
		base reminder.Notifier
		err  error
	)
	channel := cfg.Reminder.Notifier
	switch channel {
	case "email":
		base, err = buildEmailNotifier(cfg, deps.Contacts, getAWS, logger)
	case "sqs":
		var c aws.Config
		c, err = getAWS()
		if err == nil {
			base = queue.NewSQSNotifier(sqs.NewFromConfig(c), cfg.AWS.RemindersQueue, clock, adapter)
		}
	case "amqp":
		var n *queue.AMQPNotifier
		n, err = queue.DialAMQP(cfg.Broker.URL.Unmask(), cfg.Broker.Exchange, clock, adapter)
		if err == nil {
			base = n
			closeFn = n.Close
		}
	default:
		err = fmt.Errorf("unknown reminder notifier %q", channel)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("building %s notifier: %w", channel, err)
	}

	n := notifications.WithTimeout(base, cfg.Reminder.NotifyTimeout)

	if cfg.Observability.EnableMetrics {
		c, err := getAWS()
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("building metrics: %w", err)
		}
		metrics := notifications.NewCloudWatchMetrics(cloudwatch.NewFromConfig(c), cfg.Observability.MetricNamespace, adapter)
		n = notifications.WithMetrics(n, metrics, channel, clock)
	}

	logger.Info("reminder notifier ready",
		"notifier", channel,
		"email_provider", cfg.Email.Provider,
		"metrics", cfg.Observability.EnableMetrics,
	)
	return n, closeFn, nil
}

func buildEmailNotifier(cfg *config.Config, contacts email.ContactStore, getAWS func() (aws.Config, error), logger *slog.Logger) (reminder.Notifier, error) {
	if contacts == nil {
		return nil, fmt.Errorf("contact store must not be nil")
	}

	var provider external.EmailProvider
	switch cfg.Email.Provider {
	case "ses":
		c, err := getAWS()
		if err != nil {
			return nil, err
		}
		provider = external.NewSESClient(c, external.SESClientConfig{
			ConfigSetName: cfg.Email.SESConfigSet,
			Logger:        logger,
		})
	case "sendgrid":
		provider = external.NewSendGridClient(&http.Client{Timeout: 15 * time.Second}, external.SendGridClientConfig{
			APIKey: cfg.Email.SendGridAPIKey.Unmask(),
			Logger: logger,
		})
	case "stub":
		provider = external.NewStubEmailProvider(logger)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return nil, err
	}
	renderer, err := email.NewRenderer(email.RendererConfig{
		SiteURL:      cfg.Email.SiteURL,
		SupportEmail: cfg.Email.SupportEmail,
		Location:     loc,
	})
	if err != nil {
		return nil, err
	}

	return email.NewNotifier(email.NotifierConfig{
		Contacts: contacts,
		Provider: provider,
		Renderer: renderer,
		From: types.SenderIdentity{
			Name:    cfg.Email.FromName,
			Address: cfg.Email.FromAddress,
		},
		ReplyTo: cfg.Email.SupportEmail,
		Logger:  SlogAdapter{Logger: logger},
	}), nil
}
