package configs

import (
	"errors"
	"time"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	"github.com/rs/zerolog/log"
)

const (
	appName        = "guardian"
	appDescription = "Keeps RabbitMQ queues under control: warns owners about overgrowing queues and deletes the ones that exceed the limit."
)

type AppConfigs struct {
	ConfigFile kong.ConfigFlag `name:"config" help:"Path to a YAML configuration file. Keys are the long flag names."`

	EmailsEnabled       bool          `name:"emails-enabled" default:"true" negatable:"" env:"GUARDIAN_EMAILS_ENABLED" help:"Send warning and deletion emails to queue owners."`
	WarnThreshold       int           `name:"warn-threshold" default:"2" env:"GUARDIAN_WARN_THRESHOLD" help:"Ready messages above which the queue owner is warned."`
	ArchiveThreshold    int           `name:"archive-threshold" default:"15" env:"GUARDIAN_ARCHIVE_THRESHOLD" help:"Reserved, no queue transition uses it yet."`
	DeleteThreshold     int           `name:"delete-threshold" default:"20" env:"GUARDIAN_DELETE_THRESHOLD" help:"Ready messages above which the queue is deleted."`
	PollingInterval     time.Duration `name:"polling-interval" default:"500ms" env:"GUARDIAN_POLLING_INTERVAL" help:"Interval between two broker snapshots."`
	CollaboratorTimeout time.Duration `name:"collaborator-timeout" default:"10s" env:"GUARDIAN_COLLABORATOR_TIMEOUT" help:"Timeout of a single broker, database or SMTP call."`
	OutboxSize          int           `name:"outbox-size" default:"256" env:"GUARDIAN_OUTBOX_SIZE" help:"Number of pending notifications kept in memory before new ones are dropped."`

	Rabbitmq RabbitmqConfigs `embed:""`
	Smtp     SmtpConfigs     `embed:""`
	Log      LogConfigs      `embed:""`

	DbPath         string `name:"db-path" env:"GUARDIAN_DB_PATH" help:"Path to the SQLite database. Defaults to the OS data directory."`
	AuthSecret     string `name:"auth-secret" required:"" env:"GUARDIAN_AUTH_SECRET" help:"Secret for the admin API (X-API-Key header) and the UI login."`
	Addr           string `name:"addr" default:"localhost:8080" env:"GUARDIAN_ADDR" help:"Address of the admin HTTP server."`
	MetricsEnabled bool   `name:"metrics-enabled" default:"true" negatable:"" env:"GUARDIAN_METRICS_ENABLED" help:"Expose Prometheus metrics on /metrics."`

	JobsIntervals JobsIntervals `kong:"-"`
	ServerConfig  ServerConfig  `kong:"-"`
}

type RabbitmqConfigs struct {
	Url      string `name:"rabbitmq-url" default:"http://localhost:15672" env:"GUARDIAN_RABBITMQ_URL" help:"RabbitMQ management API endpoint."`
	User     string `name:"rabbitmq-user" default:"guest" env:"GUARDIAN_RABBITMQ_USER" help:"RabbitMQ management API user."`
	Password string `name:"rabbitmq-password" default:"guest" env:"GUARDIAN_RABBITMQ_PASSWORD" help:"RabbitMQ management API password."`
}

type SmtpConfigs struct {
	Host      string `name:"smtp-host" default:"localhost" env:"GUARDIAN_SMTP_HOST" help:"SMTP server host."`
	Port      int    `name:"smtp-port" default:"587" env:"GUARDIAN_SMTP_PORT" help:"SMTP server port."`
	User      string `name:"smtp-user" env:"GUARDIAN_SMTP_USER" help:"SMTP user. Authentication is skipped when empty."`
	Password  string `name:"smtp-password" env:"GUARDIAN_SMTP_PASSWORD" help:"SMTP password."`
	EmailFrom string `name:"email-from" default:"guardian@localhost" env:"GUARDIAN_EMAIL_FROM" help:"Sender address of the notifications."`
}

type LogConfigs struct {
	Level  string `name:"log-level" default:"info" enum:"trace,debug,info,warn,error" env:"GUARDIAN_LOG_LEVEL" help:"Log level."`
	Pretty bool   `name:"log-pretty" env:"GUARDIAN_LOG_PRETTY" help:"Human readable console logs instead of JSON."`
}

type JobsIntervals struct {
	DbOptimizationMs            int64 // Interval for running PRAGMA optimize on the database
	DbOptimizationMaxDurationMs int64 // Maximum duration of a single optimization run
}

type ServerConfig struct {
	Timeouts ServerTimeouts
}

type ServerTimeouts struct {
	Handle     time.Duration
	Write      time.Duration
	Read       time.Duration
	ReadHeader time.Duration
	Idle       time.Duration
}

// Load parses the command line arguments (and the YAML file passed via --config, if any) into AppConfigs.
func Load(args []string) (*AppConfigs, error) {
	appConfigs := &AppConfigs{}

	parser, err := kong.New(appConfigs,
		kong.Name(appName),
		kong.Description(appDescription),
		kong.Configuration(kongyaml.Loader),
	)
	if err != nil {
		return nil, err
	}

	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}

	appConfigs.JobsIntervals = JobsIntervals{
		DbOptimizationMs:            60 * 60 * 1000, // 1 hour
		DbOptimizationMaxDurationMs: 30 * 1000,      // 30 seconds
	}
	appConfigs.ServerConfig = ServerConfig{
		Timeouts: ServerTimeouts{
			Handle:     10 * time.Second,
			Write:      15 * time.Second,
			Read:       15 * time.Second,
			ReadHeader: 5 * time.Second,
			Idle:       5 * time.Minute,
		},
	}

	if err := appConfigs.validate(); err != nil {
		return nil, err
	}
	return appConfigs, nil
}

func (ac *AppConfigs) validate() error {
	if ac.WarnThreshold < 0 || ac.ArchiveThreshold < 0 || ac.DeleteThreshold < 0 {
		return errors.New("thresholds must not be negative")
	}
	if ac.PollingInterval <= 0 {
		return errors.New("polling interval must be positive")
	}
	if ac.CollaboratorTimeout <= 0 {
		return errors.New("collaborator timeout must be positive")
	}
	if ac.OutboxSize <= 0 {
		return errors.New("outbox size must be positive")
	}

	// not enforced: operators might want to delete without warning first
	if ac.DeleteThreshold < ac.WarnThreshold {
		log.Warn().
			Int("warn_threshold", ac.WarnThreshold).
			Int("delete_threshold", ac.DeleteThreshold).
			Msg("delete threshold is lower than warn threshold, queues will be deleted before their owners get warned")
	}
	return nil
}
