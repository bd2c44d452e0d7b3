package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	HTTP     HTTP     `yaml:"http"`
	Log      Log      `yaml:"log"`
	Kafka    Kafka    `yaml:"kafka"`
	Redis    Redis    `yaml:"redis"`
	Postgres Postgres `yaml:"postgres"`
	Supplier Supplier `yaml:"supplier"`
	Consumer Consumer `yaml:"consumer"`
	Backend  Backend  `yaml:"backend"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"inventory-event-processor"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type HTTP struct {
	Port string `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Kafka struct {
	Brokers         []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic           string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"inventory-events"`
	GroupID         string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"inventory-event-processor"`
	DeadLetterTopic string   `yaml:"dead_letter_topic" env:"KAFKA_DEAD_LETTER_TOPIC" env-default:"inventory-events-dlq"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER" env-default:"user"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD" env-default:"password"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB" env-default:"supplier_db"`
}

// Supplier configures the outbound order call. Defaults mirror the
// processor's documented contract: 3 attempts, 30s per attempt, 1s backoff base.
type Supplier struct {
	BaseURL           string        `yaml:"base_url" env:"SUPPLIER_API_URL" env-default:"http://localhost:8001"`
	MaxAttempts       int           `yaml:"max_attempts" env:"RETRY_ATTEMPTS" env-default:"3"`
	TimeoutPerAttempt time.Duration `yaml:"timeout_per_attempt" env:"TIMEOUT_PER_ATTEMPT" env-default:"30s"`
	BackoffBase       time.Duration `yaml:"backoff_base" env:"BACKOFF_BASE" env-default:"1s"`
}

type Consumer struct {
	Workers        int           `yaml:"workers" env:"CONSUMER_WORKERS" env-default:"1"`
	MessageTimeout time.Duration `yaml:"message_timeout" env:"MESSAGE_TIMEOUT" env-default:"2m"`
	// Processing rounds per message before it is parked on the dead-letter
	// topic; independent of supplier.max_attempts, which bounds one round.
	MaxRedeliveries int           `yaml:"max_redeliveries" env:"MAX_REDELIVERIES" env-default:"5"`
	RedeliveryDelay time.Duration `yaml:"redelivery_delay" env:"REDELIVERY_DELAY" env-default:"5s"`
}

type Backend struct {
	StockThreshold int `yaml:"stock_threshold" env:"STOCK_THRESHOLD" env-default:"10"`
	EmitWorkers    int `yaml:"emit_workers" env:"EMIT_WORKERS" env-default:"2"`
	EmitQueueDepth int `yaml:"emit_queue_depth" env:"EMIT_QUEUE_DEPTH" env-default:"64"`
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	if cfg.Supplier.MaxAttempts < 1 {
		return nil, fmt.Errorf("config error: supplier.max_attempts must be >= 1, got %d", cfg.Supplier.MaxAttempts)
	}
	if cfg.Consumer.Workers < 1 {
		return nil, fmt.Errorf("config error: consumer.workers must be >= 1, got %d", cfg.Consumer.Workers)
	}
	if cfg.Consumer.MaxRedeliveries < 1 {
		return nil, fmt.Errorf("config error: consumer.max_redeliveries must be >= 1, got %d", cfg.Consumer.MaxRedeliveries)
	}

	return cfg, nil
}
