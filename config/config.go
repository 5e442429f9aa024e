package config

import (
	"context"
	"encoding/json"
	"engage/pkg/mq"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

type Config struct {
	MetadataDB MySQL      `json:"metadata_db"`
	Brevo      Brevo      `json:"brevo"`
	Sender     Sender     `json:"sender"`
	Auth       Auth       `json:"auth"`
	Tracking   Tracking   `json:"tracking"`
	Dispatch   Dispatch   `json:"dispatch"`
	EventQueue EventQueue `json:"event_queue"`
	Retention  Retention  `json:"retention"`
	CORS       CORS       `json:"cors"`
	UserCache  UserCache  `json:"user_cache"`
}

type Brevo struct {
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Sender is the brand identity put on every notification and outbound email.
type Sender struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Auth struct {
	JWTSecret string `json:"jwt_secret"`
	AdminRole string `json:"admin_role"`
}

type Tracking struct {
	// BaseURL is the public origin of this service, used to build pixel and click URLs.
	BaseURL        string `json:"base_url"`
	DefaultSiteURL string `json:"default_site_url"`
	UTMCampaign    string `json:"utm_campaign"`
	// WriteTimeoutMs bounds how long a tracking response waits on store writes.
	WriteTimeoutMs int `json:"write_timeout_ms"`
	// BackgroundTimeoutMs bounds a write that outlived WriteTimeoutMs.
	BackgroundTimeoutMs int `json:"background_timeout_ms"`
}

type Dispatch struct {
	EmailConcurrency int    `json:"email_concurrency"`
	MaxRetries       uint64 `json:"max_retries"`
}

// EventQueue is optional. With no producer brokers, tracking events are written straight to the store.
type EventQueue struct {
	Producer mq.ProducerConfig `json:"producer"`
	Consumer mq.ConsumerConfig `json:"consumer"`
}

func (q *EventQueue) Enabled() bool {
	return q != nil && len(q.Producer.Brokers) > 0
}

type Retention struct {
	EventDays int `json:"event_days"`
	BatchSize int `json:"batch_size"`
}

type CORS struct {
	AllowedOrigins []string `json:"allowed_origins"`
}

type UserCache struct {
	TTLSeconds int `json:"ttl_seconds"`
}

type MySQL struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
}

func (mysql *MySQL) ToDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", mysql.Username, mysql.Password, mysql.Host, mysql.Port, mysql.Database)
}

func NewConfig() *Config {
	return &Config{
		MetadataDB: MySQL{
			Username: "",
			Password: "",
			Host:     "127.0.0.1",
			Port:     3306,
			Database: "storefront_db",
		},
		Brevo: Brevo{
			Endpoint:       "https://api.brevo.com/v3/smtp/email",
			APIKey:         "",
			TimeoutSeconds: 10,
		},
		Sender: Sender{
			Name:  DefaultSenderName,
			Email: "",
		},
		Auth: Auth{
			JWTSecret: "",
			AdminRole: "admin",
		},
		Tracking: Tracking{
			BaseURL:             "http://127.0.0.1:9090",
			DefaultSiteURL:      "http://127.0.0.1:3000",
			UTMCampaign:         DefaultUTMCampaign,
			WriteTimeoutMs:      300,
			BackgroundTimeoutMs: 5_000,
		},
		Dispatch: Dispatch{
			EmailConcurrency: 10,
			MaxRetries:       2,
		},
		Retention: Retention{
			EventDays: 400, // above the longest reporting window
			BatchSize: 5_000,
		},
		CORS: CORS{
			AllowedOrigins: []string{"http://127.0.0.1:3000"},
		},
		UserCache: UserCache{
			TTLSeconds: 600,
		},
	}
}

func (c *Config) Load(ctx context.Context, path string) error {
	if path == "" {
		log.Ctx(ctx).Warn().Msgf("empty config file")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Ctx(ctx).Warn().Msgf("config file does not exist, file path: %s", path)
			return nil
		}
		return err
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
			log.Ctx(ctx).Error().Msgf("config file close failed, file path: %s", path)
		}
	}(f)

	p := json.NewDecoder(f)
	if err := p.Decode(&c); err != nil {
		return err
	}

	return nil
}
