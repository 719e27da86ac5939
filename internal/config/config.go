package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

type Application struct {
	Host     string   `koanf:"host"`
	Booking  Booking  `koanf:"booking"`
	Ledger   Ledger   `koanf:"ledger"`
	Database Database `koanf:"db"`
	Calendar Calendar `koanf:"calendar"`
	Google   Google   `koanf:"google"`
	CalDAV   CalDAV   `koanf:"caldav"`
	Notifier Notifier `koanf:"notifier"`
	SMTP     SMTP     `koanf:"smtp"`
	Webhook  Webhook  `koanf:"webhook"`
	Kafka    Kafka    `koanf:"kafka"`
	Redis    Redis    `koanf:"redis"`
	Tracing  Tracing  `koanf:"tracing"`
}

type Booking struct {
	WindowStart string `koanf:"windowstart"`
	WindowEnd   string `koanf:"windowend"`
	Timezone    string `koanf:"timezone"`
	// MinGap is the minimum distance between two bookings on the same date.
	MinGap       time.Duration `koanf:"mingap"`
	SlotDuration time.Duration `koanf:"slotduration"`
	// Retries is the number of extra attempts for each downstream step.
	Retries int `koanf:"retries"`
}

type Ledger struct {
	// Backend is "csv" or "sql".
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
}

type Database struct {
	// Driver is "sqlite" or "postgres".
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	User   string `koanf:"user"`
	Pass   string `koanf:"pass"`
	Name   string `koanf:"name"`
	Schema string `koanf:"schema"`
}

type Calendar struct {
	// Provider is "google", "caldav" or "none".
	Provider string        `koanf:"provider"`
	Timeout  time.Duration `koanf:"timeout"`
}

type Google struct {
	ClientId     string `koanf:"clientid"`
	ClientSecret string `koanf:"clientsecret"`
	CalendarId   string `koanf:"calendarid"`
	TokenFile    string `koanf:"tokenfile"`
}

type CalDAV struct {
	Endpoint     string `koanf:"endpoint"`
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	CalendarPath string `koanf:"calendarpath"`
}

type Notifier struct {
	// Provider is "smtp", "webhook" or "none".
	Provider string        `koanf:"provider"`
	Timeout  time.Duration `koanf:"timeout"`
}

type SMTP struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Pass     string `koanf:"pass"`
	From     string `koanf:"from"`
	HREmail  string `koanf:"hremail"`
	StartTLS bool   `koanf:"starttls"`
}

type Webhook struct {
	URL   string `koanf:"url"`
	Token string `koanf:"token"`
}

type Kafka struct {
	Enabled bool   `koanf:"enabled"`
	Brokers string `koanf:"brokers"`
	Topic   string `koanf:"topic"`
}

type Redis struct {
	Enabled bool          `koanf:"enabled"`
	Addr    string        `koanf:"addr"`
	Pass    string        `koanf:"pass"`
	DB      int           `koanf:"db"`
	LockKey string        `koanf:"lockkey"`
	LockTTL time.Duration `koanf:"lockttl"`
}

type Tracing struct {
	Enabled      bool    `koanf:"enabled"`
	ServiceName  string  `koanf:"servicename"`
	OTLPEndpoint string  `koanf:"otlpendpoint"`
	SampleRatio  float64 `koanf:"sampleratio"`
}

// Defaults returns the configuration used when nothing else is provided.
func Defaults() Application {
	return Application{
		Host: ":8181",
		Booking: Booking{
			WindowStart:  "2025-08-18",
			WindowEnd:    "2025-12-31",
			Timezone:     "Asia/Kolkata",
			MinGap:       30 * time.Minute,
			SlotDuration: time.Hour,
			Retries:      1,
		},
		Ledger: Ledger{
			Backend: "csv",
			Path:    "data/appointments.csv",
		},
		Database: Database{
			Driver: "sqlite",
			Path:   "data/appointments.db",
			Host:   "localhost",
			Port:   5432,
			User:   "appointments",
			Name:   "appointments",
			Schema: "public",
		},
		Calendar: Calendar{
			Provider: "none",
			Timeout:  10 * time.Second,
		},
		Google: Google{
			CalendarId: "primary",
			TokenFile:  "token.json",
		},
		Notifier: Notifier{
			Provider: "none",
			Timeout:  10 * time.Second,
		},
		SMTP: SMTP{
			Host:     "smtp.gmail.com",
			Port:     587,
			StartTLS: true,
		},
		Kafka: Kafka{
			Topic: "appointments.events",
		},
		Redis: Redis{
			Addr:    "localhost:6379",
			LockKey: "appointments:ledger:lock",
			LockTTL: 30 * time.Second,
		},
		Tracing: Tracing{
			ServiceName:  "appointments",
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
	}
}

func Load(path string) (Application, error) {
	var k = koanf.New(".")

	err := k.Load(structs.Provider(Defaults(), "koanf"), nil)
	if err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if os.IsNotExist(err) {
			log.Infof("Config file not found at %s, using defaults and environment variables", path)
		} else {
			log.Errorf("error loading config from YAML: %v", err)
			return Application{}, err
		}
	} else {
		log.Infof("Loaded configuration from file: %s", path)
	}

	err = k.Load(env.Provider(".", env.Opt{
		Prefix: "APPT_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "APPT_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}

	return app, nil
}
