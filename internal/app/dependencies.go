package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/klokku/appointments/internal/config"
	"github.com/klokku/appointments/internal/database"
	"github.com/klokku/appointments/internal/event_bus"
	"github.com/klokku/appointments/internal/utils"
	"github.com/klokku/appointments/pkg/caldav"
	"github.com/klokku/appointments/pkg/calendar"
	"github.com/klokku/appointments/pkg/events"
	"github.com/klokku/appointments/pkg/google"
	"github.com/klokku/appointments/pkg/ledger"
	"github.com/klokku/appointments/pkg/lock"
	"github.com/klokku/appointments/pkg/notifier"
	"github.com/klokku/appointments/pkg/scheduling"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	DB    *sql.DB
	Redis *redis.Client

	Store    ledger.Store
	Calendar calendar.Sync
	Notifier notifier.Notifier

	EventBus       *event_bus.EventBus
	KafkaPublisher *events.KafkaPublisher

	SchedulingService *scheduling.ServiceImpl
	SchedulingHandler *scheduling.Handler

	Clock utils.Clock

	closers []func() error
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(ctx context.Context, cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{Clock: &utils.SystemClock{}}

	schedulingCfg, err := scheduling.ConfigFrom(cfg)
	if err != nil {
		return nil, err
	}

	// Two locks: one held by the orchestrator around check-then-write, one by
	// the CSV store around each file rewrite. They must not share a key.
	var bookingLock, fileLock lock.Locker = lock.NewLocalLocker(), lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		deps.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Pass,
			DB:       cfg.Redis.DB,
		})
		deps.closers = append(deps.closers, deps.Redis.Close)
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			deps.Close()
			return nil, fmt.Errorf("could not connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		bookingLock = lock.NewRedisLocker(deps.Redis, cfg.Redis.LockKey, cfg.Redis.LockTTL)
		fileLock = lock.NewRedisLocker(deps.Redis, cfg.Redis.LockKey+":file", cfg.Redis.LockTTL)
		log.Infof("Using redis lock %s", cfg.Redis.LockKey)
	}

	if deps.Store, err = deps.buildStore(cfg, fileLock); err != nil {
		deps.Close()
		return nil, err
	}
	if deps.Calendar, err = buildCalendar(ctx, cfg); err != nil {
		deps.Close()
		return nil, err
	}
	if deps.Notifier, err = buildNotifier(cfg); err != nil {
		deps.Close()
		return nil, err
	}

	deps.EventBus = event_bus.NewEventBus()
	if cfg.Kafka.Enabled {
		deps.KafkaPublisher = events.NewKafkaPublisher(cfg.Kafka)
		deps.KafkaPublisher.Register(deps.EventBus)
		deps.closers = append(deps.closers, deps.KafkaPublisher.Close)
		log.Infof("Publishing appointment events to kafka topic %s", cfg.Kafka.Topic)
	}

	deps.SchedulingService = scheduling.NewService(
		deps.Store,
		deps.Calendar,
		deps.Notifier,
		deps.EventBus,
		deps.Clock,
		bookingLock,
		schedulingCfg,
	)
	deps.SchedulingHandler = scheduling.NewHandler(deps.SchedulingService)

	return deps, nil
}

func (d *Dependencies) buildStore(cfg config.Application, fileLock lock.Locker) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case "", "csv":
		log.Infof("Using CSV ledger at %s", cfg.Ledger.Path)
		return ledger.NewCSVStore(cfg.Ledger.Path, fileLock), nil
	case "sql":
		db, err := database.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		d.DB = db
		d.closers = append(d.closers, db.Close)
		if err := database.Migrate(db, cfg.Database); err != nil {
			return nil, err
		}
		log.Infof("Using %s ledger", cfg.Database.Driver)
		return ledger.NewSQLStore(db, cfg.Database.Driver), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func buildCalendar(ctx context.Context, cfg config.Application) (calendar.Sync, error) {
	switch cfg.Calendar.Provider {
	case "", "none":
		return calendar.Noop{}, nil
	case "google":
		service, err := google.NewService(ctx, cfg.Google)
		if errors.Is(err, google.ErrUnathenticated) {
			log.Warnf("Google calendar is not authorized yet, run the google-auth command. Calendar sync is disabled")
			return calendar.Noop{}, nil
		}
		if err != nil {
			return nil, err
		}
		return google.NewCalendar(service, cfg.Google.CalendarId, cfg.Booking.Timezone), nil
	case "caldav":
		return caldav.NewCalendar(cfg.CalDAV)
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", cfg.Calendar.Provider)
	}
}

func buildNotifier(cfg config.Application) (notifier.Notifier, error) {
	switch cfg.Notifier.Provider {
	case "", "none":
		return notifier.Noop{}, nil
	case "smtp":
		return notifier.NewSMTPNotifier(cfg.SMTP), nil
	case "webhook":
		return notifier.NewWebhookNotifier(cfg.Webhook), nil
	default:
		return nil, fmt.Errorf("unknown notifier provider %q", cfg.Notifier.Provider)
	}
}

// Close releases connections in reverse order of creation.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
