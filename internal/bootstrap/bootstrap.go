// Package bootstrap opens the stores and builds the services shared by the
// API server and the scheduler.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/sacco-portal/internal/cache"
	"github.com/segyhp/sacco-portal/internal/config"
	"github.com/segyhp/sacco-portal/internal/notify"
	"github.com/segyhp/sacco-portal/internal/repository"
	"github.com/segyhp/sacco-portal/internal/service"
)

const cachePrefix = "sacco:"

// Services is everything the entrypoints dispatch to
type Services struct {
	Loans   *service.LoanService
	Members *service.MemberService
}

// OpenDB connects to postgres and applies the schema
func OpenDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// RedisOptions prefers REDIS_URL and falls back to host, port and db
func RedisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		return opts, nil
	}

	return &redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}

func OpenRedis(cfg *config.Config) (*redis.Client, error) {
	opts, err := RedisOptions(cfg.Redis)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// NewNotifier sends email through SMTP when a host is configured and only logs otherwise
func NewNotifier(cfg config.MailConfig, logger logrus.FieldLogger) notify.Notifier {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, reminders will only be logged")
		return notify.LogNotifier{Logger: logger}
	}
	return notify.NewSender(cfg, logger)
}

func NewServices(cfg *config.Config, db *sqlx.DB, rdb *redis.Client, logger logrus.FieldLogger) *Services {
	loanRepo := repository.NewLoanRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	summaries := cache.NewRedisCache(rdb, cachePrefix)

	return &Services{
		Loans: service.NewLoanService(loanRepo, memberRepo, summaries,
			NewNotifier(cfg.Mail, logger), cfg, logger.WithField("component", "loans")),
		Members: service.NewMemberService(loanRepo, transactionRepo, memberRepo, summaries,
			cfg, logger.WithField("component", "members")),
	}
}
