package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/sacco-portal/internal/bootstrap"
	"github.com/segyhp/sacco-portal/internal/config"
	"github.com/segyhp/sacco-portal/internal/logging"
	"github.com/segyhp/sacco-portal/internal/service"
	"github.com/segyhp/sacco-portal/internal/tracing"
)

// jobTimeout bounds a single job run
const jobTimeout = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)
	logger.Info("Starting loan scheduler...")
	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, err := bootstrap.OpenDB(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	redisClient, err := bootstrap.OpenRedis(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize redis: %v", err)
	}
	defer redisClient.Close()

	services := bootstrap.NewServices(cfg, db, redisClient, logger)

	// Initialize cron scheduler
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.GetSchedulerLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	// Schedule tasks
	if err := setupCronJobs(c, cfg, services.Loans, logger); err != nil {
		logger.Fatalf("Failed to schedule jobs: %v", err)
	}

	// Start the scheduler
	c.Start()
	logger.Info("Scheduler started successfully")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler...")
	<-c.Stop().Done()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		logger.WithError(err).Warn("failed to flush traces")
	}
	logger.Info("Scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, loans *service.LoanService, logger logrus.FieldLogger) error {
	// Daily job to persist repayment statuses and default delinquent loans (runs at midnight)
	_, err := c.AddFunc(cfg.Scheduler.StatusRefreshSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		log := logger.WithField("job", "refresh_statuses")
		log.Info("Running daily repayment status refresh...")
		report, err := loans.RefreshStatuses(ctx)
		if err != nil {
			log.WithError(err).Error("status refresh finished with errors")
		}
		log.WithFields(logrus.Fields{
			"loans":     report.LoansScanned,
			"updated":   report.RepaymentsUpdated,
			"defaulted": report.LoansDefaulted,
		}).Info("status refresh done")
	})
	if err != nil {
		return err
	}

	// Daily job to remind members of due and overdue installments (runs at 9 AM)
	_, err = c.AddFunc(cfg.Scheduler.ReminderSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		log := logger.WithField("job", "send_reminders")
		log.Info("Running daily repayment reminder job...")
		sent, err := loans.SendDueReminders(ctx)
		if err != nil {
			log.WithError(err).Error("reminder job finished with errors")
		}
		log.WithField("sent", sent).Info("reminders done")
	})
	if err != nil {
		return err
	}

	logger.Info("Cron jobs scheduled successfully")
	return nil
}
