package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/reembolso/internal/application/service"
	"github.com/garyjia/reembolso/internal/config"
	"github.com/garyjia/reembolso/internal/email"
	httpserver "github.com/garyjia/reembolso/internal/interfaces/http"
	"github.com/garyjia/reembolso/internal/queue"
	"github.com/garyjia/reembolso/internal/receipt"
	"github.com/garyjia/reembolso/internal/repository"
	"github.com/garyjia/reembolso/internal/storage"
	"github.com/garyjia/reembolso/internal/worker"
	"github.com/garyjia/reembolso/migrations"
	"github.com/garyjia/reembolso/pkg/database"
	"github.com/garyjia/reembolso/pkg/utils"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(cfg.Logger.ToUtils())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting reimbursement server",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("queue", cfg.Queue.Driver))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Server exited successfully")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer db.Close()

	if err := database.NewMigrator(db, logger).RunMigrations(migrations.FS); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// Storage
	if err := os.MkdirAll(cfg.Storage.Dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	files := storage.NewLocalFileStorage(cfg.Storage.Dir, logger)
	folders := storage.NewFolderManager(cfg.Storage.Dir, logger)

	submissions := repository.NewSubmissionRepository(db.DB, logger)

	jobs, err := newQueue(cfg.Queue, logger)
	if err != nil {
		return err
	}
	defer jobs.Close()

	pdf := receipt.NewPDFRenderer("reembolso "+version, logger)
	kv := utils.NewKVLogger(logger)

	submissionService := service.NewSubmissionService(
		submissions,
		files,
		folders,
		jobs,
		pdf,
		receipt.NewInspector(logger),
		service.SubmissionConfig{
			DefaultTo:          cfg.Email.DefaultTo,
			MaxAttachmentBytes: cfg.Submission.MaxAttachmentBytes,
			IncludeReceipt:     cfg.Submission.IncludeReceipt,
		},
		kv,
	)

	// Background workers
	manager := worker.NewManager(logger)
	manager.Register(worker.NewEmailWorker(
		jobs,
		submissions,
		files,
		email.NewSMTPSender(cfg.SMTP, logger),
		worker.EmailWorkerConfig{
			Concurrency: cfg.Queue.Workers,
			MaxAttempts: cfg.Email.MaxAttempts,
			SendTimeout: cfg.SMTP.Timeout,
		},
		logger,
	))
	manager.Register(worker.NewRetrySweeper(submissions, jobs,
		cfg.Email.RetryDelay, cfg.SMTP.Timeout+cfg.Email.RetryDelay, logger))

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Addr:            cfg.Server.Addr(),
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			MaxBodyBytes:    maxBodyBytes(cfg.Submission.MaxAttachmentBytes),
		},
		submissionService,
		httpserver.Renderers{
			PDF:  pdf,
			XLSX: receipt.NewExcelRenderer(logger),
		},
		kv,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return manager.Run(gctx) })
	g.Go(func() error { return server.Start(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newQueue(cfg config.QueueConfig, logger *zap.Logger) (queue.Queue, error) {
	switch cfg.Driver {
	case config.QueueDriverAMQP:
		q, err := queue.NewAMQP(queue.AMQPConfig{
			URL:      cfg.AMQPURL,
			Exchange: cfg.Exchange,
			Queue:    cfg.Queue,
			Prefetch: cfg.Workers,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect queue: %w", err)
		}
		return q, nil
	default:
		return queue.NewMemory(cfg.Buffer, logger), nil
	}
}

// maxBodyBytes allows for base64 growth of the attachments plus the form
func maxBodyBytes(attachments int64) int64 {
	if attachments <= 0 {
		return 0
	}
	return attachments*4/3 + 1<<20
}
