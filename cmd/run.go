package cmd

import (
	"context"
	"fmt"
	"time"

	"megayield/api"
	"megayield/application"
	"megayield/config"
	"megayield/database"
	"megayield/events"
	"megayield/infrastructure"
	"megayield/infrastructure/observability"
	"megayield/oracle"
	"megayield/repository"
	"megayield/service"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("migrate", true, "Apply pending migrations before starting")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the lottery API and background workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrateFirst, _ := cmd.Flags().GetBool("migrate")
		return Run(cmd.Context(), migrateFirst)
	},
}

// Run initializes and starts the application
func Run(ctx context.Context, migrateFirst bool) error {
	cfg := config.Get()
	configureLogging(cfg)

	log.WithField("environment", cfg.Environment).Info("Starting megayield...")

	if migrateFirst {
		log.Info("Applying database migrations...")
		if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	settings, err := repository.BootstrapSettings(ctx, db, cfg.TicketPrice)
	if err != nil {
		return fmt.Errorf("failed to bootstrap lottery settings: %w", err)
	}
	log.WithFields(log.Fields{
		"currentDay":        settings.CurrentDay,
		"ticketPrice":       settings.TicketPrice,
		"vestingConfigured": settings.IsVestingConfigured(),
	}).Info("Lottery settings loaded")

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	observability.Register(eventBus)

	var natsClient *infrastructure.NATSClient
	if cfg.NATSEnabled {
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Warn("Error closing NATS connection")
			}
		}()

		publisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
		if err := publisher.EnsureDomainEventStream(natsClient); err != nil {
			return fmt.Errorf("failed to ensure domain event stream: %w", err)
		}
		publisher.Register(eventBus)
	}

	// Oracle
	var (
		randomness service.RandomnessPort
		simulated  *oracle.Simulated
	)
	switch cfg.OracleMode {
	case "nats":
		if natsClient == nil {
			return fmt.Errorf("oracle mode nats requires NATS to be enabled")
		}
		randomness = oracle.NewNATSPort(natsClient, cfg.OracleProviderAddress)
	default:
		secret, err := application.CryptoEntropy()
		if err != nil {
			return fmt.Errorf("failed to generate oracle secret: %w", err)
		}
		simulated = oracle.NewSimulated(cfg.OracleProviderAddress, cfg.OracleFee, secret, cfg.OracleCallbackDelay)
		defer simulated.Close()
		randomness = simulated
	}
	log.WithFields(log.Fields{
		"mode":     cfg.OracleMode,
		"provider": cfg.OracleProviderAddress.Hex(),
	}).Info("Randomness oracle configured")

	// Services
	vault := service.NewPooledYieldVault(cfg.VaultAddress, cfg.VestingAddress)
	vestingManager := service.NewVestingManager(uowFactory, vault, cfg.VestingAddress)
	lotteryService := service.NewLotteryService(uowFactory, randomness, vestingManager, cfg)
	tokenService := service.NewTokenService(uowFactory, cfg)
	yieldService := service.NewYieldService(uowFactory, cfg)

	randomness.OnCallback(func(ctx context.Context, provider common.Address, requestID uint64, randomValue common.Hash) error {
		_, err := lotteryService.OnRandomValue(ctx, provider, requestID, randomValue)
		return err
	})
	if port, ok := randomness.(*oracle.NATSPort); ok {
		if err := port.Start(); err != nil {
			return fmt.Errorf("failed to subscribe to oracle callbacks: %w", err)
		}
	}

	// Discord announcements
	if cfg.DiscordToken != "" && cfg.DiscordChannelID != "" {
		session, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			return fmt.Errorf("failed to create Discord session: %w", err)
		}
		announcer := infrastructure.NewDiscordAnnouncer(session, cfg.DiscordChannelID)
		announcer.Register(eventBus)
		stopAnnouncer := announcer.Start(ctx)
		defer stopAnnouncer()
		log.WithField("channelID", cfg.DiscordChannelID).Info("Discord announcements enabled")
	}

	// Workers
	stopYield := application.NewYieldAccrualWorker(yieldService, cfg.YieldRunHour).Start(ctx)
	defer stopYield()

	if cfg.AutoDrawEnabled {
		stopAutoDraw := application.NewAutoDrawWorker(lotteryService, cfg.OperatorAddress, cfg.AutoDrawLead).Start(ctx)
		defer stopAutoDraw()
	}

	// HTTP API
	server := api.NewServer(lotteryService, vestingManager, tokenService, cfg)
	server.EnableMetrics()
	if simulated != nil {
		server.SetCallbackExecutor(simulated)
	}

	log.Infof("megayield is running in %s mode...", cfg.Environment)
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	log.Info("Shutting down megayield...")

	// Give in-flight workers a moment to observe cancellation
	time.Sleep(1 * time.Second)
	log.Info("Shutdown completed")
	return nil
}

// configureLogging applies the configured level, with JSON output in production
func configureLogging(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
