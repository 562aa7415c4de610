package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"megayield/database"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `toml:"database_url"`
	DatabaseName string `toml:"database_name"`

	// HTTP API
	HTTPAddr   string `toml:"http_addr"`
	AdminToken string `toml:"admin_token"`

	// NATS
	NATSServers string `toml:"nats_servers"`
	NATSEnabled bool   `toml:"nats_enabled"`

	// Randomness oracle
	OracleMode            string         `toml:"oracle_mode"` // "simulated" or "nats"
	// OracleProviderAddress is the provider's signing address; NATS callbacks must recover to it
	OracleProviderAddress common.Address `toml:"oracle_provider_address"`
	OracleFee             int64          `toml:"oracle_fee"`
	OracleCallbackDelay   time.Duration  `toml:"oracle_callback_delay"`

	// Custody accounts and roles
	LotteryAddress  common.Address `toml:"lottery_address"`
	VestingAddress  common.Address `toml:"vesting_address"`
	VaultAddress    common.Address `toml:"vault_address"`
	OwnerAddress    common.Address `toml:"owner_address"`
	OperatorAddress common.Address `toml:"operator_address"`

	// Lottery parameters
	TicketPrice        int64         `toml:"ticket_price"`
	DayLength          time.Duration `toml:"day_length"`
	DayEpoch           time.Time     `toml:"day_epoch"`
	DrawRequestTimeout time.Duration `toml:"draw_request_timeout"`

	// Workers
	AutoDrawEnabled bool          `toml:"auto_draw_enabled"`
	AutoDrawLead    time.Duration `toml:"auto_draw_lead"`
	VaultAPYBps     int64         `toml:"vault_apy_bps"`
	YieldRunHour    int           `toml:"yield_run_hour"` // Hour in UTC when the daily yield run happens (0-23)

	// Discord announcements
	DiscordToken     string `toml:"discord_token"`
	DiscordChannelID string `toml:"discord_channel_id"`

	// Logging
	LogLevel string `toml:"log_level"`

	// Environment
	Environment string `toml:"environment"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsProduction returns true when running with ENVIRONMENT=production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// validateAutoDraw checks that an auto-drawn request can be answered before the day rolls over.
// Any purchase after the day ends expires requests still pending for it.
func (c *Config) validateAutoDraw() error {
	if !c.AutoDrawEnabled {
		return nil
	}
	if c.AutoDrawLead <= 0 || c.AutoDrawLead >= c.DayLength {
		return fmt.Errorf("AUTO_DRAW_LEAD must be positive and shorter than DAY_LENGTH, got %s", c.AutoDrawLead)
	}
	if c.OracleMode == "simulated" && c.AutoDrawLead <= c.OracleCallbackDelay {
		return fmt.Errorf("AUTO_DRAW_LEAD (%s) must exceed ORACLE_CALLBACK_DELAY (%s)", c.AutoDrawLead, c.OracleCallbackDelay)
	}
	return nil
}

// defaults returns the configuration used before any file or environment override
func defaults() *Config {
	return &Config{
		HTTPAddr:    ":8080",
		NATSServers: "nats://nats:4222",

		OracleMode:            "simulated",
		OracleProviderAddress: common.HexToAddress("0x00000000000000000000000000000000000e7709"),
		OracleFee:             100_000_000_000_000, // 0.0001 ETH in wei
		OracleCallbackDelay:   5 * time.Second,

		LotteryAddress: common.HexToAddress("0x000000000000000000000000000000000000107e"),
		VestingAddress: common.HexToAddress("0x0000000000000000000000000000000000007e57"),
		VaultAddress:   common.HexToAddress("0x000000000000000000000000000000000000ea7e"),

		TicketPrice:        1_000_000,
		DayLength:          24 * time.Hour,
		DayEpoch:           time.Unix(0, 0).UTC(),
		DrawRequestTimeout: 1 * time.Hour,

		AutoDrawLead: 10 * time.Minute,
		VaultAPYBps:  400,
		YieldRunHour: 0,
		LogLevel:     "info",
	}
}

// load loads configuration from an optional TOML file and then environment variables
func load() (*Config, error) {
	// A missing .env file is fine
	_ = godotenv.Load()

	config := defaults()

	if path := os.Getenv("MEGAYIELD_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, err
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}
	if config.OperatorAddress == (common.Address{}) {
		config.OperatorAddress = config.OwnerAddress
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.OwnerAddress == (common.Address{}) {
			return nil, fmt.Errorf("OWNER_ADDRESS is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
		if config.OracleMode != "simulated" && config.OracleMode != "nats" {
			return nil, fmt.Errorf("ORACLE_MODE must be simulated or nats, got %q", config.OracleMode)
		}
		if config.OracleMode == "nats" && !config.NATSEnabled {
			return nil, fmt.Errorf("ORACLE_MODE=nats requires NATS_ENABLED=true")
		}
		if config.DayLength <= 0 {
			return nil, fmt.Errorf("DAY_LENGTH must be positive")
		}
		if config.YieldRunHour < 0 || config.YieldRunHour > 23 {
			return nil, fmt.Errorf("YIELD_RUN_HOUR must be between 0 and 23")
		}
		if err := config.validateAutoDraw(); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// applyEnv overrides config fields with any environment variables that are set
func applyEnv(config *Config) error {
	setString(&config.DatabaseURL, "DATABASE_URL")
	setString(&config.DatabaseName, "DATABASE_NAME")
	setString(&config.HTTPAddr, "HTTP_ADDR")
	setString(&config.AdminToken, "ADMIN_TOKEN")
	setString(&config.NATSServers, "NATS_SERVERS")
	setString(&config.OracleMode, "ORACLE_MODE")
	setString(&config.DiscordToken, "DISCORD_TOKEN")
	setString(&config.DiscordChannelID, "DISCORD_CHANNEL_ID")
	setString(&config.LogLevel, "LOG_LEVEL")
	setString(&config.Environment, "ENVIRONMENT")

	setBool(&config.NATSEnabled, "NATS_ENABLED")
	setBool(&config.AutoDrawEnabled, "AUTO_DRAW_ENABLED")

	addresses := map[string]*common.Address{
		"ORACLE_PROVIDER_ADDRESS": &config.OracleProviderAddress,
		"LOTTERY_ADDRESS":         &config.LotteryAddress,
		"VESTING_ADDRESS":         &config.VestingAddress,
		"VAULT_ADDRESS":           &config.VaultAddress,
		"OWNER_ADDRESS":           &config.OwnerAddress,
		"OPERATOR_ADDRESS":        &config.OperatorAddress,
	}
	for key, target := range addresses {
		if value := os.Getenv(key); value != "" {
			if !common.IsHexAddress(value) {
				return fmt.Errorf("%s is not a valid address: %q", key, value)
			}
			*target = common.HexToAddress(value)
		}
	}

	ints := map[string]*int64{
		"ORACLE_FEE":    &config.OracleFee,
		"TICKET_PRICE":  &config.TicketPrice,
		"VAULT_APY_BPS": &config.VaultAPYBps,
	}
	for key, target := range ints {
		if value := os.Getenv(key); value != "" {
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", key, err)
			}
			*target = parsed
		}
	}
	if hour := os.Getenv("YIELD_RUN_HOUR"); hour != "" {
		parsed, err := strconv.Atoi(hour)
		if err != nil {
			return fmt.Errorf("YIELD_RUN_HOUR must be an integer: %w", err)
		}
		config.YieldRunHour = parsed
	}

	durations := map[string]*time.Duration{
		"ORACLE_CALLBACK_DELAY": &config.OracleCallbackDelay,
		"DAY_LENGTH":            &config.DayLength,
		"DRAW_REQUEST_TIMEOUT":  &config.DrawRequestTimeout,
		"AUTO_DRAW_LEAD":        &config.AutoDrawLead,
	}
	for key, target := range durations {
		if value := os.Getenv(key); value != "" {
			parsed, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("%s must be a duration: %w", key, err)
			}
			*target = parsed
		}
	}

	if epoch := os.Getenv("DAY_EPOCH"); epoch != "" {
		parsed, err := time.Parse(time.RFC3339, epoch)
		if err != nil {
			return fmt.Errorf("DAY_EPOCH must be RFC3339: %w", err)
		}
		config.DayEpoch = parsed.UTC()
	}

	return nil
}

// setString overrides target when the environment variable is set
func setString(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}

// setBool overrides target when the environment variable is set
func setBool(target *bool, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value == "true" || value == "1"
	}
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	config := defaults()
	config.Environment = "test"
	config.OracleCallbackDelay = 0
	config.OwnerAddress = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	config.OperatorAddress = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	config.AdminToken = "test-admin-token"
	return config
}
