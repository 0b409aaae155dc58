package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config structure principale de configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Game      GameConfig      `mapstructure:"game"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig configuration du serveur HTTP
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Environment  string        `mapstructure:"environment"`
	Debug        bool          `mapstructure:"debug"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig configuration de la base de données
type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Name         string        `mapstructure:"name"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	SSLMode      string        `mapstructure:"ssl_mode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

// JWTConfig configuration JWT
type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	ExpirationTime time.Duration `mapstructure:"expiration_time"`
	CookieName     string        `mapstructure:"cookie_name"`
	CookieSecure   bool          `mapstructure:"cookie_secure"`
}

// LLMConfig configuration du client de génération d'attaques
type LLMConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// GameConfig constantes de jeu ajustables par déploiement
type GameConfig struct {
	BaseStartingHP       int           `mapstructure:"base_starting_hp"`
	BaseMomentum         int           `mapstructure:"base_momentum"`
	CreditsWinVsHuman    int           `mapstructure:"credits_win_vs_human"`
	CreditsWinVsBot      int           `mapstructure:"credits_win_vs_bot"`
	CreditsLoss          int           `mapstructure:"credits_loss"`
	StartingCredits      int           `mapstructure:"starting_credits"`
	PendingBattleExpiry  time.Duration `mapstructure:"pending_battle_expiry"`
}

// ScriptingConfig budgets du bac à sable Lua
type ScriptingConfig struct {
	WallClockBudget time.Duration `mapstructure:"wall_clock_budget"`
	StepBudget      int           `mapstructure:"step_budget"`
}

// RateLimitConfig configuration du rate limiting
type RateLimitConfig struct {
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	BurstSize         int           `mapstructure:"burst_size"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// LoggingConfig configuration des logs
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig charge la configuration depuis les variables d'environnement
func LoadConfig() (*Config, error) {
	// Configuration par défaut
	config := &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Environment:  "development",
			Debug:        true,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Name:         "battle",
			Username:     "postgres",
			Password:     "postgres",
			SSLMode:      "disable",
			MaxOpenConns: 25,
			MaxIdleConns: 5,
			MaxLifetime:  300 * time.Second,
		},
		JWT: JWTConfig{
			Secret:         "your-super-secret-jwt-key-change-in-production-minimum-64-characters",
			ExpirationTime: 24 * time.Hour,
			CookieName:     "battle_token",
			CookieSecure:   false,
		},
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
			Timeout:   60 * time.Second,
		},
		Game: GameConfig{
			BaseStartingHP:      100,
			BaseMomentum:        50,
			CreditsWinVsHuman:   3,
			CreditsWinVsBot:     2,
			CreditsLoss:         1,
			StartingCredits:     10,
			PendingBattleExpiry: 10 * time.Minute,
		},
		Scripting: ScriptingConfig{
			WallClockBudget: 250 * time.Millisecond,
			StepBudget:      10000,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 100,
			BurstSize:         20,
			CleanupInterval:   5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	// Configuration Viper
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Mapping des variables d'environnement
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.environment", "SERVER_ENVIRONMENT")
	viper.BindEnv("server.debug", "SERVER_DEBUG")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.username", "DATABASE_USERNAME")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_lifetime", "DATABASE_MAX_LIFETIME")

	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.expiration_time", "JWT_EXPIRATION_TIME")
	viper.BindEnv("jwt.cookie_name", "JWT_COOKIE_NAME")
	viper.BindEnv("jwt.cookie_secure", "JWT_COOKIE_SECURE")

	viper.BindEnv("llm.api_key", "LLM_API_KEY")
	viper.BindEnv("llm.model", "LLM_MODEL")
	viper.BindEnv("llm.max_tokens", "LLM_MAX_TOKENS")
	viper.BindEnv("llm.timeout", "LLM_TIMEOUT")

	viper.BindEnv("game.base_starting_hp", "GAME_BASE_STARTING_HP")
	viper.BindEnv("game.base_momentum", "GAME_BASE_MOMENTUM")
	viper.BindEnv("game.credits_win_vs_human", "GAME_CREDITS_WIN_VS_HUMAN")
	viper.BindEnv("game.credits_win_vs_bot", "GAME_CREDITS_WIN_VS_BOT")
	viper.BindEnv("game.credits_loss", "GAME_CREDITS_LOSS")
	viper.BindEnv("game.starting_credits", "GAME_STARTING_CREDITS")
	viper.BindEnv("game.pending_battle_expiry", "GAME_PENDING_BATTLE_EXPIRY")

	viper.BindEnv("scripting.wall_clock_budget", "SCRIPTING_WALL_CLOCK_BUDGET")
	viper.BindEnv("scripting.step_budget", "SCRIPTING_STEP_BUDGET")

	viper.BindEnv("rate_limit.requests_per_minute", "RATE_LIMIT_REQUESTS_PER_MINUTE")
	viper.BindEnv("rate_limit.burst_size", "RATE_LIMIT_BURST_SIZE")

	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOG_FORMAT")

	// Charger le fichier de configuration s'il existe
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Merger avec la configuration par défaut
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validation
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate valide la configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters long")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Game.BaseStartingHP <= 0 {
		return fmt.Errorf("base starting hp must be positive")
	}
	if c.Game.BaseMomentum <= 0 {
		return fmt.Errorf("base momentum must be positive")
	}

	if c.Scripting.WallClockBudget <= 0 {
		return fmt.Errorf("script wall clock budget must be positive")
	}
	if c.Scripting.StepBudget <= 0 {
		return fmt.Errorf("script step budget must be positive")
	}

	return nil
}

// GetDatabaseURL retourne la chaîne de connexion PostgreSQL
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Name, c.SSLMode,
	)
}
