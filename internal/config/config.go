package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/Veraticus/the-books-must-balance/internal/llm"
	"github.com/Veraticus/the-books-must-balance/internal/plaid"
	"github.com/Veraticus/the-books-must-balance/internal/sheets"
	"github.com/spf13/viper"
)

// Defaults applied when a key is absent from the config file and environment.
const (
	DefaultDatabasePath        = "$HOME/.local/share/books/books.db"
	DefaultServerAddr          = ":8080"
	DefaultCertDir             = "$HOME/.config/books/certs"
	DefaultLookbackMonths      = 12
	DefaultCategorizeBatchSize = 50
	DefaultReconcileWindowDays = 90
	DefaultRetentionYears      = 7
)

// DefaultReviewPatterns are the description fragments that send a transaction to manual review.
var DefaultReviewPatterns = []string{"venmo", "transfer", "payment"}

// App holds the settings that are not owned by a vendor client.
type App struct {
	DatabasePath        string
	ServerAddr          string
	VaultKey            string
	RetentionBucket     string
	ReviewPatterns      []string
	SyncMinInterval     time.Duration
	LookbackMonths      int
	CategorizeBatchSize int
	ReconcileWindowDays int
	RetentionYears      int
}

// SetDefaults registers default values with viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.cert_dir", DefaultCertDir)
	v.SetDefault("plaid.environment", "sandbox")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("sync.lookback_months", DefaultLookbackMonths)
	v.SetDefault("sync.min_interval", time.Hour)
	v.SetDefault("categorize.batch_size", DefaultCategorizeBatchSize)
	v.SetDefault("reconcile.window_days", DefaultReconcileWindowDays)
	v.SetDefault("review.patterns", DefaultReviewPatterns)
	v.SetDefault("retention.years", DefaultRetentionYears)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// LoadApp reads the application settings from viper.
func LoadApp(v *viper.Viper) (*App, error) {
	cfg := &App{
		DatabasePath:        ExpandPath(v.GetString("database.path")),
		ServerAddr:          v.GetString("server.addr"),
		VaultKey:            v.GetString("vault.key"),
		RetentionBucket:     v.GetString("retention.bucket"),
		ReviewPatterns:      v.GetStringSlice("review.patterns"),
		SyncMinInterval:     v.GetDuration("sync.min_interval"),
		LookbackMonths:      v.GetInt("sync.lookback_months"),
		CategorizeBatchSize: v.GetInt("categorize.batch_size"),
		ReconcileWindowDays: v.GetInt("reconcile.window_days"),
		RetentionYears:      v.GetInt("retention.years"),
	}

	if cfg.VaultKey == "" {
		cfg.VaultKey = os.Getenv("BOOKS_VAULT_KEY")
	}

	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if cfg.LookbackMonths <= 0 {
		return nil, fmt.Errorf("%w: sync.lookback_months must be positive", common.ErrInvalidConfig)
	}
	if cfg.CategorizeBatchSize <= 0 {
		return nil, fmt.Errorf("%w: categorize.batch_size must be positive", common.ErrInvalidConfig)
	}
	if cfg.ReconcileWindowDays <= 0 {
		return nil, fmt.Errorf("%w: reconcile.window_days must be positive", common.ErrInvalidConfig)
	}
	if len(cfg.ReviewPatterns) == 0 {
		cfg.ReviewPatterns = DefaultReviewPatterns
	}

	return cfg, nil
}

// LoadPlaidConfig loads Plaid credentials from viper, falling back to PLAID_* variables.
func LoadPlaidConfig(v *viper.Viper) (plaid.Config, error) {
	cfg := plaid.Config{
		ClientID:    v.GetString("plaid.client_id"),
		Secret:      v.GetString("plaid.secret"),
		Environment: v.GetString("plaid.environment"),
	}

	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("PLAID_CLIENT_ID")
	}
	if cfg.Secret == "" {
		cfg.Secret = os.Getenv("PLAID_SECRET")
	}
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}

	if err := cfg.Validate(); err != nil {
		return plaid.Config{}, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// LoadLLMConfig loads the language model settings, picking the API key for the provider.
func LoadLLMConfig(v *viper.Viper) (llm.Config, error) {
	cfg := llm.Config{
		Provider:    v.GetString("llm.provider"),
		Model:       v.GetString("llm.model"),
		APIKey:      v.GetString("llm.api_key"),
		Temperature: v.GetFloat64("llm.temperature"),
		MaxTokens:   v.GetInt("llm.max_tokens"),
		RateLimit:   v.GetInt("llm.rate_limit"),
		Timeout:     v.GetDuration("llm.timeout"),
	}

	if cfg.APIKey == "" {
		switch cfg.Provider {
		case "openai":
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic":
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "gemini":
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return llm.Config{}, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
	}
	return cfg, nil
}

// LoadSheetsConfig loads Google Sheets configuration from viper and environment variables.
// Viper values win over GOOGLE_SHEETS_* variables, which win over defaults.
func LoadSheetsConfig(v *viper.Viper) (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()

	if s := v.GetString("sheets.service_account_path"); s != "" {
		cfg.ServiceAccountPath = ExpandPath(s)
	}
	if s := v.GetString("sheets.client_id"); s != "" {
		cfg.ClientID = s
	}
	if s := v.GetString("sheets.client_secret"); s != "" {
		cfg.ClientSecret = s
	}
	if s := v.GetString("sheets.refresh_token"); s != "" {
		cfg.RefreshToken = s
	}
	if s := v.GetString("sheets.spreadsheet_id"); s != "" {
		cfg.SpreadsheetID = s
	}
	if s := v.GetString("sheets.spreadsheet_name"); s != "" {
		cfg.SpreadsheetName = s
	}

	if cfg.ServiceAccountPath == "" {
		if s := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); s != "" {
			cfg.ServiceAccountPath = ExpandPath(s)
		}
	}
	if cfg.ClientID == "" {
		cfg.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if cfg.RefreshToken == "" {
		cfg.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if cfg.SpreadsheetID == "" {
		cfg.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
