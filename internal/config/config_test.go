package config

import (
	"testing"
	"time"

	"github.com/Veraticus/the-books-must-balance/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadApp_Defaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("BOOKS_VAULT_KEY", "")

	cfg, err := LoadApp(newViper())
	require.NoError(t, err)

	assert.Equal(t, "/home/tester/.local/share/books/books.db", cfg.DatabasePath)
	assert.Equal(t, DefaultLookbackMonths, cfg.LookbackMonths)
	assert.Equal(t, time.Hour, cfg.SyncMinInterval)
	assert.Equal(t, DefaultReviewPatterns, cfg.ReviewPatterns)
	assert.Equal(t, DefaultReconcileWindowDays, cfg.ReconcileWindowDays)
}

func TestLoadApp_Invalid(t *testing.T) {
	v := newViper()
	v.Set("categorize.batch_size", 0)

	_, err := LoadApp(v)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadApp_VaultKeyFromEnv(t *testing.T) {
	t.Setenv("BOOKS_VAULT_KEY", "from-env")

	cfg, err := LoadApp(newViper())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.VaultKey)
}

func TestLoadPlaidConfig(t *testing.T) {
	t.Setenv("PLAID_CLIENT_ID", "env-client")
	t.Setenv("PLAID_SECRET", "env-secret")

	v := newViper()
	cfg, err := LoadPlaidConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "env-client", cfg.ClientID)
	assert.Equal(t, "sandbox", cfg.Environment)

	v.Set("plaid.environment", "staging")
	_, err = LoadPlaidConfig(v)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestLoadLLMConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadLLMConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-test", cfg.APIKey)

	v := newViper()
	v.Set("llm.provider", "gemini")
	t.Setenv("GEMINI_API_KEY", "")
	_, err = LoadLLMConfig(v)
	require.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("BOOKS_DIR", "/srv/books")

	assert.Equal(t, "/home/tester/db.sqlite", ExpandPath("~/db.sqlite"))
	assert.Equal(t, "/srv/books/db.sqlite", ExpandPath("$BOOKS_DIR/db.sqlite"))
	assert.Equal(t, "", ExpandPath(""))
}
