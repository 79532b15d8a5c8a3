package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesbot/gradesbot/internal/domain/grade"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("NOTION_TOKEN", "secret_abc")
	t.Setenv("NOTION_DATABASE_ID_LISTA", "db-lista")
	t.Setenv("NOTION_DATABASE_ID_SEMANALES", "db-semanales")
	t.Setenv("NOTION_DATABASE_ID_TAREAS", "db-tareas")
	t.Setenv("NOTION_DATABASE_ID_PARCIALES", "db-parciales")
	t.Setenv("NOTION_DATABASE_ID_PROBLEMAS", "db-problemas")
	t.Setenv("NOTION_DATABASE_ID_PROYECTO", "db-proyecto")
	t.Setenv("NOTION_DATABASE_ID_FINALES", "db-finales")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("APP_TIMEZONE", "")
	t.Setenv("USAGE_STORE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "America/Mexico_City", cfg.App.Timezone)
	require.NotNil(t, cfg.App.Location)
	assert.Equal(t, StoreSQLite, cfg.Storage.UsageStore)
	assert.Equal(t, "bot.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "db-proyecto", cfg.Notion.Databases[grade.CategoryPractical])
	assert.Equal(t, "db-lista", cfg.Notion.Databases[grade.CategoryRoster])
	assert.Equal(t, []string{"*"}, cfg.Gateway.AllowedOrigins)
	assert.Equal(t, "29-05-2025", cfg.Remedial.FirstRound)
}

func TestLoad_FileOverlay(t *testing.T) {
	setRequired(t)
	t.Setenv("NOTION_DATABASE_ID_FINALES", "")
	t.Setenv("REMEDIAL_SECOND_ROUND", "10-12-2025")

	path := filepath.Join(t.TempDir(), "gradesbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
notion:
  databases:
    finales: db-from-file
    lista: ignored-because-env-wins
gateway:
  allowed_origins: [https://calificaciones.example.com]
remedial:
  first_round: 01-12-2025
  second_round: 02-12-2025
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db-from-file", cfg.Notion.Databases[grade.CategoryFinal])
	assert.Equal(t, "db-lista", cfg.Notion.Databases[grade.CategoryRoster])
	assert.Equal(t, []string{"https://calificaciones.example.com"}, cfg.Gateway.AllowedOrigins)
	assert.Equal(t, "01-12-2025", cfg.Remedial.FirstRound)
	assert.Equal(t, "10-12-2025", cfg.Remedial.SecondRound)
}

func TestLoad_UnknownDatabaseInFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("notion:\n  databases:\n    leaderboard: x\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown notion database "leaderboard"`)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("NOTION_TOKEN", "")
	t.Setenv("NOTION_DATABASE_ID_TAREAS", "")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus_Mons")
	t.Setenv("USAGE_STORE", "mongo")

	_, err := Load()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "NOTION_TOKEN is required")
	assert.Contains(t, msg, "NOTION_DATABASE_ID_TAREAS is required")
	assert.Contains(t, msg, `APP_TIMEZONE "Mars/Olympus_Mons"`)
	assert.Contains(t, msg, `USAGE_STORE "mongo"`)
}

func TestValidate_StoreRequirements(t *testing.T) {
	setRequired(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("DATABASE_URL", "")

	t.Setenv("USAGE_STORE", "postgres")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL is required")

	t.Setenv("USAGE_STORE", "memory")
	t.Setenv("APP_ENV", "production")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed in production")
}

func TestValidateBotAndGateway(t *testing.T) {
	cfg := &Config{
		Telegram: TelegramConfig{Mode: "webhook"},
		Gateway:  GatewayConfig{Port: 0},
		App:      AppConfig{Environment: EnvProduction},
	}

	err := cfg.ValidateBot()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_BOT_TOKEN is required")
	assert.Contains(t, err.Error(), "TELEGRAM_WEBHOOK_URL is required")

	err = cfg.ValidateGateway()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_PORT")
	assert.Contains(t, err.Error(), "GATEWAY_API_KEY_HASH")

	cfg = &Config{Telegram: TelegramConfig{Token: "t", Mode: "polling"}, Gateway: GatewayConfig{Port: 8080}}
	assert.NoError(t, cfg.ValidateBot())
	assert.NoError(t, cfg.ValidateGateway())
}
