package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/proofstake-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("CONFIG_PATH", "")

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 7, cfg.ExamQuestionCount)
	require.Equal(t, 4, cfg.GradingConcurrency)
	require.Equal(t, 300, cfg.GradeTimeoutSeconds)
	require.Empty(t, cfg.CORSAllowedOrigins)
	require.Equal(t, "postgres", cfg.DB().Driver)
}

func TestLoadConfigOverlayAndKeyList(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("LLM_API_KEYS", "k1, k2")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.proofstake.dev,https://staging.proofstake.dev")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm_api_keys: [a, b, c]\nexam_question_count: 5\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, cfg.LLM().APIKeys)
	require.Equal(t, 5, cfg.ExamQuestionCount)
	require.Equal(t, "sqlite", cfg.DBDriver)
	require.Equal(t, []string{"https://app.proofstake.dev", "https://staging.proofstake.dev"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfigRejects(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("JWT_SECRET_KEY", "")
	_, err := LoadConfig(logger.Nop())
	require.Error(t, err)

	t.Setenv("JWT_SECRET_KEY", "s3cret")
	t.Setenv("EXAM_QUESTION_COUNT", "12")
	_, err = LoadConfig(logger.Nop())
	require.Error(t, err)
}
