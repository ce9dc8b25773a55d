package config

import (
	"testing"

	"github.com/caarlos0/env/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M0nstr1k/ds/internal/models"
)

func parse(vars map[string]string) (*Config, error) {
	return Parse(env.Options{Environment: vars})
}

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(map[string]string{"STORAGE_DRIVER": "memory"})
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 5, cfg.ReferralPercent)
	assert.Equal(t, 30, cfg.ReferralPromoDays)
	assert.Equal(t, 8, cfg.Workers)
	assert.True(t, cfg.HTTPEnabled)
	assert.Empty(t, cfg.Cards)
}

func TestParseAdminsAndCards(t *testing.T) {
	cfg, err := parse(map[string]string{
		"STORAGE_DRIVER": "memory",
		"ADMIN_IDS":      "11,22",
		"PAYMENT_CARDS":  "2200 0000 0000 0001:11, 2200 0000 0000 0002:22",
	})
	require.NoError(t, err)
	assert.True(t, cfg.IsAdmin(22))
	assert.False(t, cfg.IsAdmin(33))
	assert.Equal(t, []models.PaymentCard{
		{Card: "2200 0000 0000 0001", AdminID: 11},
		{Card: "2200 0000 0000 0002", AdminID: 22},
	}, cfg.Cards)
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := map[string]map[string]string{
		"нечисловой admin id":     {"STORAGE_DRIVER": "memory", "ADMIN_IDS": "11,abc"},
		"карта без админа":        {"STORAGE_DRIVER": "memory", "PAYMENT_CARDS": "2200"},
		"админ карты не в списке": {"STORAGE_DRIVER": "memory", "ADMIN_IDS": "1", "PAYMENT_CARDS": "2200000000000001:2"},
		"короткий номер карты":    {"STORAGE_DRIVER": "memory", "ADMIN_IDS": "2", "PAYMENT_CARDS": "2200:2"},
		"буквы в номере карты":    {"STORAGE_DRIVER": "memory", "ADMIN_IDS": "2", "PAYMENT_CARDS": "2200 0000 0000 000x:2"},
		"postgres без DSN":        {"STORAGE_DRIVER": "postgres"},
		"неизвестное хранилище":   {"STORAGE_DRIVER": "redis"},
		"ноль воркеров":           {"STORAGE_DRIVER": "memory", "WORKERS": "0"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parse(vars)
			assert.Error(t, err)
		})
	}
}
