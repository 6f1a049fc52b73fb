package config

import (
	"log/slog"
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func baseEnv() env.EnvSet {
	return env.EnvSet{
		"INBOX_WS_URL":  "wss://chat.example.com/ws",
		"INBOX_API_URL": "https://chat.example.com/api",
		"INBOX_TOKEN":   "secret",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadFrom(baseEnv())

	req.NoError(err)
	req.Equal(":8080", cfg.Server.Addr)
	req.Equal([]string{"*"}, cfg.Server.Origins())
	req.Equal(2*time.Second, cfg.Transport.MinBackoff)
	req.Equal(30*time.Second, cfg.Transport.MaxBackoff)
	req.Equal(10*time.Second, cfg.Backend.Timeout)
	req.Equal("secret", cfg.Backend.Token, "backend token falls back to the transport token")
	req.Equal(12, cfg.AI.HistoryLimit)
	req.False(cfg.AI.Enabled())
	req.Equal("INFO", cfg.Log.Level)
}

func TestLoadFrom_Overrides(t *testing.T) {
	req := require.New(t)
	es := baseEnv()
	es["PORT"] = "127.0.0.1:9000"
	es["ALLOWED_ORIGINS"] = "https://desk.example.com, https://admin.example.com,"
	es["INBOX_API_TOKEN"] = "rest-secret"
	es["ARK_API_KEY"] = "ark"
	es["Model"] = "doubao-pro"
	es["ARK_TEMPERATURE"] = "0.3"

	cfg, err := LoadFrom(es)

	req.NoError(err)
	req.Equal("127.0.0.1:9000", cfg.Server.Addr)
	req.Equal([]string{"https://desk.example.com", "https://admin.example.com"}, cfg.Server.Origins())
	req.Equal("rest-secret", cfg.Backend.Token)
	req.True(cfg.AI.Enabled())
	req.NotNil(cfg.AI.Temperature)
	req.InDelta(0.3, *cfg.AI.Temperature, 1e-9)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(env.EnvSet)
	}{
		{name: "missing transport url", mutate: func(es env.EnvSet) { delete(es, "INBOX_WS_URL") }},
		{name: "missing backend url", mutate: func(es env.EnvSet) { delete(es, "INBOX_API_URL") }},
		{name: "port with space", mutate: func(es env.EnvSet) { es["PORT"] = "80 80" }},
		{name: "backoff ceiling below floor", mutate: func(es env.EnvSet) {
			es["INBOX_WS_MIN_BACKOFF"] = "5s"
			es["INBOX_WS_MAX_BACKOFF"] = "1s"
		}},
		{name: "unknown log format", mutate: func(es env.EnvSet) { es["LOG_FORMAT"] = "xml" }},
		{name: "bad duration", mutate: func(es env.EnvSet) { es["INBOX_API_TIMEOUT"] = "soon" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			es := baseEnv()
			tt.mutate(es)

			_, err := LoadFrom(es)

			require.Error(t, err)
		})
	}
}

func TestLogConfig_NewLogger(t *testing.T) {
	req := require.New(t)

	debug := LogConfig{Level: "debug", Format: "json"}.NewLogger(nil)
	req.True(debug.Handler().Enabled(t.Context(), slog.LevelDebug))

	fallback := LogConfig{Level: "loud", Format: "text"}.NewLogger(nil)
	req.False(fallback.Handler().Enabled(t.Context(), slog.LevelDebug))
}

func TestTransportConfig_TokenExpiry(t *testing.T) {
	req := require.New(t)
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator-1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}).SignedString([]byte("not-the-server-key"))
	req.NoError(err)

	got, ok := TransportConfig{Token: signed}.TokenExpiry()
	req.True(ok)
	req.True(expiresAt.Equal(got))

	_, ok = TransportConfig{Token: "opaque-api-token"}.TokenExpiry()
	req.False(ok)

	_, ok = TransportConfig{}.TokenExpiry()
	req.False(ok)
}
