package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
)

var validate = validator.New()

// Config 聚合收件箱服务的全部配置项。
type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Backend   BackendConfig
	AI        AIConfig
	Log       LogConfig
}

// Load 从进程环境变量加载配置。
func Load() (*Config, error) {
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return LoadFrom(es)
}

// LoadFrom 从 es 加载配置。
func LoadFrom(es env.EnvSet) (*Config, error) {
	server, err := loadServerConfig(es)
	if err != nil {
		return nil, err
	}

	transport, err := loadSection[TransportConfig](es, "transport")
	if err != nil {
		return nil, err
	}

	backend, err := loadSection[BackendConfig](es, "backend")
	if err != nil {
		return nil, err
	}
	if backend.Token == "" {
		backend.Token = transport.Token
	}

	ai, err := loadSection[AIConfig](es, "ai")
	if err != nil {
		return nil, err
	}

	logCfg, err := loadSection[LogConfig](es, "log")
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Transport: transport, Backend: backend, AI: ai, Log: logCfg}, nil
}

func loadSection[T any](es env.EnvSet, name string) (T, error) {
	var section T
	if err := env.Unmarshal(es, &section); err != nil {
		return section, fmt.Errorf("%s config: %w", name, err)
	}
	if err := validate.Struct(section); err != nil {
		return section, fmt.Errorf("%s config: %w", name, err)
	}
	return section, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string `env:"PORT,default=8080"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=*"`

	Addr string
}

// Origins 将 AllowedOrigins 拆分为 CORS 来源列表。
func (c ServerConfig) Origins() []string {
	return lo.FilterMap(strings.Split(c.AllowedOrigins, ","), func(origin string, _ int) (string, bool) {
		origin = strings.TrimSpace(origin)
		return origin, origin != ""
	})
}

func loadServerConfig(es env.EnvSet) (ServerConfig, error) {
	server, err := loadSection[ServerConfig](es, "server")
	if err != nil {
		return server, err
	}

	port := strings.TrimSpace(server.Port)
	switch {
	case port == "":
		server.Addr = ":8080"
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		server.Addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		server.Addr = ":" + port
	}
	return server, nil
}

// TransportConfig 描述与聊天后端的实时连接配置。
type TransportConfig struct {
	URL          string        `env:"INBOX_WS_URL,required=true" validate:"required,url"`
	Token        string        `env:"INBOX_TOKEN"`
	TokenParam   string        `env:"INBOX_WS_TOKEN_PARAM"`
	MinBackoff   time.Duration `env:"INBOX_WS_MIN_BACKOFF,default=2s" validate:"gt=0"`
	MaxBackoff   time.Duration `env:"INBOX_WS_MAX_BACKOFF,default=30s" validate:"gtefield=MinBackoff"`
	PingInterval time.Duration `env:"INBOX_WS_PING_INTERVAL,default=54s" validate:"gt=0"`
	PongWait     time.Duration `env:"INBOX_WS_PONG_WAIT,default=60s" validate:"gtfield=PingInterval"`
}

// TokenExpiry 在 Token 为 JWT 时读取 exp 声明。
// 不校验签名，签名只能由聊天服务端验证。
func (c TransportConfig) TokenExpiry() (time.Time, bool) {
	if c.Token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(c.Token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// BackendConfig 描述会话目录与历史消息的 REST 接口配置。
type BackendConfig struct {
	BaseURL string        `env:"INBOX_API_URL,required=true" validate:"required,url"`
	Token   string        `env:"INBOX_API_TOKEN"`
	Timeout time.Duration `env:"INBOX_API_TIMEOUT,default=10s" validate:"gt=0"`
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `env:"LOG_FORMAT,default=text" validate:"oneof=text json"`
}

// NewLogger 创建写入 w 的服务日志器。
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// AIConfig 描述回复建议所用的大模型配置。
type AIConfig struct {
	APIKey       string   `env:"ARK_API_KEY"`
	AccessKey    string   `env:"ARK_ACCESS_KEY"`
	SecretKey    string   `env:"ARK_SECRET_KEY"`
	Model        string   `env:"Model"`
	BaseURL      string   `env:"ARK_BASE_URL,default=https://ark.cn-beijing.volces.com/api/v3"`
	Region       string   `env:"ARK_REGION,default=cn-beijing"`
	Temperature  *float64 `env:"ARK_TEMPERATURE"`
	TopP         *float64 `env:"ARK_TOP_P"`
	MaxTokens    *int     `env:"ARK_MAX_TOKENS"`
	HistoryLimit int      `env:"AI_DRAFT_HISTORY_LIMIT,default=12" validate:"min=1"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_API_KEY and Model, or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}
