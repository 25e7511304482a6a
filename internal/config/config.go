package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// DefaultTemperature keeps answers close to the loaded sources.
const DefaultTemperature = 0.1

// Supported LLM providers.
const (
	ProviderArk    = "ark"
	ProviderOllama = "ollama"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Sources SourceConfig
}

// Load 从环境变量加载配置。CONFIG_FILE 指向的 YAML 文件提供默认值，环境变量优先。
func Load() (*Config, error) {
	env, err := newEnvironment()
	if err != nil {
		return nil, err
	}
	return load(env)
}

func load(env *environment) (*Config, error) {
	server, err := loadServerConfig(env)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(env)
	if err != nil {
		return nil, err
	}

	sources, err := loadSourceConfig(env)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Sources: sources}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(env *environment) (ServerConfig, error) {
	port := env.get("PORT")
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider      string
	APIKey        string
	AccessKey     string
	SecretKey     string
	Model         string
	BaseURL       string
	Region        string
	OllamaBaseURL string
	OllamaModel   string
	Temperature   *float64
	TopP          *float64
	MaxTokens     *int
	RateLimit     float64
	RateBurst     int
	Timeout       time.Duration
}

// Enabled 表示是否提供了所选后端必需的配置。
func (c AIConfig) Enabled() bool {
	if c.Provider == ProviderOllama {
		return c.OllamaModel != "" && c.OllamaBaseURL != ""
	}
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Model == "" || (c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "")) {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	temperature := float32(DefaultTemperature)
	if c.Temperature != nil {
		temperature = float32(*c.Temperature)
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(env *environment) (AIConfig, error) {
	provider := strings.ToLower(env.getOrDefault("LLM_PROVIDER", ProviderArk))
	if provider != ProviderArk && provider != ProviderOllama {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	temperature, err := env.parseOptionalFloat("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := env.parseOptionalFloat("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := env.parseOptionalInt("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	rateLimit := 0.0
	if override, err := env.parseOptionalFloat("AI_RATE_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return AIConfig{}, fmt.Errorf("invalid AI_RATE_LIMIT value %v: must not be negative", *override)
		}
		rateLimit = *override
	}

	rateBurst := 1
	if override, err := env.parseOptionalInt("AI_RATE_BURST"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 1 {
		rateBurst = *override
	}

	timeoutSeconds := 120
	if override, err := env.parseOptionalInt("AI_TIMEOUT_SECONDS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		timeoutSeconds = *override
	}

	return AIConfig{
		Provider:      provider,
		APIKey:        env.get("ARK_API_KEY"),
		AccessKey:     env.get("ARK_ACCESS_KEY"),
		SecretKey:     env.get("ARK_SECRET_KEY"),
		Model:         env.get("Model"),
		BaseURL:       env.getOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:        env.getOrDefault("ARK_REGION", "cn-beijing"),
		OllamaBaseURL: env.getOrDefault("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   env.get("OLLAMA_MODEL"),
		Temperature:   temperature,
		TopP:          topP,
		MaxTokens:     maxTokens,
		RateLimit:     rateLimit,
		RateBurst:     rateBurst,
		Timeout:       time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// SourceConfig 描述法律资料库的加载方式。
type SourceConfig struct {
	Dir          string
	Watch        bool
	BatchPolicy  string
	MaxFileBytes int64
}

func loadSourceConfig(env *environment) (SourceConfig, error) {
	watch, err := env.parseBool("SOURCE_WATCH", true)
	if err != nil {
		return SourceConfig{}, err
	}

	var maxBytes int64 = 20 << 20
	if override, err := env.parseOptionalInt("SOURCE_MAX_FILE_BYTES"); err != nil {
		return SourceConfig{}, err
	} else if override != nil {
		if *override <= 0 {
			return SourceConfig{}, fmt.Errorf("invalid SOURCE_MAX_FILE_BYTES value %d: must be positive", *override)
		}
		maxBytes = int64(*override)
	}

	policy := strings.ToLower(env.getOrDefault("SOURCE_BATCH_POLICY", "best-effort"))
	if policy != "best-effort" && policy != "atomic" {
		return SourceConfig{}, fmt.Errorf("invalid SOURCE_BATCH_POLICY value %q", policy)
	}

	return SourceConfig{
		Dir:          env.get("SOURCE_DIR"),
		Watch:        watch,
		BatchPolicy:  policy,
		MaxFileBytes: maxBytes,
	}, nil
}
