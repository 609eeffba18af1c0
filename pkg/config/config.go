package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 环境变量名
const (
	EnvAPIBaseURL       = "BOTDASH_API_BASE_URL"
	EnvAPITimeout       = "BOTDASH_API_TIMEOUT"
	EnvAPIRetryCount    = "BOTDASH_API_RETRY_COUNT"
	EnvTradeInterval    = "BOTDASH_TRADE_INTERVAL"
	EnvStrategyInterval = "BOTDASH_STRATEGY_INTERVAL"
	EnvHistoryWindow    = "BOTDASH_HISTORY_WINDOW"
	EnvDefaultUSDT      = "BOTDASH_DEFAULT_USDT"
	EnvLogLevel         = "BOTDASH_LOG_LEVEL"
	EnvLogFile          = "BOTDASH_LOG_FILE"
	EnvLogConsole       = "BOTDASH_LOG_CONSOLE"
	EnvMetricsListen    = "BOTDASH_METRICS_LISTEN"
	EnvUITitle          = "BOTDASH_UI_TITLE"
	EnvHeadless         = "BOTDASH_HEADLESS"
)

// APIConfig 远端交易服务
type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
}

// PollConfig 轮询周期
type PollConfig struct {
	TradeInterval    time.Duration
	StrategyInterval time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
	Console    bool
}

// UIConfig 终端界面
type UIConfig struct {
	Title    string
	Headless bool
}

// Config 应用配置
type Config struct {
	API           APIConfig
	Poll          PollConfig
	HistoryWindow int
	DefaultUSDT   float64
	Log           LogConfig
	MetricsListen string // 为空则不启动 /debug/vars
	UI            UIConfig
}

// Defaults 默认配置
func Defaults() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8081/api",
			Timeout: 5 * time.Second,
		},
		Poll: PollConfig{
			TradeInterval:    2 * time.Second,
			StrategyInterval: 5 * time.Second,
		},
		HistoryWindow: 50,
		DefaultUSDT:   1000,
		Log: LogConfig{
			Level:      "info",
			File:       "logs/botdash.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		UI: UIConfig{Title: "AI Trading Bot Dashboard"},
	}
}

// ConfigFile 配置文件结构（YAML / TOML / JSON 共用）。
// 时长使用字符串（如 "2s"），零值表示未配置。
type ConfigFile struct {
	API struct {
		BaseURL    string `yaml:"base_url" toml:"base_url" json:"base_url"`
		Timeout    string `yaml:"timeout" toml:"timeout" json:"timeout"`
		RetryCount int    `yaml:"retry_count" toml:"retry_count" json:"retry_count"`
	} `yaml:"api" toml:"api" json:"api"`
	Poll struct {
		TradeInterval    string `yaml:"trade_interval" toml:"trade_interval" json:"trade_interval"`
		StrategyInterval string `yaml:"strategy_interval" toml:"strategy_interval" json:"strategy_interval"`
	} `yaml:"poll" toml:"poll" json:"poll"`
	History struct {
		Window int `yaml:"window" toml:"window" json:"window"`
	} `yaml:"history" toml:"history" json:"history"`
	Portfolio struct {
		DefaultUSDT float64 `yaml:"default_usdt" toml:"default_usdt" json:"default_usdt"`
	} `yaml:"portfolio" toml:"portfolio" json:"portfolio"`
	Log struct {
		Level      string `yaml:"level" toml:"level" json:"level"`
		File       string `yaml:"file" toml:"file" json:"file"`
		MaxSize    int    `yaml:"max_size" toml:"max_size" json:"max_size"`
		MaxBackups int    `yaml:"max_backups" toml:"max_backups" json:"max_backups"`
		MaxAge     int    `yaml:"max_age" toml:"max_age" json:"max_age"`
		Compress   *bool  `yaml:"compress" toml:"compress" json:"compress"`
		Console    *bool  `yaml:"console" toml:"console" json:"console"`
	} `yaml:"log" toml:"log" json:"log"`
	Metrics struct {
		Listen string `yaml:"listen" toml:"listen" json:"listen"`
	} `yaml:"metrics" toml:"metrics" json:"metrics"`
	UI struct {
		Title    string `yaml:"title" toml:"title" json:"title"`
		Headless *bool  `yaml:"headless" toml:"headless" json:"headless"`
	} `yaml:"ui" toml:"ui" json:"ui"`
}

// Load 加载配置：默认值 <- 配置文件（可选） <- .env <- 环境变量。
// 返回的配置尚未校验，调用方需要再调用 Validate。
func Load(filePath string) (*Config, error) {
	cfg := Defaults()

	if filePath != "" {
		cf, err := loadConfigFile(filePath)
		if err != nil {
			return nil, err
		}
		if err := cf.applyTo(cfg); err != nil {
			return nil, err
		}
	}

	// .env 不存在时静默忽略
	_ = godotenv.Load()

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFile 加载配置文件（支持 YAML、TOML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &configFile); err != nil {
			return nil, fmt.Errorf("解析 TOML 配置文件失败: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("解析 JSON 配置文件失败: %w", err)
		}
	default:
		return nil, fmt.Errorf("不支持的配置文件格式: %s (支持 .yaml, .yml, .toml, .json)", ext)
	}

	return &configFile, nil
}

func (cf *ConfigFile) applyTo(cfg *Config) error {
	setStr(&cfg.API.BaseURL, cf.API.BaseURL)
	if err := setDuration(&cfg.API.Timeout, "api.timeout", cf.API.Timeout); err != nil {
		return err
	}
	if cf.API.RetryCount > 0 {
		cfg.API.RetryCount = cf.API.RetryCount
	}
	if err := setDuration(&cfg.Poll.TradeInterval, "poll.trade_interval", cf.Poll.TradeInterval); err != nil {
		return err
	}
	if err := setDuration(&cfg.Poll.StrategyInterval, "poll.strategy_interval", cf.Poll.StrategyInterval); err != nil {
		return err
	}
	if cf.History.Window != 0 {
		cfg.HistoryWindow = cf.History.Window
	}
	if cf.Portfolio.DefaultUSDT != 0 {
		cfg.DefaultUSDT = cf.Portfolio.DefaultUSDT
	}

	setStr(&cfg.Log.Level, cf.Log.Level)
	setStr(&cfg.Log.File, cf.Log.File)
	if cf.Log.MaxSize > 0 {
		cfg.Log.MaxSize = cf.Log.MaxSize
	}
	if cf.Log.MaxBackups > 0 {
		cfg.Log.MaxBackups = cf.Log.MaxBackups
	}
	if cf.Log.MaxAge > 0 {
		cfg.Log.MaxAge = cf.Log.MaxAge
	}
	if cf.Log.Compress != nil {
		cfg.Log.Compress = *cf.Log.Compress
	}
	if cf.Log.Console != nil {
		cfg.Log.Console = *cf.Log.Console
	}

	setStr(&cfg.MetricsListen, cf.Metrics.Listen)
	setStr(&cfg.UI.Title, cf.UI.Title)
	if cf.UI.Headless != nil {
		cfg.UI.Headless = *cf.UI.Headless
	}
	return nil
}

// applyEnvOverrides 环境变量非空时覆盖对应字段
func applyEnvOverrides(cfg *Config) error {
	setStr(&cfg.API.BaseURL, os.Getenv(EnvAPIBaseURL))
	if err := setDuration(&cfg.API.Timeout, EnvAPITimeout, os.Getenv(EnvAPITimeout)); err != nil {
		return err
	}
	if err := setInt(&cfg.API.RetryCount, EnvAPIRetryCount); err != nil {
		return err
	}
	if err := setDuration(&cfg.Poll.TradeInterval, EnvTradeInterval, os.Getenv(EnvTradeInterval)); err != nil {
		return err
	}
	if err := setDuration(&cfg.Poll.StrategyInterval, EnvStrategyInterval, os.Getenv(EnvStrategyInterval)); err != nil {
		return err
	}
	if err := setInt(&cfg.HistoryWindow, EnvHistoryWindow); err != nil {
		return err
	}
	if v := os.Getenv(EnvDefaultUSDT); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s 格式错误: %w", EnvDefaultUSDT, err)
		}
		cfg.DefaultUSDT = f
	}
	setStr(&cfg.Log.Level, os.Getenv(EnvLogLevel))
	setStr(&cfg.Log.File, os.Getenv(EnvLogFile))
	if err := setBool(&cfg.Log.Console, EnvLogConsole); err != nil {
		return err
	}
	setStr(&cfg.MetricsListen, os.Getenv(EnvMetricsListen))
	setStr(&cfg.UI.Title, os.Getenv(EnvUITitle))
	return setBool(&cfg.UI.Headless, EnvHeadless)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url 未配置")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url 不是合法的 URL: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout 必须大于 0")
	}
	if c.API.RetryCount < 0 {
		return fmt.Errorf("api.retry_count 不能为负数")
	}
	if c.Poll.TradeInterval <= 0 {
		return fmt.Errorf("poll.trade_interval 必须大于 0")
	}
	if c.Poll.StrategyInterval <= 0 {
		return fmt.Errorf("poll.strategy_interval 必须大于 0")
	}
	if c.HistoryWindow < 1 {
		return fmt.Errorf("history.window 必须大于等于 1")
	}
	if c.DefaultUSDT < 0 {
		return fmt.Errorf("portfolio.default_usdt 不能为负数")
	}
	return nil
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s 格式错误: %w", key, err)
	}
	*dst = d
	return nil
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s 格式错误: %w", env, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s 格式错误: %w", env, err)
	}
	*dst = b
	return nil
}
