package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // 容器镜像可能不带系统时区库

	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sheet    SheetConfig    `mapstructure:"sheet"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Mail     MailConfig     `mapstructure:"mail"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int             `mapstructure:"port"`
	BodyLimit    int64           `mapstructure:"body_limit"`
	CORS         CORSConfig      `mapstructure:"cors"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
}

// CORSConfig 跨域配置，包含 "*" 时允许任意来源
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// RateLimitConfig 提交接口限流配置（依赖 Redis）
type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

// SheetConfig 表格存储配置
//
// ID 为工作簿标识（数据目录下的 .xlsx 文件名），URL 为通知邮件中的表格链接
type SheetConfig struct {
	DataDir   string `mapstructure:"data_dir"`
	ID        string `mapstructure:"id"`
	SheetName string `mapstructure:"sheet_name"`
	URL       string `mapstructure:"url"`
}

// IntakeConfig 提交流水线配置，构造后只读
type IntakeConfig struct {
	SheetID        string        `mapstructure:"-"`
	SheetName      string        `mapstructure:"-"`
	SheetURL       string        `mapstructure:"-"`
	OperatorEmail  string        `mapstructure:"operator_email"`
	MaxRows        int           `mapstructure:"max_rows"`
	WarnRatio      float64       `mapstructure:"warn_ratio"`
	Timezone       string        `mapstructure:"timezone"`
	Palette        PaletteConfig `mapstructure:"palette"`
	HeaderFontSize float64       `mapstructure:"header_font_size"`
}

// WarnThreshold 触发容量预警的行数
func (c IntakeConfig) WarnThreshold() int {
	return int(float64(c.MaxRows) * c.WarnRatio)
}

// PaletteConfig 表格格式化配色
type PaletteConfig struct {
	HeaderBackground string `mapstructure:"header_background"`
	HeaderText       string `mapstructure:"header_text"`
	EvenRow          string `mapstructure:"even_row"`
	OddRow           string `mapstructure:"odd_row"`
	Border           string `mapstructure:"border"`
}

// MailConfig SMTP 邮件配置（主通道 + 可选备用通道）
type MailConfig struct {
	SMTPHost string          `mapstructure:"smtp_host"`
	SMTPPort int             `mapstructure:"smtp_port"`
	Username string          `mapstructure:"username"`
	Password string          `mapstructure:"password"`
	From     string          `mapstructure:"from"`
	Fallback SMTPRelayConfig `mapstructure:"fallback"`
}

// SMTPRelayConfig 备用 SMTP 中继
type SMTPRelayConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// AMQPConfig RabbitMQ 通知通道配置，URL 为空时不启用
type AMQPConfig struct {
	URL   string `mapstructure:"url"`
	Queue string `mapstructure:"queue"`
}

// DatabaseConfig PostgreSQL 数据库配置（通知 outbox），Host 为空时不启用
type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Name         string `mapstructure:"name"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"sslmode"`
	Timezone     string `mapstructure:"timezone"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置，Addr 为空时不启用限流
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	Service     string   `mapstructure:"service"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("WECC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 表格标识由 sheet 段统一提供
	cfg.Intake.SheetID = cfg.Sheet.ID
	cfg.Intake.SheetName = cfg.Sheet.SheetName
	cfg.Intake.SheetURL = cfg.Sheet.URL

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit", 64<<10)
	v.SetDefault("server.cors.allow_origins", []string{"*"})
	v.SetDefault("server.rate_limit.limit", 10)
	v.SetDefault("server.rate_limit.window", "1m")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("sheet.data_dir", "./data")
	v.SetDefault("sheet.id", "wecc-contacts")
	v.SetDefault("sheet.sheet_name", "Contacts")
	v.SetDefault("sheet.url", "")

	v.SetDefault("intake.operator_email", "admin@wecc.church")
	v.SetDefault("intake.max_rows", 1000)
	v.SetDefault("intake.warn_ratio", 0.9)
	v.SetDefault("intake.timezone", "Africa/Accra")
	v.SetDefault("intake.header_font_size", 12)
	v.SetDefault("intake.palette.header_background", "#4A86E8")
	v.SetDefault("intake.palette.header_text", "#FFFFFF")
	v.SetDefault("intake.palette.even_row", "#F3F6FC")
	v.SetDefault("intake.palette.odd_row", "#FFFFFF")
	v.SetDefault("intake.palette.border", "#D0D7E5")

	v.SetDefault("mail.smtp_host", "")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.from", "no-reply@wecc.church")
	v.SetDefault("mail.fallback.smtp_port", 587)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.queue", "operator_notifications")

	v.SetDefault("db.host", "")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "wecc")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Africa/Accra")
	v.SetDefault("db.max_open_conns", 5)
	v.SetDefault("db.max_idle_conns", 2)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.service", "wecc-contact")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Sheet.ID == "" {
		return fmt.Errorf("配置校验失败: sheet.id 不能为空")
	}
	if c.Intake.OperatorEmail == "" {
		return fmt.Errorf("配置校验失败: intake.operator_email 不能为空")
	}
	if c.Intake.MaxRows <= 0 {
		return fmt.Errorf("配置校验失败: intake.max_rows 必须大于 0")
	}
	if c.Intake.WarnRatio <= 0 || c.Intake.WarnRatio > 1 {
		return fmt.Errorf("配置校验失败: intake.warn_ratio 必须在 (0, 1] 之间")
	}
	if _, err := time.LoadLocation(c.Intake.Timezone); err != nil {
		return fmt.Errorf("配置校验失败: intake.timezone 无效: %w", err)
	}
	return nil
}
