package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config 应用程序配置
type Config struct {
	APIPort  int
	LogLevel string
	LogFile  LogFileConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Alipay   AlipayConfig
	Admin    AdminConfig
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Enabled    bool
	Path       string
	MaxSize    int // 单个文件最大大小，单位MB
	MaxBackups int // 最大保留旧文件数量
	MaxAge     int // 最大保留天数
	Compress   bool
}

// DatabaseConfig MySQL数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
}

// EmailConfig 邮件配置
type EmailConfig struct {
	Host     string // SMTP服务器地址
	Port     int    // SMTP服务器端口
	Username string // 邮箱账号
	Password string // 邮箱密码
	From     string // 发件人
	FromName string // 发件人名称
}

// AlipayConfig 支付宝当面付配置
type AlipayConfig struct {
	AppID           string // 应用ID
	PrivateKey      string // 应用私钥
	AlipayPublicKey string // 支付宝公钥，用于回调验签
	IsProduction    bool   // false时走沙箱网关
	NotifyURL       string // 异步通知回调地址
}

// AdminConfig 管理接口配置
type AdminConfig struct {
	JWTSecret string // 管理Token签名密钥
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// .env文件不存在时直接读取进程环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := &Config{
		APIPort:  getEnvInt("API_PORT", 8080),
		LogLevel: os.Getenv("LOG_LEVEL"),
		LogFile: LogFileConfig{
			Enabled:    os.Getenv("LOG_FILE_ENABLED") == "true",
			Path:       os.Getenv("LOG_FILE_PATH"),
			MaxSize:    getEnvInt("LOG_FILE_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 7),
			MaxAge:     getEnvInt("LOG_FILE_MAX_AGE", 30),
			Compress:   os.Getenv("LOG_FILE_COMPRESS") == "true",
		},
		Database: DatabaseConfig{
			Host:     os.Getenv("DB_HOST"),
			Port:     getEnvInt("DB_PORT", 3306),
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   os.Getenv("DB_NAME"),
		},
		Redis: RedisConfig{
			Host:     os.Getenv("REDIS_HOST"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Email: EmailConfig{
			Host:     os.Getenv("EMAIL_HOST"),
			Port:     getEnvInt("EMAIL_PORT", 587),
			Username: os.Getenv("EMAIL_USERNAME"),
			Password: os.Getenv("EMAIL_PASSWORD"),
			From:     os.Getenv("EMAIL_FROM"),
			FromName: os.Getenv("EMAIL_FROM_NAME"),
		},
		Alipay: AlipayConfig{
			AppID:           os.Getenv("ALIPAY_APP_ID"),
			PrivateKey:      os.Getenv("ALIPAY_PRIVATE_KEY"),
			AlipayPublicKey: os.Getenv("ALIPAY_PUBLIC_KEY"),
			IsProduction:    os.Getenv("ALIPAY_ENV") == "production",
			NotifyURL:       os.Getenv("ALIPAY_NOTIFY_URL"),
		},
		Admin: AdminConfig{
			JWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		},
	}

	return cfg, nil
}

// Validate 校验必填配置项
// 支付相关配置缺失时服务不允许启动，避免在未配置的网关上静默运行
func (c *Config) Validate() error {
	var missing []string

	if c.Database.Host == "" {
		missing = append(missing, "DB_HOST")
	}
	if c.Database.User == "" {
		missing = append(missing, "DB_USER")
	}
	if c.Database.DBName == "" {
		missing = append(missing, "DB_NAME")
	}
	if c.Alipay.AppID == "" {
		missing = append(missing, "ALIPAY_APP_ID")
	}
	if c.Alipay.PrivateKey == "" {
		missing = append(missing, "ALIPAY_PRIVATE_KEY")
	}
	if c.Alipay.AlipayPublicKey == "" {
		missing = append(missing, "ALIPAY_PUBLIC_KEY")
	}
	if c.Alipay.NotifyURL == "" {
		missing = append(missing, "ALIPAY_NOTIFY_URL")
	}
	if c.Admin.JWTSecret == "" {
		missing = append(missing, "ADMIN_JWT_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("缺少必填配置项: %s", strings.Join(missing, ", "))
	}
	return nil
}

// getEnvInt 读取整型环境变量，解析失败时返回默认值
func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
