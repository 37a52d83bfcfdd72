package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	// PublicURL 拼出加入链接里的分享地址
	PublicURL string `mapstructure:"public_url"`
}

type AuthConfig struct {
	// HMACKeyHex 64 个十六进制字符（32 字节）。留空则每次
	// 启动随机生成，重启后旧令牌全部失效。
	HMACKeyHex string `mapstructure:"hmac_key_hex"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"` // pq 或 gorm
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":8080")
	viper.SetDefault("server.rpc_address", ":9090")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("server.public_url", "http://localhost:8080")
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.driver", "gorm")
	viper.SetDefault("database.postgres.host", "localhost")
	viper.SetDefault("database.postgres.port", 5432)
	viper.SetDefault("database.postgres.user", "zobbo")
	viper.SetDefault("database.postgres.dbname", "zobbo")

	viper.SetEnvPrefix("zobbo")
	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		// 没有配置文件时全部走默认值和环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	err = viper.Unmarshal(&config)
	return
}
