package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wfunc/avalon/game"
	"github.com/wfunc/avalon/state"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Game     GameConfig     `mapstructure:"game"`
	Timing   TimingConfig   `mapstructure:"timing"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// DatabaseConfig selects the archive store: memory, gorm, postgres or sqlite.
type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// GameConfig 新建大厅时的默认规则
type GameConfig struct {
	SpecialRoles []string `mapstructure:"special_roles"`
	Order        string   `mapstructure:"order"`
}

type TimingConfig struct {
	Pause         time.Duration `mapstructure:"pause"`
	AssassinDelay time.Duration `mapstructure:"assassin_delay"`
	Tick          time.Duration `mapstructure:"tick"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.metrics_address", ":9090")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.dbname", "avalon")
	v.SetDefault("database.sqlite.path", "avalon.db")
	v.SetDefault("game.special_roles", []string{"merlin", "percival", "morgana"})
	v.SetDefault("game.order", "turn")
	v.SetDefault("timing.pause", 3*time.Second)
	v.SetDefault("timing.assassin_delay", time.Second)
	v.SetDefault("timing.tick", 100*time.Millisecond)
	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml from path. A missing file falls back to the
// defaults; AVALON_* environment variables override both (AVALON_SERVER_HTTP_ADDRESS).
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("avalon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}

// Rules converts the configured defaults into game rules.
func (g GameConfig) Rules() (game.Config, error) {
	cfg := game.DefaultConfig()
	if g.Order != "" {
		cfg.Order = game.LeaderOrder(g.Order)
	}
	if g.SpecialRoles != nil {
		cfg.SpecialRoles = nil
		for _, name := range g.SpecialRoles {
			role, err := game.ParseRole(name)
			if err != nil {
				return cfg, err
			}
			cfg.Include(role)
		}
	}
	return cfg, cfg.Validate()
}

func (t TimingConfig) Phases() state.Timing {
	return state.Timing{Pause: t.Pause, AssassinDelay: t.AssassinDelay}
}
