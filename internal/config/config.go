package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"arenanet/pkg/history"
	"arenanet/pkg/latency"
	"arenanet/pkg/rewind"
	"arenanet/pkg/weapon"
)

const EnvPrefix = "ARENANET"

var ErrUnknownWeapon = errors.New("未知武器")

type ServerConfig struct {
	Addr       string        `mapstructure:"addr"`
	Proto      string        `mapstructure:"proto"` // tcp、kcp 或 ws
	TPS        int           `mapstructure:"tps"`
	MaxPlayers int           `mapstructure:"max_players"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	Loadout    []string      `mapstructure:"loadout"` // 客户端没有指定武器时的默认配置

	FragLimit    int           `mapstructure:"frag_limit"` // 0 表示不限
	RespawnDelay time.Duration `mapstructure:"respawn_delay"`
	ResetDelay   time.Duration `mapstructure:"reset_delay"` // 比赛结束后多久重新开始
}

// Netcode 同步、延迟补偿与回溯的全部可调常数
type Netcode struct {
	LookaheadWindow         int     `mapstructure:"lookahead_window"`
	ClockSkewLimit          float64 `mapstructure:"clock_skew_limit"`
	ServerCooldownTolerance float64 `mapstructure:"server_cooldown_tolerance"`
	ClientCooldownTolerance float64 `mapstructure:"client_cooldown_tolerance"`
	RhythmWindow            float64 `mapstructure:"rhythm_window"`
	RetryEpsilon            float64 `mapstructure:"retry_epsilon"`
	WatchdogMin             float64 `mapstructure:"watchdog_min"`
	WatchdogFactor          float64 `mapstructure:"watchdog_factor"`
	GhostJitter             float64 `mapstructure:"ghost_jitter"`
	GhostMaxTolerance       float64 `mapstructure:"ghost_max_tolerance"`
	BurstSafetyCap          int     `mapstructure:"burst_safety_cap"`

	VisualFudgeMs        float64 `mapstructure:"visual_fudge_ms"`
	VisualScale          float64 `mapstructure:"visual_scale"`
	MaxVisualSeconds     float64 `mapstructure:"max_visual_seconds"`
	ValidationSmoothing  float64 `mapstructure:"validation_smoothing"`
	MaxValidationSeconds float64 `mapstructure:"max_validation_seconds"`

	TeammatesBlock    bool    `mapstructure:"teammates_block"`
	BasePadding       float64 `mapstructure:"base_padding"`
	StationaryPadding float64 `mapstructure:"stationary_padding"`
	TimeSearch        bool    `mapstructure:"time_search"`
	SearchStep        float64 `mapstructure:"search_step"`
	SearchMaxOffset   float64 `mapstructure:"search_max_offset"`
	SearchPadding     float64 `mapstructure:"search_padding"`
	MaxRewind         float64 `mapstructure:"max_rewind"`

	HistoryMaxAge       float64 `mapstructure:"history_max_age"`
	HistorySaveInterval float64 `mapstructure:"history_save_interval"` // 0 表示每帧都记录
}

// WeaponOverride 覆盖内置武器的部分数值，零值表示不修改
type WeaponOverride struct {
	Refire         []float64 `mapstructure:"refire"`
	Damage         []int     `mapstructure:"damage"`
	TraceRange     []float64 `mapstructure:"trace_range"`
	PutDownTime    float64   `mapstructure:"put_down_time"`
	HeadshotDamage int       `mapstructure:"headshot_damage"`
	BeamDamageCap  float64   `mapstructure:"beam_damage_cap"`
	MaxLoaded      int       `mapstructure:"max_loaded"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StatsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SqlitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

type GelfConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LimitsConfig 每个连接的令牌桶
type LimitsConfig struct {
	FireRate   float64 `mapstructure:"fire_rate"`
	FireBurst  int     `mapstructure:"fire_burst"`
	InputRate  float64 `mapstructure:"input_rate"`
	InputBurst int     `mapstructure:"input_burst"`
}

type Config struct {
	Server  ServerConfig              `mapstructure:"server"`
	Netcode Netcode                   `mapstructure:"netcode"`
	Weapons map[string]WeaponOverride `mapstructure:"weapons"`
	Log     LogConfig                 `mapstructure:"log"`
	Stats   StatsConfig               `mapstructure:"stats"`
	Influx  InfluxConfig              `mapstructure:"influx"`
	Gelf    GelfConfig                `mapstructure:"gelf"`
	Limits  LimitsConfig              `mapstructure:"limits"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.proto", "tcp")
	v.SetDefault("server.tps", 60)
	v.SetDefault("server.max_players", 16)
	v.SetDefault("server.jwt_secret", "arenanet-dev-secret-change-in-production")
	v.SetDefault("server.session_ttl", "5m")
	v.SetDefault("server.loadout", []string{"shock", "link", "rocket", "sniper"})
	v.SetDefault("server.frag_limit", 20)
	v.SetDefault("server.respawn_delay", "2s")
	v.SetDefault("server.reset_delay", "5s")

	t := weapon.DefaultTuning()
	v.SetDefault("netcode.lookahead_window", int(t.LookaheadWindow))
	v.SetDefault("netcode.clock_skew_limit", t.ClockSkewLimit)
	v.SetDefault("netcode.server_cooldown_tolerance", t.ServerCooldownTolerance)
	v.SetDefault("netcode.client_cooldown_tolerance", t.ClientCooldownTolerance)
	v.SetDefault("netcode.rhythm_window", t.RhythmWindow)
	v.SetDefault("netcode.retry_epsilon", t.RetryEpsilon)
	v.SetDefault("netcode.watchdog_min", t.WatchdogMin)
	v.SetDefault("netcode.watchdog_factor", t.WatchdogFactor)
	v.SetDefault("netcode.ghost_jitter", t.GhostJitter)
	v.SetDefault("netcode.ghost_max_tolerance", t.GhostMaxTolerance)
	v.SetDefault("netcode.burst_safety_cap", t.BurstSafetyCap)

	l := latency.DefaultConfig()
	v.SetDefault("netcode.visual_fudge_ms", l.VisualFudgeMs)
	v.SetDefault("netcode.visual_scale", l.VisualScale)
	v.SetDefault("netcode.max_visual_seconds", l.MaxVisualSeconds)
	v.SetDefault("netcode.validation_smoothing", l.ValidationSmoothing)
	v.SetDefault("netcode.max_validation_seconds", l.MaxValidationSeconds)

	r := rewind.DefaultConfig()
	v.SetDefault("netcode.teammates_block", r.TeammatesBlock)
	v.SetDefault("netcode.base_padding", r.BasePadding)
	v.SetDefault("netcode.stationary_padding", r.StationaryPadding)
	v.SetDefault("netcode.time_search", r.TimeSearch)
	v.SetDefault("netcode.search_step", r.SearchStep)
	v.SetDefault("netcode.search_max_offset", r.SearchMaxOffset)
	v.SetDefault("netcode.search_padding", r.SearchPadding)
	v.SetDefault("netcode.max_rewind", r.MaxRewind)

	v.SetDefault("netcode.history_max_age", 1.0)
	v.SetDefault("netcode.history_save_interval", 0.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("stats.enabled", false)
	v.SetDefault("stats.sqlite_path", "arenanet.db")
	v.SetDefault("stats.postgres_dsn", "")

	v.SetDefault("influx.enabled", false)
	v.SetDefault("influx.url", "http://localhost:8086")
	v.SetDefault("influx.token", "")
	v.SetDefault("influx.org", "arenanet")
	v.SetDefault("influx.bucket", "shots")

	v.SetDefault("gelf.enabled", false)
	v.SetDefault("gelf.address", "localhost:12201")

	v.SetDefault("limits.fire_rate", 30.0)
	v.SetDefault("limits.fire_burst", 15)
	v.SetDefault("limits.input_rate", 120.0)
	v.SetDefault("limits.input_burst", 30)
}

// Load 读取配置。path 为空时在当前目录查找 arenanet.{yaml,toml,json}，找不到不算错误。
// 环境变量 ARENANET_SERVER_ADDR 之类的写法覆盖同名键。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		v.SetConfigName("arenanet")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}
	return decode(v)
}

// Default 只包含默认值的配置，不读文件和环境变量
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 命令行覆盖配置后需要重新检查
func (c *Config) Validate() error {
	switch c.Server.Proto {
	case "tcp", "kcp", "ws":
	default:
		return fmt.Errorf("不支持的协议: %s", c.Server.Proto)
	}
	if c.Server.FragLimit < 0 {
		return fmt.Errorf("server.frag_limit 不能为负: %d", c.Server.FragLimit)
	}
	if c.Server.TPS <= 0 {
		return fmt.Errorf("server.tps 必须为正: %d", c.Server.TPS)
	}
	for name := range c.Weapons {
		if _, ok := weapon.Lookup(name); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownWeapon, name)
		}
	}
	for _, name := range c.Server.Loadout {
		if _, err := c.Weapon(name); err != nil {
			return err
		}
	}
	return nil
}

// Tuning 同步层常数
func (n Netcode) Tuning() weapon.Tuning {
	t := weapon.DefaultTuning()
	t.LookaheadWindow = int32(n.LookaheadWindow)
	t.ClockSkewLimit = n.ClockSkewLimit
	t.ServerCooldownTolerance = n.ServerCooldownTolerance
	t.ClientCooldownTolerance = n.ClientCooldownTolerance
	t.RhythmWindow = n.RhythmWindow
	t.RetryEpsilon = n.RetryEpsilon
	t.WatchdogMin = n.WatchdogMin
	t.WatchdogFactor = n.WatchdogFactor
	t.GhostJitter = n.GhostJitter
	t.GhostMaxTolerance = n.GhostMaxTolerance
	t.BurstSafetyCap = n.BurstSafetyCap
	return t
}

func (n Netcode) Latency() latency.Config {
	return latency.Config{
		VisualFudgeMs:        n.VisualFudgeMs,
		VisualScale:          n.VisualScale,
		MaxVisualSeconds:     n.MaxVisualSeconds,
		ValidationSmoothing:  n.ValidationSmoothing,
		MaxValidationSeconds: n.MaxValidationSeconds,
	}
}

// Rewind 分档的额外半径沿用默认表
func (n Netcode) Rewind() rewind.Config {
	r := rewind.DefaultConfig()
	r.TeammatesBlock = n.TeammatesBlock
	r.BasePadding = n.BasePadding
	r.StationaryPadding = n.StationaryPadding
	r.TimeSearch = n.TimeSearch
	r.SearchStep = n.SearchStep
	r.SearchMaxOffset = n.SearchMaxOffset
	r.SearchPadding = n.SearchPadding
	r.MaxRewind = n.MaxRewind
	return r
}

func (n Netcode) HistoryOptions() []history.Option {
	opts := []history.Option{history.WithMaxAge(n.HistoryMaxAge)}
	if n.HistorySaveInterval > 0 {
		opts = append(opts, history.WithSaveInterval(n.HistorySaveInterval))
	}
	return opts
}

// Weapon 内置武器叠加配置覆盖后的结果
func (c *Config) Weapon(name string) (weapon.Config, error) {
	base, ok := weapon.Lookup(name)
	if !ok {
		return weapon.Config{}, fmt.Errorf("%w: %s", ErrUnknownWeapon, name)
	}
	if o, ok := c.Weapons[name]; ok {
		base = o.apply(base)
	}
	if err := base.Validate(); err != nil {
		return weapon.Config{}, err
	}
	return base, nil
}

// WeaponTable 全部内置武器（已覆盖），按名字排序
func (c *Config) WeaponTable() ([]weapon.Config, error) {
	names := weapon.Catalog()
	out := make([]weapon.Config, 0, len(names))
	for _, name := range names {
		wc, err := c.Weapon(name)
		if err != nil {
			return nil, err
		}
		out = append(out, wc)
	}
	return out, nil
}

func (o WeaponOverride) apply(c weapon.Config) weapon.Config {
	for i := range c.Modes {
		if i < len(o.Refire) && o.Refire[i] > 0 {
			c.Modes[i].Refire = o.Refire[i]
		}
		if i < len(o.Damage) && o.Damage[i] > 0 {
			c.Modes[i].Damage = o.Damage[i]
		}
		if i < len(o.TraceRange) && o.TraceRange[i] > 0 {
			c.Modes[i].TraceRange = o.TraceRange[i]
		}
	}
	if o.PutDownTime > 0 {
		c.PutDownTime = o.PutDownTime
	}
	// 内置表里的指针共享，修改前复制
	if o.HeadshotDamage > 0 && c.Headshot != nil {
		h := *c.Headshot
		h.Damage = o.HeadshotDamage
		c.Headshot = &h
	}
	if o.BeamDamageCap > 0 && c.Beam != nil {
		b := *c.Beam
		b.DamageCap = o.BeamDamageCap
		c.Beam = &b
	}
	if o.MaxLoaded > 0 && c.Charge != nil {
		ch := *c.Charge
		ch.MaxLoaded = o.MaxLoaded
		c.Charge = &ch
	}
	return c
}
