package weapon

import (
	"sort"

	"arenanet/pkg/latency"
)

// 内置武器。数值可以被服务器配置覆盖。
var builtin = map[string]Config{
	"sniper": {
		Name: "sniper",
		Modes: [NumModes]ModeConfig{
			{Name: "shot", State: StateTransactional, Kind: latency.HitScan, Refire: 1.33, Damage: 70, TraceRange: 15000},
			{Name: "zoom", State: StateZooming},
		},
		PutDownTime:          0.4,
		RefirePutDownPercent: 1.0,
		Headshot: &HeadshotConfig{
			Damage:       125,
			Scale:        1.1,
			SlidingScale: 1.0,
			Modes:        [NumModes]bool{true, false},
		},
	},
	"shock": {
		Name: "shock",
		Modes: [NumModes]ModeConfig{
			{Name: "beam", State: StateTransactional, Kind: latency.HitScan, Refire: 0.7, Damage: 45, TraceRange: 10000},
			{Name: "core", State: StateTransactional, Kind: latency.Projectile, Refire: 0.6, Damage: 55, TraceRange: 10000},
		},
		PutDownTime:          0.3,
		RefirePutDownPercent: 1.0,
	},
	"link": {
		Name: "link",
		Modes: [NumModes]ModeConfig{
			{Name: "plasma", State: StateTransactional, Kind: latency.Projectile, Refire: 0.16, Damage: 20, TraceRange: 2200},
			{Name: "beam", State: StateContinuousBeam, Kind: latency.HitScan, Refire: 0.12, Damage: 7, TraceRange: 2200},
		},
		PutDownTime:          0.2,
		RefirePutDownPercent: 1.0,
		Beam: &BeamConfig{
			BatchSize:          15,
			DamageCap:          40,
			FireRateMultiplier: 1,
			RangeTolerance:     200,
			Timeout:            0.5,
		},
	},
	"rocket": {
		Name: "rocket",
		Modes: [NumModes]ModeConfig{
			{Name: "rockets", State: StateCharging, Kind: latency.Projectile, Refire: 1.0, Damage: 100, TraceRange: 20000},
			{Name: "grenades", State: StateCharging, Kind: latency.Projectile, Refire: 1.0, Damage: 80, TraceRange: 8000},
		},
		PutDownTime:          0.3,
		RefirePutDownPercent: 0.8,
		Charge: &ChargeConfig{
			MaxLoaded:     3,
			FirstLoadTime: 0.4,
			LoadTime:      0.95,
			GracePeriod:   0.6,
			BurstInterval: 0.1,
			Patterns:      3,
		},
	},
}

// Lookup 按名字查找内置武器
func Lookup(name string) (Config, bool) {
	cfg, ok := builtin[name]
	return cfg, ok
}

// Catalog 全部内置武器名，按字母序
func Catalog() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
