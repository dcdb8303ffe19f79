package config

import (
	"sync/atomic"
	"time"

	"coinflip-server/internal/game"
)

// 原子存储当前生效的配置，热更新时整体替换
var current atomic.Pointer[Config]

func SetCurrent(c *Config) { current.Store(c) }

// GetCurrent 可能返回 nil（未加载）
func GetCurrent() *Config { return current.Load() }

// Get 等价于 GetCurrent，供中间件等读取
func Get() *Config { return current.Load() }

// GetFeatureFlag 返回功能开关（默认 false）
func GetFeatureFlag(name string) bool {
	cfg := GetCurrent()
	if cfg == nil || cfg.FeatureFlags == nil {
		return false
	}
	return cfg.FeatureFlags[name]
}

// GetThreshold 返回业务阈值（支持默认值）
func GetThreshold(name string, def int64) int64 {
	cfg := GetCurrent()
	if cfg == nil || cfg.Thresholds == nil {
		return def
	}
	if v, ok := cfg.Thresholds[name]; ok {
		return v
	}
	return def
}

// GameRules 当前配置下的下注规则；game 段零值回落到默认值，thresholds 同名项优先
func GameRules() game.Rules {
	return RulesFrom(GetCurrent())
}

// RulesFrom 由指定配置计算规则（cfg 为 nil 时返回默认规则）
func RulesFrom(cfg *Config) game.Rules {
	r := game.DefaultRules()
	if cfg == nil {
		return r
	}
	g := cfg.Game
	if g.MinBet > 0 {
		r.MinBet = g.MinBet
	}
	if g.MaxBet > 0 {
		r.MaxBet = g.MaxBet
	}
	if g.CooldownSec > 0 {
		r.Cooldown = time.Duration(g.CooldownSec) * time.Second
	}
	if g.MaxRoomIDLen > 0 {
		r.MaxRoomIDLen = g.MaxRoomIDLen
	}
	if g.SideMultiplier > 0 {
		r.SideMultiplier = g.SideMultiplier
	}
	if g.TieMultiplier > 0 {
		r.TieMultiplier = g.TieMultiplier
	}
	if g.TieRefundsSide != nil {
		r.TieRefundsSideBets = *g.TieRefundsSide
	}
	if g.SettleTimeoutSec > 0 {
		r.SettleTimeout = time.Duration(g.SettleTimeoutSec) * time.Second
	}

	th := cfg.Thresholds
	if v, ok := th["min_bet"]; ok && v > 0 {
		r.MinBet = uint64(v)
	}
	if v, ok := th["max_bet"]; ok && v > 0 {
		r.MaxBet = uint64(v)
	}
	if v, ok := th["cooldown_sec"]; ok && v >= 0 {
		r.Cooldown = time.Duration(v) * time.Second
	}
	if v, ok := th["tie_multiplier"]; ok && v > 0 {
		r.TieMultiplier = uint64(v)
	}
	if v, ok := th["settle_timeout_sec"]; ok && v > 0 {
		r.SettleTimeout = time.Duration(v) * time.Second
	}
	return r
}
