package game

import (
	"encoding/binary"
	"errors"
	"strings"
	"time"

	"coinflip-server/common/helper"
)

// Choice 玩家下注方向（数值码与数据库、API 一致）
type Choice int8

const (
	ChoiceNone  Choice = 0
	ChoiceSideA Choice = 1
	ChoiceSideB Choice = 2
	ChoiceTie   Choice = 3
)

// Outcome 开奖结果，0 表示尚未开奖
type Outcome int8

const (
	OutcomeNone      Outcome = 0
	OutcomeSideAWins Outcome = 1
	OutcomeSideBWins Outcome = 2
	OutcomeTie       Outcome = 3
)

// 分桶区间：[0,10) 和局，[10,105) A 胜，[105,200) B 胜
const (
	BucketModulus  = 200
	TieBucketEnd   = 10
	SideABucketEnd = 105
)

var ErrOverflow = errors.New("arithmetic overflow")

func (c Choice) Valid() bool { return c >= ChoiceSideA && c <= ChoiceTie }

func (c Choice) String() string {
	switch c {
	case ChoiceSideA:
		return "side_a"
	case ChoiceSideB:
		return "side_b"
	case ChoiceTie:
		return "tie"
	}
	return "none"
}

// ParseChoice 接受数值码或名称
func ParseChoice(s string) Choice {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "side_a", "a", "heads":
		return ChoiceSideA
	case "2", "side_b", "b", "tails":
		return ChoiceSideB
	case "3", "tie":
		return ChoiceTie
	}
	return ChoiceNone
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSideAWins:
		return "side_a_wins"
	case OutcomeSideBWins:
		return "side_b_wins"
	case OutcomeTie:
		return "tie"
	}
	return "none"
}

// Rules 可配置的下注规则
type Rules struct {
	MinBet             uint64
	MaxBet             uint64
	Cooldown           time.Duration
	MaxRoomIDLen       int
	SideMultiplier     uint64
	TieMultiplier      uint64
	TieRefundsSideBets bool
	SettleTimeout      time.Duration
}

// DefaultRules 0.05 SOL ~ 10 SOL，30 秒冷却，和局 6 倍
func DefaultRules() Rules {
	return Rules{
		MinBet:             50_000_000,
		MaxBet:             10_000_000_000,
		Cooldown:           30 * time.Second,
		MaxRoomIDLen:       32,
		SideMultiplier:     2,
		TieMultiplier:      6,
		TieRefundsSideBets: true,
		SettleTimeout:      time.Hour,
	}
}

// Bucket 取随机值低 8 字节（小端）对 200 取模
func Bucket(value [32]byte) uint64 {
	return binary.LittleEndian.Uint64(value[:8]) % BucketModulus
}

// OutcomeForBucket 将分桶映射为结果
func OutcomeForBucket(bucket uint64) Outcome {
	switch {
	case bucket < TieBucketEnd:
		return OutcomeTie
	case bucket < SideABucketEnd:
		return OutcomeSideAWins
	default:
		return OutcomeSideBWins
	}
}

// Derive 随机值 -> 结果
func Derive(value [32]byte) Outcome { return OutcomeForBucket(Bucket(value)) }

// Multiplier 下注方向的最大赔付倍数，用于开局前的偿付能力校验
func (r Rules) Multiplier(c Choice) uint64 {
	if c == ChoiceTie {
		return r.TieMultiplier
	}
	return r.SideMultiplier
}

// RequiredReserve stake * multiplier(choice)
func (r Rules) RequiredReserve(stake uint64, c Choice) (uint64, error) {
	v, ok := helper.CheckedMul(stake, r.Multiplier(c))
	if !ok {
		return 0, ErrOverflow
	}
	return v, nil
}

// Payout 按结果与下注方向计算派彩：
//   - 和局且押和：stake * TieMultiplier
//   - 和局且押 A/B：TieRefundsSideBets 时退还本金，否则 0
//   - 押中 A/B：stake * SideMultiplier
//   - 其他：0
func (r Rules) Payout(stake uint64, c Choice, o Outcome) (uint64, error) {
	var mul uint64
	switch {
	case o == OutcomeTie && c == ChoiceTie:
		mul = r.TieMultiplier
	case o == OutcomeTie:
		if r.TieRefundsSideBets {
			mul = 1
		}
	case o == OutcomeSideAWins && c == ChoiceSideA,
		o == OutcomeSideBWins && c == ChoiceSideB:
		mul = r.SideMultiplier
	}
	v, ok := helper.CheckedMul(stake, mul)
	if !ok {
		return 0, ErrOverflow
	}
	return v, nil
}
