package state

import "fmt"

// 注单状态（数值码与 wagers.status 列一致）
const (
	StatusWaiting    int8 = 1 // 已托管本金，待请求随机数
	StatusProcessing int8 = 2 // 已提交随机数请求，待开奖
	StatusFinished   int8 = 3 // 已开奖或已退款（终态）
)

// 注单事件
const (
	EvtRequestOutcome = "request_outcome"
	EvtResolveOutcome = "resolve_outcome"
	EvtRefund         = "refund"
)

// NextState 根据当前状态与事件计算下一个状态，非法转换报错
func NextState(cur int8, evt string) (int8, error) {
	switch cur {
	case StatusWaiting:
		switch evt {
		case EvtRequestOutcome:
			return StatusProcessing, nil
		case EvtRefund:
			return StatusFinished, nil
		}
	case StatusProcessing:
		switch evt {
		case EvtResolveOutcome, EvtRefund:
			return StatusFinished, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", Name(cur), evt)
}

// Live 未到终态的注单占用房间
func Live(status int8) bool { return status == StatusWaiting || status == StatusProcessing }

// Name 状态码转名称
func Name(status int8) string {
	switch status {
	case StatusWaiting:
		return "waiting"
	case StatusProcessing:
		return "processing"
	case StatusFinished:
		return "finished"
	}
	return "unknown"
}
