package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	chelper "coinflip-server/common/helper"
	"coinflip-server/internal/game"

	beegocontext "github.com/beego/beego/v2/server/web/context"
)

// IsJSONContentType 判断是否为 JSON 请求
func IsJSONContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.Contains(ct, "json")
}

// 默认输入保护参数
const (
	defaultJSONMaxBytes int64         = 1 << 20 // 1MB
	defaultParseTimeout time.Duration = 1 * time.Second
	maxAmountLen                      = 32
)

type deadlineReader struct {
	r        io.Reader
	deadline time.Time
}

func (dr *deadlineReader) Read(p []byte) (int, error) {
	if time.Now().After(dr.deadline) {
		return 0, fmt.Errorf("read timeout")
	}
	return dr.r.Read(p)
}

// jsonBodyReader 在 JSON 分支下为请求体增加大小限制与解析超时保护
func jsonBodyReader(ctx *beegocontext.Context) io.Reader {
	lr := io.LimitReader(ctx.Request.Body, defaultJSONMaxBytes)
	return &deadlineReader{r: lr, deadline: time.Now().Add(defaultParseTimeout)}
}

// GetTraceID 统一提取 trace_id：优先从中间件注入的数据取，其次从常见请求头降级
func GetTraceID(ctx *beegocontext.Context) string {
	if v := ctx.Input.GetData("trace_id"); v != nil {
		return fmt.Sprint(v)
	}
	if h := strings.TrimSpace(ctx.Input.Header("X-Trace-ID")); h != "" {
		return h
	}
	if h := strings.TrimSpace(ctx.Input.Header("Trace-Id")); h != "" {
		return h
	}
	return ""
}

// parseByContentType 按 Content-Type 选择解析函数
func parseByContentType[T any](ctx *beegocontext.Context,
	jsonParser func(io.Reader) (T, bool, string),
	formParser func(*beegocontext.Context) (T, bool, string),
) (T, bool, string) {
	ct := ctx.Input.Header("Content-Type")
	if IsJSONContentType(ct) {
		return jsonParser(jsonBodyReader(ctx))
	}
	return formParser(ctx)
}

// decodeMap JSON 解析为 map，数值与字符串字段统一按字符串读取
func decodeMap(r io.Reader) (map[string]any, bool, string) {
	var raw map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, false, "invalid json body"
	}
	return raw, true, ""
}

func str(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// -------- Wager helpers --------

// OpenWagerParsed 开局入参（金额为 SOL 十进制字符串）
type OpenWagerParsed struct {
	RoomID         string
	Stake          string
	Choice         string // 1|2|3 或 side_a|side_b|tie
	RequestOutcome bool
	Commitment     string
}

// OpenWagerRequest 校验后的开局参数
type OpenWagerRequest struct {
	RoomID     string
	Stake      uint64
	Choice     game.Choice
	Commitment *[32]byte // 非空时同一事务内请求随机数
}

func ParseOpenWagerFromJSON(r io.Reader) (OpenWagerParsed, bool, string) {
	raw, ok, msg := decodeMap(r)
	if !ok {
		return OpenWagerParsed{}, false, msg
	}
	out := OpenWagerParsed{
		RoomID:     str(raw, "room_id"),
		Stake:      str(raw, "stake"),
		Choice:     str(raw, "choice"),
		Commitment: str(raw, "commitment"),
	}
	out.RequestOutcome, _ = strconv.ParseBool(str(raw, "request_outcome"))
	return out, true, ""
}

func ParseOpenWagerFromForm(ctx *beegocontext.Context) (OpenWagerParsed, bool, string) {
	out := OpenWagerParsed{
		RoomID:     strings.TrimSpace(ctx.Input.Query("room_id")),
		Stake:      strings.TrimSpace(ctx.Input.Query("stake")),
		Choice:     strings.TrimSpace(ctx.Input.Query("choice")),
		Commitment: strings.TrimSpace(ctx.Input.Query("commitment")),
	}
	out.RequestOutcome, _ = strconv.ParseBool(strings.TrimSpace(ctx.Input.Query("request_outcome")))
	return out, true, ""
}

// ValidateOpenWager 格式校验；下注上下限、房间长度由服务层按当前规则校验
func ValidateOpenWager(in OpenWagerParsed) (OpenWagerRequest, bool, string) {
	if in.RoomID == "" {
		return OpenWagerRequest{}, false, "room_id required"
	}
	if in.Stake == "" || len(in.Stake) > maxAmountLen {
		return OpenWagerRequest{}, false, "stake required"
	}
	stake, err := chelper.ParseSOL(in.Stake)
	if err != nil {
		return OpenWagerRequest{}, false, "stake: " + err.Error()
	}
	choice := game.ParseChoice(in.Choice)
	if !choice.Valid() {
		return OpenWagerRequest{}, false, "choice must be 1|2|3 or side_a|side_b|tie"
	}
	out := OpenWagerRequest{RoomID: in.RoomID, Stake: stake, Choice: choice}
	if in.RequestOutcome {
		c, err := chelper.ParseCommitment(in.Commitment)
		if err != nil {
			return OpenWagerRequest{}, false, "commitment: " + err.Error()
		}
		out.Commitment = &c
	}
	return out, true, ""
}

// ParseAndValidateOpenWager 按 Content-Type 自动解析并做统一校验
func ParseAndValidateOpenWager(ctx *beegocontext.Context) (OpenWagerRequest, bool, string) {
	in, ok, msg := parseByContentType(ctx, ParseOpenWagerFromJSON, ParseOpenWagerFromForm)
	if !ok {
		return OpenWagerRequest{}, false, msg
	}
	return ValidateOpenWager(in)
}

// ParseCommitment 读取 commitment 字段（JSON 或表单）
func ParseCommitment(ctx *beegocontext.Context) ([32]byte, bool, string) {
	s, ok, msg := parseByContentType(ctx,
		func(r io.Reader) (string, bool, string) {
			raw, ok, msg := decodeMap(r)
			if !ok {
				return "", false, msg
			}
			return str(raw, "commitment"), true, ""
		},
		func(ctx *beegocontext.Context) (string, bool, string) {
			return strings.TrimSpace(ctx.Input.Query("commitment")), true, ""
		})
	if !ok {
		return [32]byte{}, false, msg
	}
	c, err := chelper.ParseCommitment(s)
	if err != nil {
		return [32]byte{}, false, "commitment: " + err.Error()
	}
	return c, true, ""
}

// -------- Treasury / account helpers --------

// ParseAmount 读取 amount 字段并转为 lamports
func ParseAmount(ctx *beegocontext.Context) (uint64, bool, string) {
	s, ok, msg := parseByContentType(ctx,
		func(r io.Reader) (string, bool, string) {
			raw, ok, msg := decodeMap(r)
			if !ok {
				return "", false, msg
			}
			return str(raw, "amount"), true, ""
		},
		func(ctx *beegocontext.Context) (string, bool, string) {
			return strings.TrimSpace(ctx.Input.Query("amount")), true, ""
		})
	if !ok {
		return 0, false, msg
	}
	if s == "" || len(s) > maxAmountLen {
		return 0, false, "amount required"
	}
	v, err := chelper.ParseSOL(s)
	if err != nil {
		return 0, false, "amount: " + err.Error()
	}
	return v, true, ""
}

// AdjustParsed 后台调账入参；amount 可带符号，负数为扣减
type AdjustParsed struct {
	AccountID string
	Amount    uint64
	Debit     bool
	Remark    string
}

func ParseAdjustFromJSON(r io.Reader) (AdjustParsed, bool, string) {
	raw, ok, msg := decodeMap(r)
	if !ok {
		return AdjustParsed{}, false, msg
	}
	return buildAdjust(str(raw, "account_id"), str(raw, "amount"), str(raw, "remark"))
}

func ParseAdjustFromForm(ctx *beegocontext.Context) (AdjustParsed, bool, string) {
	return buildAdjust(
		strings.TrimSpace(ctx.Input.Query("account_id")),
		strings.TrimSpace(ctx.Input.Query("amount")),
		strings.TrimSpace(ctx.Input.Query("remark")))
}

func buildAdjust(accountID, amount, remark string) (AdjustParsed, bool, string) {
	if accountID == "" || len(accountID) > 64 {
		return AdjustParsed{}, false, "account_id required"
	}
	if amount == "" || len(amount) > maxAmountLen {
		return AdjustParsed{}, false, "amount required"
	}
	v, neg, err := chelper.ParseSignedSOL(amount)
	if err != nil {
		return AdjustParsed{}, false, "amount: " + err.Error()
	}
	if len(remark) > 128 {
		remark = remark[:128]
	}
	return AdjustParsed{AccountID: accountID, Amount: v, Debit: neg, Remark: remark}, true, ""
}

func ParseAndValidateAdjust(ctx *beegocontext.Context) (AdjustParsed, bool, string) {
	return parseByContentType(ctx, ParseAdjustFromJSON, ParseAdjustFromForm)
}

// ParseAccountID 读取 account_id 字段（签发测试 Token 用）
func ParseAccountID(ctx *beegocontext.Context) (string, bool, string) {
	id, ok, msg := parseByContentType(ctx,
		func(r io.Reader) (string, bool, string) {
			raw, ok, msg := decodeMap(r)
			if !ok {
				return "", false, msg
			}
			return str(raw, "account_id"), true, ""
		},
		func(ctx *beegocontext.Context) (string, bool, string) {
			return strings.TrimSpace(ctx.Input.Query("account_id")), true, ""
		})
	if !ok {
		return "", false, msg
	}
	if id == "" || len(id) > 64 {
		return "", false, "account_id required"
	}
	return id, true, ""
}
