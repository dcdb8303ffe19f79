package service

import (
	"errors"
	"fmt"
)

// 错误分类；子类以 %w 包裹父类，调用方用 errors.Is 判断父类即可
var (
	ErrProgramPaused      = errors.New("program paused")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrRateLimited        = errors.New("room cooldown not elapsed")
	ErrStillProcessing    = errors.New("randomness not fulfilled yet")
	ErrInvalidState       = errors.New("operation not allowed in current state")

	ErrNotOperator = errors.New("caller is not the operator")
	ErrNotPlayer   = errors.New("caller is not the wager player")

	ErrReserveExists     = errors.New("house reserve already initialized")
	ErrReserveNotFound   = errors.New("house reserve not initialized")
	ErrWagerNotFound     = errors.New("wager not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrRefundNotDue      = errors.New("wager not yet eligible for refund")
	ErrDuplicateInFlight = errors.New("duplicate request in flight")
)

var (
	ErrAmountTooLow  = fmt.Errorf("%w: below minimum bet", ErrInvalidAmount)
	ErrAmountTooHigh = fmt.Errorf("%w: above maximum bet", ErrInvalidAmount)
	ErrZeroAmount    = fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)

	ErrEmptyRoomID       = fmt.Errorf("%w: room id is empty", ErrInvalidInput)
	ErrRoomIDTooLong     = fmt.Errorf("%w: room id too long", ErrInvalidInput)
	ErrInvalidChoice     = fmt.Errorf("%w: unknown choice", ErrInvalidInput)
	ErrInvalidCommitment = fmt.Errorf("%w: bad commitment", ErrInvalidInput)
	ErrCommitmentUsed    = fmt.Errorf("%w: commitment already used", ErrInvalidInput)

	ErrInsufficientBalance = fmt.Errorf("%w: account balance too low", ErrInsufficientFunds)

	ErrWagerInProgress = fmt.Errorf("%w: room has a live wager", ErrInvalidState)
)
