package rocketmq

import "errors"

var ErrDisabled = errors.New("rocketmq disabled")
