package randomness

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	infrds "coinflip-server/internal/infra/redis"

	goredis "github.com/redis/go-redis/v9"
)

// request marks the commitment pending and queues it in one step.
var requestScript = goredis.NewScript(`
if redis.call("setnx", KEYS[1], "") == 1 then
	redis.call("pexpire", KEYS[1], ARGV[2])
	redis.call("lpush", KEYS[2], ARGV[1])
	return 1
end
return 0
`)

// fulfill writes the value only while the commitment is still pending, keeping its TTL.
var fulfillScript = goredis.NewScript(`
local cur = redis.call("get", KEYS[1])
if cur == false then return -1 end
if cur ~= "" then return 0 end
local ttl = redis.call("pttl", KEYS[1])
redis.call("set", KEYS[1], ARGV[1])
if ttl > 0 then redis.call("pexpire", KEYS[1], ttl) end
return 1
`)

// Redis stores request state under vrf:value:{hex} and queues work on vrf:pending.
type Redis struct {
	c   *goredis.Client
	ttl time.Duration
}

// NewRedis ttl bounds how long request state is kept; zero means seven days.
func NewRedis(c *goredis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Redis{c: c, ttl: ttl}
}

func (r *Redis) Request(ctx context.Context, commitment [32]byte) error {
	h := hex.EncodeToString(commitment[:])
	n, err := requestScript.Run(ctx, r.c,
		[]string{infrds.RandValueKey(h), infrds.RandPendingQueue},
		h, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCommitmentUsed
	}
	return nil
}

func (r *Redis) CurrentValue(ctx context.Context, commitment [32]byte) ([32]byte, error) {
	var out [32]byte
	s, err := r.c.Get(ctx, infrds.RandValueKey(hex.EncodeToString(commitment[:]))).Result()
	if errors.Is(err, goredis.Nil) {
		return out, ErrUnknownCommitment
	}
	if err != nil {
		return out, err
	}
	if s == "" {
		return out, nil
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return [32]byte{}, err
	}
	return out, nil
}

func (r *Redis) NextPending(ctx context.Context, wait time.Duration) ([32]byte, bool, error) {
	var out [32]byte
	res, err := r.c.BRPop(ctx, wait, infrds.RandPendingQueue).Result()
	if errors.Is(err, goredis.Nil) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	// res = [queue, value]
	if len(res) != 2 {
		return out, false, nil
	}
	if _, err := hex.Decode(out[:], []byte(res[1])); err != nil {
		return out, false, err
	}
	return out, true, nil
}

func (r *Redis) Fulfill(ctx context.Context, commitment, value [32]byte) error {
	if value == ([32]byte{}) {
		return ErrZeroValue
	}
	n, err := fulfillScript.Run(ctx, r.c,
		[]string{infrds.RandValueKey(hex.EncodeToString(commitment[:]))},
		hex.EncodeToString(value[:])).Int64()
	if err != nil {
		return err
	}
	switch n {
	case -1:
		return ErrUnknownCommitment
	case 0:
		return ErrAlreadyFulfilled
	}
	return nil
}
