package redis

// 统一管理业务使用的 Redis Key

const (
	// PrefixRoomLock 房间进行中锁：SETNX + TTL，吸收同一房间的并发请求
	PrefixRoomLock = "wager:lock:"
	// PrefixWagerCache 注单快照缓存（开奖/退款后写入）
	PrefixWagerCache = "wager:snapshot:"

	// PrefixRandValue 随机数请求状态：空串=待生成，64 位十六进制=已生成
	PrefixRandValue = "vrf:value:"
	// RandPendingQueue 待生成的承诺值队列（LPUSH / BRPOP）
	RandPendingQueue = "vrf:pending"

	// PrefixTokenBlacklist 已撤销的 JWT
	PrefixTokenBlacklist = "token:blacklist:"
	// PrefixRateLimit 滑动窗口限流
	PrefixRateLimit = "ratelimit:"
)

// RoomLockKey 形如 wager:lock:{room_id}
func RoomLockKey(roomID string) string { return PrefixRoomLock + roomID }

// WagerCacheKey 形如 wager:snapshot:{room_id}
func WagerCacheKey(roomID string) string { return PrefixWagerCache + roomID }

// RandValueKey 形如 vrf:value:{commitment_hex}
func RandValueKey(commitmentHex string) string { return PrefixRandValue + commitmentHex }

// TokenBlacklistKey 形如 token:blacklist:{token}
func TokenBlacklistKey(token string) string { return PrefixTokenBlacklist + token }

// RateLimitKey 形如 ratelimit:{dimension}:{key}
func RateLimitKey(dimension, key string) string { return PrefixRateLimit + dimension + ":" + key }
