package mysql

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"coinflip-server/common/logger"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Options 连接池参数
type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open 建立连接并探活；sqlite 内存库强制单连接，保证所有会话看到同一份数据
func Open(ctx context.Context, opts Options) (*sqlx.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverMySQL
	}
	db, err := sqlx.Open(driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverSQLite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		if opts.MaxOpenConns > 0 {
			db.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			db.SetMaxIdleConns(opts.MaxIdleConns)
		}
		lifetime := opts.ConnMaxLifetime
		if lifetime <= 0 {
			lifetime = 2 * time.Minute
		}
		db.SetConnMaxLifetime(lifetime)
		db.SetConnMaxIdleTime(time.Minute)
	}

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		_ = db.Close()
		return nil, err
	}

	if driver == DriverMySQL {
		// 会话级锁等待超时，降低热点行阻塞时长（仅对当前连接生效，失败仅告警）
		if _, err := db.ExecContext(c, "SET SESSION innodb_lock_wait_timeout = ?", 5); err != nil {
			logger.Warn("set innodb_lock_wait_timeout failed", zap.Error(err))
		}
	}
	return db, nil
}

// IsDuplicateKey 唯一键冲突：MySQL 1062 或 SQLite UNIQUE/PRIMARY KEY 约束
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysqlerr.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// MaxBalance 余额列可存储的上限；SQLite INTEGER 为有符号 64 位
func MaxBalance(driver string) uint64 {
	if driver == DriverSQLite {
		return math.MaxInt64
	}
	return math.MaxUint64
}
