package model

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// ErrStaleWrite 条件更新未命中（状态已被其他事务推进）
var ErrStaleWrite = errors.New("conditional update matched no rows")

func nowMillis() int64 { return time.Now().UnixMilli() }

// forUpdate MySQL 下返回行锁子句；SQLite 事务本身串行写入，不支持该子句
func forUpdate(exec sqlx.ExtContext) string {
	if exec.DriverName() == "mysql" {
		return " FOR UPDATE"
	}
	return ""
}

// insertIgnore 已存在则忽略的插入语句前缀
func insertIgnore(exec sqlx.ExtContext) string {
	if exec.DriverName() == "mysql" {
		return "INSERT IGNORE INTO"
	}
	return "INSERT OR IGNORE INTO"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mustAffectOne(n int64, err error) error {
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrStaleWrite
	}
	return nil
}
