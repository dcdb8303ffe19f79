package model

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// 金额列单位均为 lamports；时间列均为 13 位毫秒时间戳

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS house_reserve (
		id TINYINT UNSIGNED NOT NULL PRIMARY KEY,
		operator VARCHAR(64) NOT NULL,
		balance BIGINT UNSIGNED NOT NULL DEFAULT 0,
		paused TINYINT(1) NOT NULL DEFAULT 0,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS wagers (
		room_id VARCHAR(32) NOT NULL PRIMARY KEY,
		round_no INT UNSIGNED NOT NULL DEFAULT 1,
		player VARCHAR(64) NOT NULL,
		stake BIGINT UNSIGNED NOT NULL,
		choice TINYINT NOT NULL,
		status TINYINT NOT NULL,
		outcome TINYINT NOT NULL DEFAULT 0,
		commitment CHAR(64) NOT NULL DEFAULT '',
		payout BIGINT UNSIGNED NOT NULL DEFAULT 0,
		refunded TINYINT(1) NOT NULL DEFAULT 0,
		last_play_time BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		KEY idx_status_play (status, last_play_time)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS accounts (
		account_id VARCHAR(64) NOT NULL PRIMARY KEY,
		balance BIGINT UNSIGNED NOT NULL DEFAULT 0,
		status TINYINT NOT NULL DEFAULT 1,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS wallet_ledger (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		account_id VARCHAR(64) NOT NULL,
		biz_type TINYINT NOT NULL,
		biz_type_str VARCHAR(16) NOT NULL,
		amount BIGINT UNSIGNED NOT NULL,
		before_amount BIGINT UNSIGNED NOT NULL,
		after_amount BIGINT UNSIGNED NOT NULL,
		room_id VARCHAR(32) NOT NULL DEFAULT '',
		round_no INT UNSIGNED NOT NULL DEFAULT 0,
		remark VARCHAR(128) NOT NULL DEFAULT '',
		trace_id VARCHAR(64) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		KEY idx_account (account_id, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		topic VARCHAR(64) NOT NULL,
		biz_key VARCHAR(128) NOT NULL,
		payload TEXT NOT NULL,
		status TINYINT NOT NULL DEFAULT 1,
		retry_count INT NOT NULL DEFAULT 0,
		last_error VARCHAR(255) NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		KEY idx_status (status, id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS house_reserve (
		id INTEGER NOT NULL PRIMARY KEY,
		operator TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		paused INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wagers (
		room_id TEXT NOT NULL PRIMARY KEY,
		round_no INTEGER NOT NULL DEFAULT 1,
		player TEXT NOT NULL,
		stake INTEGER NOT NULL,
		choice INTEGER NOT NULL,
		status INTEGER NOT NULL,
		outcome INTEGER NOT NULL DEFAULT 0,
		commitment TEXT NOT NULL DEFAULT '',
		payout INTEGER NOT NULL DEFAULT 0,
		refunded INTEGER NOT NULL DEFAULT 0,
		last_play_time INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wagers_status_play ON wagers (status, last_play_time)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		account_id TEXT NOT NULL PRIMARY KEY,
		balance INTEGER NOT NULL DEFAULT 0,
		status INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS wallet_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		biz_type INTEGER NOT NULL,
		biz_type_str TEXT NOT NULL,
		amount INTEGER NOT NULL,
		before_amount INTEGER NOT NULL,
		after_amount INTEGER NOT NULL,
		room_id TEXT NOT NULL DEFAULT '',
		round_no INTEGER NOT NULL DEFAULT 0,
		remark TEXT NOT NULL DEFAULT '',
		trace_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ledger_account ON wallet_ledger (account_id, id)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		topic TEXT NOT NULL,
		biz_key TEXT NOT NULL,
		payload TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 1,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox (status, id)`,
}

// Migrate 按驱动建表（幂等）
func Migrate(ctx context.Context, db *sqlx.DB) error {
	stmts := mysqlSchema
	if db.DriverName() != "mysql" {
		stmts = sqliteSchema
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	return nil
}
