package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore PostgreSQL 存储
// 单张 key/value 表，记录为 jsonb，过期通过 expires_at 列实现：
// 读取和枚举都排除已过期的行，实际删除由协调器的清扫完成。
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore 创建 PostgreSQL 存储
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// InitSchema 初始化表结构
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS rooms (
			key        TEXT PRIMARY KEY,
			record     JSONB NOT NULL,
			expires_at TIMESTAMPTZ
		)
	`
	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// Get 读取记录，已过期的行视为不存在
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	query := `
		SELECT record FROM rooms
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())
	`

	var record []byte
	err := s.db.QueryRow(ctx, query, key).Scan(&record)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return record, nil
}

// Put 写入记录（upsert）
func (s *PostgresStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
		INSERT INTO rooms (key, record, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET record = $2, expires_at = $3
	`

	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expiresAt = &t
	}

	if _, err := s.db.Exec(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}

// Delete 删除记录
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM rooms WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// ListKeys 按前缀枚举未过期的键
func (s *PostgresStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	query := `
		SELECT key FROM rooms
		WHERE key LIKE $1 || '%' AND (expires_at IS NULL OR expires_at > now())
	`

	rows, err := s.db.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// SupportsTTL 过期行只是被查询排除，物理删除仍依赖协调器清扫
func (s *PostgresStore) SupportsTTL() bool {
	return false
}
