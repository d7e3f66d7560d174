package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/ashwinyue/seek-portal/internal/observability"
)

// NewVectorPool 创建 pgvector 连接池，每个新连接注册 vector 类型
func NewVectorPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	logger := observability.Component("vector_pool")

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse vector dsn: %w", err)
	}

	// vector 扩展可能尚未创建，注册失败不阻塞连接
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			logger.Debug().Err(err).Msg("pgvector types not registered")
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create vector pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping vector pool: %w", err)
	}
	return pool, nil
}
