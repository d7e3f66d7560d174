// Package database 管理 gorm 关系库连接与 pgvector 连接池
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/seek-portal/internal/config"
	"github.com/ashwinyue/seek-portal/internal/model"
	"github.com/ashwinyue/seek-portal/internal/observability"
)

const (
	pingTimeout   = 5 * time.Second
	slowThreshold = 200 * time.Millisecond
)

// DB 数据库封装
type DB struct {
	*gorm.DB
	logger zerolog.Logger
}

// New 连接门户数据库并迁移表结构
func New(cfg *config.Config) (*DB, error) {
	logger := observability.Component("database")

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger: newGormLogger(logger, cfg.App.Debug),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	tunePool(sqlDB, cfg.Database)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &DB{DB: db, logger: logger}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	logger.Info().
		Str("host", cfg.Database.Host).
		Str("db", cfg.Database.DBName).
		Int("max_open_conns", cfg.Database.MaxOpenConns).
		Msg("database ready")
	return d, nil
}

// tunePool 连接池配置，未设置的项保持驱动默认值
func tunePool(sqlDB *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)
	}
}

// migrate 迁移智能体、会话与课程表，记录新建的表
func (db *DB) migrate() error {
	migrator := db.Migrator()
	var created []string
	for _, m := range model.AllModels {
		if !migrator.HasTable(m) {
			created = append(created, tableName(db.DB, m))
		}
	}

	if err := db.AutoMigrate(model.AllModels...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	if len(created) > 0 {
		db.logger.Info().Strs("tables", created).Msg("tables created")
	}
	return nil
}

func tableName(db *gorm.DB, m interface{}) string {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(m); err != nil {
		return fmt.Sprintf("%T", m)
	}
	return stmt.Schema.Table
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连接
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// zerologWriter 把 gorm 日志转给 zerolog
type zerologWriter struct {
	logger zerolog.Logger
}

// Printf 实现 gormlogger.Writer
func (w zerologWriter) Printf(format string, args ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, args...))
	ev := w.logger.Debug()
	if strings.Contains(msg, "SLOW SQL") || strings.Contains(strings.ToLower(msg), "error") {
		ev = w.logger.Warn()
	}
	ev.Msg(msg)
}

// newGormLogger 调试模式记录全部 SQL，否则只记录慢查询和错误
func newGormLogger(logger zerolog.Logger, debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(zerologWriter{logger: logger.With().Str("source", "gorm").Logger()}, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
