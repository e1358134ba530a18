package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store 长期记忆持久化入口。
//
// 所有方法可被多个 goroutine 并发调用：GORM 底层的 database/sql
// 连接池保证单个连接不会跨 goroutine 共享，写写串行化交给 SQLite
// 自身的隔离（WAL 下读不阻塞写，等价于 read committed）。
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Options 打开存储时的可选项
type Options struct {
	// BusyTimeout 写锁等待上限，默认 5s
	BusyTimeout time.Duration
}

// Open 打开（必要时创建）位于 path 的存储并完成建表。
// 建表是幂等的，重复启动不会失败；建表错误视为致命，直接上抛。
func Open(path string, logger *zap.Logger, opts ...Options) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "store"))

	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.BusyTimeout <= 0 {
		opt.BusyTimeout = 5 * time.Second
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, storageErr("open", err)
	}

	// WAL 让并发读不阻塞写；busy_timeout 避免并发写直接报 SQLITE_BUSY
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", opt.BusyTimeout.Milliseconds()),
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			return nil, storageErr("pragma", err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	logger.Info("store opened", zap.String("path", path))
	return s, nil
}

func (s *Store) migrate() error {
	err := s.db.AutoMigrate(
		&Fact{},
		&Memory{},
		&MemoryEmbedding{},
		&Concept{},
		&ConceptEdge{},
		&GrammarPattern{},
	)
	if err != nil {
		return storageErr("migrate", err)
	}
	return nil
}

// Close 关闭底层连接池
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return storageErr("close", err)
	}
	return sqlDB.Close()
}
