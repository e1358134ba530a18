// Package store 实现长期记忆的持久化层。
//
// 底层是单文件 SQLite（纯 Go 驱动 glebarez/sqlite + GORM），启用 WAL
// 日志模式让并发读不阻塞写。五类数据共享同一个库：
//
//   - 符号事实（subject/predicate/object 三元组，三列联合唯一）
//   - 自由文本记忆（memories）
//   - 记忆向量（memory_embeddings，与记忆一一对应）
//   - 概念与概念边（concepts / concept_edges，构成分类学图）
//   - 语法模式（grammar_patterns，按结构哈希去重计频）
//
// 建表通过 AutoMigrate 完成，幂等，每次启动都可以安全调用。
// 持久层独占全部落盘状态；向量缓存只是可重建的派生读优化，
// 任何时刻都能从这里完整重建。
//
// 所有写路径的驱动错误统一包装为 *StorageError 后上抛，调用方
// 据此区分存储故障与业务性空结果。
package store
