package store

import (
	"errors"
	"fmt"
)

var (
	// ErrMemoryNotFound 记忆不存在
	ErrMemoryNotFound = errors.New("memory not found")

	// ErrConceptNotFound 概念不存在
	ErrConceptNotFound = errors.New("concept not found")

	// ErrFactNotFound 事实不存在
	ErrFactNotFound = errors.New("fact not found")
)

// StorageError 底层持久化 I/O 失败。
// 单次操作内部自带事务边界，携带此错误返回时不会留下半截状态。
type StorageError struct {
	Op  string // 失败的操作名，如 "add_fact"
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
