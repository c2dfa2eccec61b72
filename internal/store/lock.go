package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// lockPollInterval 等待锁文件释放的轮询间隔
	lockPollInterval = 50 * time.Millisecond
	// StaleLockAge 超过该时长的锁文件视为上次异常退出的残留
	StaleLockAge = 10 * time.Minute
)

// fileLock 基于O_EXCL的互斥锁文件,防止多个进程同时写同一数据集
type fileLock struct {
	path string
}

func newFileLock(target string) *fileLock {
	return &fileLock{path: target + ".lock"}
}

// Acquire 获取锁,直到成功或ctx结束
func (l *fileLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
			return f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("创建锁文件失败: %w", err)
		}

		if info, statErr := os.Stat(l.path); statErr == nil && time.Since(info.ModTime()) > StaleLockAge {
			_ = os.Remove(l.path)
			continue
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("等待锁文件 %s: %w", l.path, ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// Release 释放锁
func (l *fileLock) Release() error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
