package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"dlproxy/internal/shared/logger"
	"dlproxy/proxypool/model"
)

// Storage 接口定义了排名结果的持久化行为。
type Storage interface {
	Load() ([]*model.ScoredProxy, error)
	Save(proxies []*model.ScoredProxy) error
}

// FileStorage 实现了 Storage 接口，以缩进的 JSON 数组保存到单个文件。
// 每次 Save 都整体覆盖文件。
type FileStorage struct {
	filePath string
	mu       sync.RWMutex
}

// NewFileStorage 创建一个新的 FileStorage 实例。
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{
		filePath: filePath,
	}
}

// Path returns the file backing this storage.
func (fs *FileStorage) Path() string {
	return fs.filePath
}

// Load 读取整个列表。文件不存在时返回空列表。
func (fs *FileStorage) Load() ([]*model.ScoredProxy, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	l := logger.WithComponent("ProxyPool/Storage")

	data, err := os.ReadFile(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			l.Info().Str("path", fs.filePath).Msg("Proxy list file not found.")
			return []*model.ScoredProxy{}, nil
		}
		return nil, fmt.Errorf("failed to read proxy list: %w", err)
	}

	var proxies []*model.ScoredProxy
	if err := json.Unmarshal(data, &proxies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", fs.filePath, err)
	}
	if proxies == nil {
		proxies = []*model.ScoredProxy{}
	}

	l.Debug().Int("count", len(proxies)).Msg("Loaded proxies from file.")
	return proxies, nil
}

// Save 将列表整体写入文件，空列表写为 "[]"。
func (fs *FileStorage) Save(proxies []*model.ScoredProxy) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := logger.WithComponent("ProxyPool/Storage")

	if proxies == nil {
		proxies = []*model.ScoredProxy{}
	}
	data, err := json.MarshalIndent(proxies, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal proxy list: %w", err)
	}

	if err := os.WriteFile(fs.filePath, data, 0644); err != nil {
		return err
	}

	l.Info().Int("count", len(proxies)).Str("path", fs.filePath).Msg("Successfully saved proxies to file.")
	return nil
}
