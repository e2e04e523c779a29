package service

import (
	"strings"

	"github.com/google/uuid"
)

// RemoteIDGenerator 生成全局唯一的 remoteId。
// 复制子树时每个新节点和同义词都会调用一次，实现必须保证不重复。
type RemoteIDGenerator interface {
	NewRemoteID() string
}

// uuidRemoteIDGenerator 基于随机 UUID 生成 32 位十六进制 remoteId
type uuidRemoteIDGenerator struct{}

// NewUUIDRemoteIDGenerator 返回默认的 remoteId 生成器
func NewUUIDRemoteIDGenerator() RemoteIDGenerator {
	return uuidRemoteIDGenerator{}
}

func (uuidRemoteIDGenerator) NewRemoteID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
