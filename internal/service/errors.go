package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 哨兵错误：对外统一语义，隐藏底层实现细节
var (
	// ErrTagNotFound 按 id/remoteId/url 查不到标签，或操作引用的父标签、主标签、目标标签不存在
	ErrTagNotFound = errors.New("tag not found")
	// ErrInvalidInput 参数不合法（关键字为空、自引用、同义词作为父节点等）
	ErrInvalidInput = errors.New("invalid input")
	// ErrTagAlreadyExists remoteId 已被其他标签占用
	ErrTagAlreadyExists = errors.New("tag already exists")
	// ErrTagHasChildren 有子节点的标签不能转换为同义词
	ErrTagHasChildren = errors.New("tag has children")
	// ErrInvalidTreeOperation 移动/复制/合并的目标位于源标签子树内，或源/目标是同义词
	ErrInvalidTreeOperation = errors.New("invalid tree operation")
	// ErrInternal 内部错误（对外不暴露细节）
	ErrInternal = errors.New("internal server error")
)

func tagNotFound(identifier interface{}) error {
	return fmt.Errorf("%w: tag %v", ErrTagNotFound, identifier)
}

// notFound 把网关的 gorm.ErrRecordNotFound 翻译为 ErrTagNotFound，其它错误原样返回
func notFound(err error, identifier interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tagNotFound(identifier)
	}
	return err
}
