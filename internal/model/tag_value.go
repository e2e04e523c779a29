package model

import (
	"maps"
	"time"
)

// Tag 是标签的领域对象，由一个标签的全部翻译行聚合而成。
type Tag struct {
	ID               int64             `json:"id"`
	ParentTagID      int64             `json:"parentTagId"`
	MainTagID        int64             `json:"mainTagId"`
	Keywords         map[string]string `json:"keywords"`
	Depth            int               `json:"depth"`
	PathString       string            `json:"pathString"`
	ModificationDate time.Time         `json:"modificationDate"`
	RemoteID         string            `json:"remoteId"`
	AlwaysAvailable  bool              `json:"alwaysAvailable"`
	MainLanguageCode string            `json:"mainLanguageCode"`
	LanguageCodes    []string          `json:"languageCodes"`
}

// IsSynonym 判断标签是否为同义词
func (t *Tag) IsSynonym() bool {
	return t.MainTagID > 0
}

// Keyword 返回主语言下的关键字
func (t *Tag) Keyword() string {
	return t.Keywords[t.MainLanguageCode]
}

// TagInfo 是不含翻译的轻量标签信息。
type TagInfo struct {
	ID               int64     `json:"id"`
	ParentTagID      int64     `json:"parentTagId"`
	MainTagID        int64     `json:"mainTagId"`
	Keyword          string    `json:"keyword"`
	Depth            int       `json:"depth"`
	PathString       string    `json:"pathString"`
	ModificationDate time.Time `json:"modificationDate"`
	RemoteID         string    `json:"remoteId"`
	AlwaysAvailable  bool      `json:"alwaysAvailable"`
	MainLanguageCode string    `json:"mainLanguageCode"`
}

// TagNode 是标签的树形节点，用于返回整棵子树。
// 与 Tag 的区别：增加了 Children（子标签）和 Synonyms（同义词）。
type TagNode struct {
	*Tag
	Children []*TagNode `json:"children"`
	Synonyms []*Tag     `json:"synonyms"`
}

// CreateStruct 创建普通标签的参数。按值传递，网关不会持有调用方的 map。
type CreateStruct struct {
	ParentTagID      int64
	MainLanguageCode string
	Keywords         map[string]string
	RemoteID         string
	AlwaysAvailable  bool
}

// SynonymCreateStruct 创建同义词的参数。
type SynonymCreateStruct struct {
	MainTagID        int64
	MainLanguageCode string
	Keywords         map[string]string
	RemoteID         string
	AlwaysAvailable  bool
}

// UpdateStruct 更新标签属性的参数，所有字段整体覆盖。
type UpdateStruct struct {
	MainLanguageCode string
	Keywords         map[string]string
	RemoteID         string
	AlwaysAvailable  bool
}

// CloneKeywords 复制关键字 map，避免同一个 map 在多次调用之间共享。
func CloneKeywords(keywords map[string]string) map[string]string {
	if keywords == nil {
		return map[string]string{}
	}
	return maps.Clone(keywords)
}
