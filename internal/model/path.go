package model

import (
	"strconv"
	"strings"
)

// RootPathString 顶级标签的父路径
const RootPathString = "/"

// ChildPathString 在父路径后追加节点 ID，parentPath 为空视为根。
//
//	ChildPathString("/1/5/", 12) == "/1/5/12/"
func ChildPathString(parentPath string, id int64) string {
	if parentPath == "" {
		parentPath = RootPathString
	}
	return parentPath + strconv.FormatInt(id, 10) + "/"
}

// ParentPathString 去掉路径中的最后一段。
//
//	ParentPathString("/1/5/12/") == "/1/5/"
//	ParentPathString("/12/") == "/"
func ParentPathString(path string) string {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return RootPathString
	}
	return trimmed[:idx+1]
}

// PathIDs 解析路径中的所有节点 ID（从根到自身），非法片段会被忽略。
func PathIDs(path string) []int64 {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// InSubtree 判断 path 是否位于 subtreePath 表示的子树内（包含自身）。
func InSubtree(path, subtreePath string) bool {
	return subtreePath != "" && strings.HasPrefix(path, subtreePath)
}
