package repository

import (
	"time"

	"knowhub_tags/internal/model"
)

// ExtractTagList 把联表查询得到的翻译行聚合为标签列表。
// 同一标签的多行合并为一个 Tag，列表顺序与行中标签首次出现的顺序一致。
func ExtractTagList(rows []model.TagFullRow) []*model.Tag {
	tags := make([]*model.Tag, 0)
	byID := make(map[int64]*model.Tag)
	for _, row := range rows {
		tag, ok := byID[row.ID]
		if !ok {
			tag = tagFromRow(&row.TagRow)
			tag.Keywords = map[string]string{}
			byID[row.ID] = tag
			tags = append(tags, tag)
		}
		if _, seen := tag.Keywords[row.Locale]; !seen {
			tag.LanguageCodes = append(tag.LanguageCodes, row.Locale)
		}
		tag.Keywords[row.Locale] = row.TranslatedKeyword
	}
	return tags
}

// TagFromRow 仅根据基础行构造 Tag，关键字只包含主语言
func TagFromRow(row *model.TagRow) *model.Tag {
	tag := tagFromRow(row)
	tag.Keywords = map[string]string{row.MainLanguageCode: row.Keyword}
	tag.LanguageCodes = []string{row.MainLanguageCode}
	return tag
}

func tagFromRow(row *model.TagRow) *model.Tag {
	return &model.Tag{
		ID:               row.ID,
		ParentTagID:      row.ParentID,
		MainTagID:        row.MainTagID,
		Depth:            row.Depth,
		PathString:       row.PathString,
		ModificationDate: ModificationDate(row.Modified),
		RemoteID:         row.RemoteID,
		AlwaysAvailable:  row.AlwaysAvailable,
		MainLanguageCode: row.MainLanguageCode,
		LanguageCodes:    []string{},
	}
}

// TagInfoFromRow 基础行转换为 TagInfo
func TagInfoFromRow(row *model.TagRow) *model.TagInfo {
	return &model.TagInfo{
		ID:               row.ID,
		ParentTagID:      row.ParentID,
		MainTagID:        row.MainTagID,
		Keyword:          row.Keyword,
		Depth:            row.Depth,
		PathString:       row.PathString,
		ModificationDate: ModificationDate(row.Modified),
		RemoteID:         row.RemoteID,
		AlwaysAvailable:  row.AlwaysAvailable,
		MainLanguageCode: row.MainLanguageCode,
	}
}

// ModificationDate 把存储的 unix 秒转换为时间
func ModificationDate(modified int64) time.Time {
	return time.Unix(modified, 0)
}
