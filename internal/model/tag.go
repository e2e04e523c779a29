package model

// TagRow 对应数据库中 tags 表，表示标签树中的一个节点。
// 树形结构通过 ParentID 与物化路径 PathString（如 /1/5/12/）共同维护：
//   - 普通标签：PathString = 父节点 PathString + 自身 ID
//   - 同义词：MainTagID 指向主标签，ParentID/Depth 与主标签一致，
//     PathString = 主标签父路径 + 自身 ID，同义词永远是叶子
type TagRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ParentID  int64 `gorm:"not null;default:0;index" json:"parent_id"`
	MainTagID int64 `gorm:"not null;default:0;index" json:"main_tag_id"`
	// Keyword 主语言下的关键字，按 URL 查找时使用
	Keyword          string `gorm:"type:varchar(255);not null;index" json:"keyword"`
	Depth            int    `gorm:"not null;default:1" json:"depth"`
	PathString       string `gorm:"type:varchar(255);not null;index" json:"path_string"`
	Modified         int64  `gorm:"not null;default:0" json:"modified"`
	RemoteID         string `gorm:"type:varchar(100);not null;uniqueIndex" json:"remote_id"`
	MainLanguageCode string `gorm:"type:varchar(20);not null" json:"main_language_code"`
	// 不设置 default：GORM 插入时会跳过带默认值的零值字段，false 会被写成默认值
	AlwaysAvailable bool `gorm:"not null" json:"always_available"`
}

// TableName 指定 GORM 使用的表名
func (TagRow) TableName() string {
	return "tags"
}

// TagKeywordRow 对应 tag_keywords 表，每种语言一行。
type TagKeywordRow struct {
	ID      int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	TagID   int64  `gorm:"not null;uniqueIndex:idx_tag_locale" json:"tag_id"`
	Locale  string `gorm:"type:varchar(20);not null;uniqueIndex:idx_tag_locale" json:"locale"`
	Keyword string `gorm:"type:varchar(255);not null;index" json:"keyword"`
}

func (TagKeywordRow) TableName() string {
	return "tag_keywords"
}

// TagAttributeLinkRow 对应 tag_attribute_links 表，表示内容对象的某个字段引用了标签。
type TagAttributeLinkRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TagID     int64 `gorm:"not null;index" json:"tag_id"`
	ContentID int64 `gorm:"not null;index" json:"content_id"`
	FieldID   int64 `gorm:"not null" json:"field_id"`
	Priority  int   `gorm:"not null;default:0" json:"priority"`
}

func (TagAttributeLinkRow) TableName() string {
	return "tag_attribute_links"
}

// TagFullRow 是 tags 与 tag_keywords 联表查询的扫描目标，每个翻译一行。
type TagFullRow struct {
	TagRow            `gorm:"embedded"`
	Locale            string `gorm:"column:locale"`
	TranslatedKeyword string `gorm:"column:translated_keyword"`
}
