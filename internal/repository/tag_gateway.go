package repository

import (
	"math"
	"sort"
	"strings"
	"time"

	"knowhub_tags/internal/model"

	"gorm.io/gorm"
)

// TagGateway 定义标签树的底层行操作，只做原子读写与路径维护，不包含树的业务规则。
// 查询不到记录时统一返回 gorm.ErrRecordNotFound，由 service 层翻译为哨兵错误。
// 分页约定：offset 从 0 开始，limit = -1 表示不限制条数。
type TagGateway interface {
	GetBasicTagData(tagID int64) (*model.TagRow, error)
	GetBasicTagDataByRemoteID(remoteID string) (*model.TagRow, error)
	// GetBasicTagDataByURL 按关键字路径（如 "Cities/Paris"）逐级查找
	GetBasicTagDataByURL(url string) (*model.TagRow, error)
	// GetFullTagData 返回每个翻译一行；translations 为空表示全部语言
	GetFullTagData(tagID int64, translations []string) ([]model.TagFullRow, error)
	GetFullTagDataByRemoteID(remoteID string, translations []string) ([]model.TagFullRow, error)

	GetChildren(tagID int64, offset, limit int) ([]model.TagFullRow, error)
	GetChildrenCount(tagID int64) (int64, error)
	GetTagsByKeyword(keyword string, offset, limit int) ([]model.TagFullRow, error)
	GetTagsByKeywordCount(keyword string) (int64, error)
	GetSynonyms(tagID int64, offset, limit int) ([]model.TagFullRow, error)
	GetSynonymCount(tagID int64) (int64, error)
	GetRelatedContentIDs(tagID int64, offset, limit int) ([]int64, error)
	GetRelatedContentCount(tagID int64) (int64, error)
	// GetSubtree 返回 pathString 子树内所有标签（含同义词）的完整行
	GetSubtree(pathString string) ([]model.TagFullRow, error)

	Create(createStruct model.CreateStruct, parent *model.TagRow) (int64, error)
	Update(updateStruct model.UpdateStruct, tagID int64) error
	CreateSynonym(createStruct model.SynonymCreateStruct, mainTag *model.TagRow) (int64, error)
	ConvertToSynonym(tagID int64, mainTag *model.TagRow) error
	MoveSynonym(synonymID int64, mainTag *model.TagRow) error
	// MoveSubtree 重写源标签、其子孙以及这些标签的同义词的路径，返回移动后的源标签行
	MoveSubtree(source, destinationParent *model.TagRow) (*model.TagRow, error)
	// DeleteTag 删除标签、其同义词、全部子孙及子孙的同义词；同义词只删除自身
	DeleteTag(tagID int64) error
	TransferTagAttributeLinks(fromTagID, toTagID int64) error
	CreateTagAttributeLink(link *model.TagAttributeLinkRow) error
	// UpdateSubtreeModificationTime 一次性更新路径上所有节点的修改时间，只会调大不会调小
	UpdateSubtreeModificationTime(pathString string, timestamp time.Time) error

	// Transaction 在同一个数据库事务中执行 fn，fn 返回错误时整体回滚
	Transaction(fn func(TagGateway) error) error
}

// tagGateway 是 TagGateway 接口的 GORM 实现。
type tagGateway struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTagGateway 创建基于 GORM 的标签网关
func NewTagGateway(db *gorm.DB) TagGateway {
	return &tagGateway{db: db, now: time.Now}
}

const fullTagColumns = "tags.*, tag_keywords.locale AS locale, tag_keywords.keyword AS translated_keyword"

func (r *tagGateway) fullTagQuery() *gorm.DB {
	return r.db.Table("tags").
		Select(fullTagColumns).
		Joins("INNER JOIN tag_keywords ON tag_keywords.tag_id = tags.id")
}

// paginate 应用 offset/limit；limit < 0 且 offset > 0 时 MySQL 仍要求 LIMIT，使用一个足够大的值
func paginate(tx *gorm.DB, offset, limit int) *gorm.DB {
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	switch {
	case limit >= 0:
		tx = tx.Limit(limit)
	case offset > 0:
		tx = tx.Limit(math.MaxInt32)
	}
	return tx
}

// fullRowsByIDs 按 ids 加载完整行，保持 keyword/id 排序
func (r *tagGateway) fullRowsByIDs(ids []int64) ([]model.TagFullRow, error) {
	rows := []model.TagFullRow{}
	if len(ids) == 0 {
		return rows, nil
	}
	if err := r.fullTagQuery().
		Where("tags.id IN ?", ids).
		Order("tags.keyword ASC, tags.id ASC, tag_keywords.locale ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// pagedFullRows 先对标签本身分页取 id，再加载翻译行，避免分页落在翻译行上
func (r *tagGateway) pagedFullRows(tx *gorm.DB, offset, limit int) ([]model.TagFullRow, error) {
	var ids []int64
	if err := paginate(tx.Order("keyword ASC, id ASC"), offset, limit).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return r.fullRowsByIDs(ids)
}

func (r *tagGateway) GetBasicTagData(tagID int64) (*model.TagRow, error) {
	var row model.TagRow
	if err := r.db.Where("id = ?", tagID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *tagGateway) GetBasicTagDataByRemoteID(remoteID string) (*model.TagRow, error) {
	var row model.TagRow
	if err := r.db.Where("remote_id = ?", remoteID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *tagGateway) GetBasicTagDataByURL(url string) (*model.TagRow, error) {
	segments := make([]string, 0)
	for _, s := range strings.Split(strings.Trim(url, "/"), "/") {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	var current *model.TagRow
	var parentID int64
	for _, keyword := range segments {
		// 每一级使用新的变量：First 会把目标结构体上非零主键当作查询条件
		var row model.TagRow
		if err := r.db.
			Where("parent_id = ? AND main_tag_id = 0 AND keyword = ?", parentID, keyword).
			First(&row).Error; err != nil {
			return nil, err
		}
		current = &row
		parentID = row.ID
	}
	return current, nil
}

func (r *tagGateway) GetFullTagData(tagID int64, translations []string) ([]model.TagFullRow, error) {
	rows := []model.TagFullRow{}
	tx := r.fullTagQuery().Where("tags.id = ?", tagID)
	if len(translations) > 0 {
		tx = tx.Where("tag_keywords.locale IN ?", translations)
	}
	if err := tx.Order("tag_keywords.locale ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *tagGateway) GetFullTagDataByRemoteID(remoteID string, translations []string) ([]model.TagFullRow, error) {
	rows := []model.TagFullRow{}
	tx := r.fullTagQuery().Where("tags.remote_id = ?", remoteID)
	if len(translations) > 0 {
		tx = tx.Where("tag_keywords.locale IN ?", translations)
	}
	if err := tx.Order("tag_keywords.locale ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *tagGateway) GetChildren(tagID int64, offset, limit int) ([]model.TagFullRow, error) {
	tx := r.db.Model(&model.TagRow{}).Where("parent_id = ? AND main_tag_id = 0", tagID)
	return r.pagedFullRows(tx, offset, limit)
}

func (r *tagGateway) GetChildrenCount(tagID int64) (int64, error) {
	var count int64
	if err := r.db.Model(&model.TagRow{}).
		Where("parent_id = ? AND main_tag_id = 0", tagID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *tagGateway) keywordTagIDs(keyword string) *gorm.DB {
	return r.db.Model(&model.TagKeywordRow{}).Select("tag_id").Where("keyword = ?", keyword)
}

func (r *tagGateway) GetTagsByKeyword(keyword string, offset, limit int) ([]model.TagFullRow, error) {
	tx := r.db.Model(&model.TagRow{}).Where("id IN (?)", r.keywordTagIDs(keyword))
	return r.pagedFullRows(tx, offset, limit)
}

func (r *tagGateway) GetTagsByKeywordCount(keyword string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.TagRow{}).
		Where("id IN (?)", r.keywordTagIDs(keyword)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *tagGateway) GetSynonyms(tagID int64, offset, limit int) ([]model.TagFullRow, error) {
	tx := r.db.Model(&model.TagRow{}).Where("main_tag_id = ?", tagID)
	return r.pagedFullRows(tx, offset, limit)
}

func (r *tagGateway) GetSynonymCount(tagID int64) (int64, error) {
	var count int64
	if err := r.db.Model(&model.TagRow{}).
		Where("main_tag_id = ?", tagID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *tagGateway) GetRelatedContentIDs(tagID int64, offset, limit int) ([]int64, error) {
	ids := []int64{}
	tx := r.db.Model(&model.TagAttributeLinkRow{}).
		Distinct("content_id").
		Where("tag_id = ?", tagID).
		Order("content_id ASC")
	if err := paginate(tx, offset, limit).Pluck("content_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *tagGateway) GetRelatedContentCount(tagID int64) (int64, error) {
	var count int64
	if err := r.db.Model(&model.TagAttributeLinkRow{}).
		Distinct("content_id").
		Where("tag_id = ?", tagID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *tagGateway) GetSubtree(pathString string) ([]model.TagFullRow, error) {
	rows := []model.TagFullRow{}
	ids := model.PathIDs(pathString)
	if len(ids) == 0 {
		return rows, nil
	}
	rootID := ids[len(ids)-1]
	if err := r.fullTagQuery().
		Where("tags.path_string LIKE ? OR tags.main_tag_id = ?", pathString+"%", rootID).
		Order("tags.depth ASC, tags.keyword ASC, tags.id ASC, tag_keywords.locale ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// insertKeywords 为标签写入翻译行，按语言排序保证写入顺序稳定
func insertKeywords(tx *gorm.DB, tagID int64, keywords map[string]string) error {
	if len(keywords) == 0 {
		return nil
	}
	locales := make([]string, 0, len(keywords))
	for locale := range keywords {
		locales = append(locales, locale)
	}
	sort.Strings(locales)

	rows := make([]model.TagKeywordRow, 0, len(locales))
	for _, locale := range locales {
		rows = append(rows, model.TagKeywordRow{TagID: tagID, Locale: locale, Keyword: keywords[locale]})
	}
	return tx.Create(&rows).Error
}

// insertTag 插入标签行，拿到自增 ID 后回填路径并写入翻译
func (r *tagGateway) insertTag(row *model.TagRow, parentPath string, keywords map[string]string) (int64, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		row.PathString = model.ChildPathString(parentPath, row.ID)
		if err := tx.Model(&model.TagRow{}).
			Where("id = ?", row.ID).
			Update("path_string", row.PathString).Error; err != nil {
			return err
		}
		return insertKeywords(tx, row.ID, keywords)
	})
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *tagGateway) Create(createStruct model.CreateStruct, parent *model.TagRow) (int64, error) {
	row := &model.TagRow{
		Keyword:          createStruct.Keywords[createStruct.MainLanguageCode],
		Depth:            1,
		Modified:         r.now().Unix(),
		RemoteID:         createStruct.RemoteID,
		MainLanguageCode: createStruct.MainLanguageCode,
		AlwaysAvailable:  createStruct.AlwaysAvailable,
	}
	parentPath := model.RootPathString
	if parent != nil {
		row.ParentID = parent.ID
		row.Depth = parent.Depth + 1
		parentPath = parent.PathString
	}
	return r.insertTag(row, parentPath, createStruct.Keywords)
}

func (r *tagGateway) Update(updateStruct model.UpdateStruct, tagID int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.TagRow{}).
			Where("id = ?", tagID).
			Updates(map[string]interface{}{
				"keyword":            updateStruct.Keywords[updateStruct.MainLanguageCode],
				"remote_id":          updateStruct.RemoteID,
				"main_language_code": updateStruct.MainLanguageCode,
				"always_available":   updateStruct.AlwaysAvailable,
				"modified":           r.now().Unix(),
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("tag_id = ?", tagID).Delete(&model.TagKeywordRow{}).Error; err != nil {
			return err
		}
		return insertKeywords(tx, tagID, updateStruct.Keywords)
	})
}

func (r *tagGateway) CreateSynonym(createStruct model.SynonymCreateStruct, mainTag *model.TagRow) (int64, error) {
	row := &model.TagRow{
		ParentID:         mainTag.ParentID,
		MainTagID:        mainTag.ID,
		Keyword:          createStruct.Keywords[createStruct.MainLanguageCode],
		Depth:            mainTag.Depth,
		Modified:         r.now().Unix(),
		RemoteID:         createStruct.RemoteID,
		MainLanguageCode: createStruct.MainLanguageCode,
		AlwaysAvailable:  createStruct.AlwaysAvailable,
	}
	return r.insertTag(row, model.ParentPathString(mainTag.PathString), createStruct.Keywords)
}

// attachToMainTag 把标签挂到主标签之下：与主标签同父、同深度
func (r *tagGateway) attachToMainTag(tagID int64, mainTag *model.TagRow) error {
	return r.db.Model(&model.TagRow{}).
		Where("id = ?", tagID).
		Updates(map[string]interface{}{
			"parent_id":   mainTag.ParentID,
			"main_tag_id": mainTag.ID,
			"depth":       mainTag.Depth,
			"path_string": model.ChildPathString(model.ParentPathString(mainTag.PathString), tagID),
			"modified":    r.now().Unix(),
		}).Error
}

func (r *tagGateway) ConvertToSynonym(tagID int64, mainTag *model.TagRow) error {
	return r.attachToMainTag(tagID, mainTag)
}

func (r *tagGateway) MoveSynonym(synonymID int64, mainTag *model.TagRow) error {
	return r.attachToMainTag(synonymID, mainTag)
}

func (r *tagGateway) MoveSubtree(source, destinationParent *model.TagRow) (*model.TagRow, error) {
	oldParentPath := model.ParentPathString(source.PathString)
	depthDelta := destinationParent.Depth + 1 - source.Depth

	var moved model.TagRow
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// 子孙（含子孙的同义词）和源标签自身的同义词共享旧的父路径前缀，一条语句整体替换
		if err := tx.Model(&model.TagRow{}).
			Where("path_string LIKE ? OR main_tag_id = ?", source.PathString+"%", source.ID).
			Updates(map[string]interface{}{
				"depth":       gorm.Expr("depth + ?", depthDelta),
				"path_string": gorm.Expr("CONCAT(?, SUBSTRING(path_string, ?))", destinationParent.PathString, len(oldParentPath)+1),
			}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.TagRow{}).
			Where("id = ? OR main_tag_id = ?", source.ID, source.ID).
			Updates(map[string]interface{}{
				"parent_id": destinationParent.ID,
				"modified":  r.now().Unix(),
			}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", source.ID).First(&moved).Error
	})
	if err != nil {
		return nil, err
	}
	return &moved, nil
}

func (r *tagGateway) DeleteTag(tagID int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var current model.TagRow
		if err := tx.Where("id = ?", tagID).First(&current).Error; err != nil {
			return err
		}

		var ids []int64
		if err := tx.Model(&model.TagRow{}).
			Where("path_string LIKE ? OR main_tag_id = ?", current.PathString+"%", current.ID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			ids = []int64{current.ID}
		}

		if err := tx.Where("tag_id IN ?", ids).Delete(&model.TagAttributeLinkRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tag_id IN ?", ids).Delete(&model.TagKeywordRow{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&model.TagRow{}).Error
	})
}

type linkKey struct {
	contentID int64
	fieldID   int64
}

// TransferTagAttributeLinks 把 from 的内容关联转给 to；同一内容字段已关联 to 的直接删除，避免重复
func (r *tagGateway) TransferTagAttributeLinks(fromTagID, toTagID int64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing []model.TagAttributeLinkRow
		if err := tx.Where("tag_id = ?", toTagID).Find(&existing).Error; err != nil {
			return err
		}
		taken := make(map[linkKey]struct{}, len(existing))
		for _, l := range existing {
			taken[linkKey{l.ContentID, l.FieldID}] = struct{}{}
		}

		var links []model.TagAttributeLinkRow
		if err := tx.Where("tag_id = ?", fromTagID).Order("id ASC").Find(&links).Error; err != nil {
			return err
		}

		var duplicated, transferred []int64
		for _, l := range links {
			key := linkKey{l.ContentID, l.FieldID}
			if _, ok := taken[key]; ok {
				duplicated = append(duplicated, l.ID)
				continue
			}
			taken[key] = struct{}{}
			transferred = append(transferred, l.ID)
		}

		if len(duplicated) > 0 {
			if err := tx.Where("id IN ?", duplicated).Delete(&model.TagAttributeLinkRow{}).Error; err != nil {
				return err
			}
		}
		if len(transferred) > 0 {
			if err := tx.Model(&model.TagAttributeLinkRow{}).
				Where("id IN ?", transferred).
				Update("tag_id", toTagID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *tagGateway) CreateTagAttributeLink(link *model.TagAttributeLinkRow) error {
	return r.db.
		Where("tag_id = ? AND content_id = ? AND field_id = ?", link.TagID, link.ContentID, link.FieldID).
		FirstOrCreate(link).Error
}

func (r *tagGateway) UpdateSubtreeModificationTime(pathString string, timestamp time.Time) error {
	ids := model.PathIDs(pathString)
	if len(ids) == 0 {
		return nil
	}
	ts := timestamp.Unix()
	return r.db.Model(&model.TagRow{}).
		Where("id IN ? AND modified < ?", ids, ts).
		Update("modified", ts).Error
}

func (r *tagGateway) Transaction(fn func(TagGateway) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&tagGateway{db: tx, now: r.now})
	})
}
