package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"knowhub_tags/internal/model"
	"knowhub_tags/internal/repository"
	"knowhub_tags/pkg/log"

	"gorm.io/gorm"
)

// TagService 是标签树引擎，负责在结构性操作下维护树的不变量：
// 1. 父路径合法：PathString 始终是父节点路径的严格扩展。
// 2. 同义词引用完整：同义词的主标签永远不是同义词，转换/合并时同义词不会悬挂。
// 3. 修改时间级联：任何变更都会把整条祖先链的修改时间推进到不早于变更时间。
// 底层行访问全部委托给 repository.TagGateway。
type TagService interface {
	Load(tagID int64, translations ...string) (*model.Tag, error)
	LoadTagInfo(tagID int64) (*model.TagInfo, error)
	LoadByRemoteID(remoteID string, translations ...string) (*model.Tag, error)
	LoadTagInfoByRemoteID(remoteID string) (*model.TagInfo, error)
	LoadByURL(url string) (*model.Tag, error)
	LoadSubtree(tagID int64) (*model.TagNode, error)

	LoadChildren(tagID int64, offset, limit int) ([]*model.Tag, error)
	GetChildrenCount(tagID int64) (int64, error)
	LoadTagsByKeyword(keyword string, offset, limit int) ([]*model.Tag, error)
	GetTagsByKeywordCount(keyword string) (int64, error)
	LoadSynonyms(tagID int64, offset, limit int) ([]*model.Tag, error)
	GetSynonymCount(tagID int64) (int64, error)
	LoadRelatedContentIDs(tagID int64, offset, limit int) ([]int64, error)
	GetRelatedContentCount(tagID int64) (int64, error)
	AddRelatedContent(tagID, contentID, fieldID int64) error

	Create(createStruct model.CreateStruct) (*model.Tag, error)
	Update(updateStruct model.UpdateStruct, tagID int64) (*model.Tag, error)
	AddSynonym(createStruct model.SynonymCreateStruct) (*model.Tag, error)
	ConvertToSynonym(tagID, mainTagID int64) (*model.Tag, error)
	Merge(tagID, targetTagID int64) error
	CopySubtree(sourceID, destinationParentID int64) (*model.Tag, error)
	MoveSubtree(sourceID, destinationParentID int64) (*model.Tag, error)
	DeleteTag(tagID int64) error
}

type tagService struct {
	gateway             repository.TagGateway
	remoteIDs           RemoteIDGenerator
	now                 func() time.Time
	defaultLanguageCode string
}

// Option 配置 TagService
type Option func(*tagService)

// WithRemoteIDGenerator 注入 remoteId 生成器，测试中可使用确定性的实现
func WithRemoteIDGenerator(g RemoteIDGenerator) Option {
	return func(s *tagService) {
		if g != nil {
			s.remoteIDs = g
		}
	}
}

// WithClock 注入当前时间函数
func WithClock(now func() time.Time) Option {
	return func(s *tagService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultLanguageCode 未指定主语言时使用的语言
func WithDefaultLanguageCode(code string) Option {
	return func(s *tagService) {
		if code = strings.TrimSpace(code); code != "" {
			s.defaultLanguageCode = code
		}
	}
}

func NewTagService(gateway repository.TagGateway, opts ...Option) TagService {
	s := &tagService{
		gateway:             gateway,
		remoteIDs:           NewUUIDRemoteIDGenerator(),
		now:                 time.Now,
		defaultLanguageCode: "eng-GB",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// inTransaction 在一个网关事务内执行 fn，fn 拿到的 tagService 绑定事务网关。
// 公开的写操作各自开启一个事务，内部复用（复制时的 create、合并时的移动）不再嵌套。
func (s *tagService) inTransaction(fn func(tx *tagService) error) error {
	if s.gateway == nil {
		return ErrInternal
	}
	return s.gateway.Transaction(func(g repository.TagGateway) error {
		tx := *s
		tx.gateway = g
		return fn(&tx)
	})
}

func (s *tagService) basicRow(tagID int64) (*model.TagRow, error) {
	row, err := s.gateway.GetBasicTagData(tagID)
	if err != nil {
		return nil, notFound(err, tagID)
	}
	if row == nil {
		return nil, tagNotFound(tagID)
	}
	return row, nil
}

// normalizePage offset 小于 0 视为 0，limit 小于 0 一律视为不限制
func normalizePage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = -1
	}
	return offset, limit
}

func (s *tagService) Load(tagID int64, translations ...string) (*model.Tag, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	rows, err := s.gateway.GetFullTagData(tagID, translations)
	if err != nil {
		return nil, notFound(err, tagID)
	}
	if len(rows) == 0 {
		return nil, tagNotFound(tagID)
	}
	return repository.ExtractTagList(rows)[0], nil
}

func (s *tagService) LoadTagInfo(tagID int64) (*model.TagInfo, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	row, err := s.basicRow(tagID)
	if err != nil {
		return nil, err
	}
	return repository.TagInfoFromRow(row), nil
}

func (s *tagService) LoadByRemoteID(remoteID string, translations ...string) (*model.Tag, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	rows, err := s.gateway.GetFullTagDataByRemoteID(remoteID, translations)
	if err != nil {
		return nil, notFound(err, remoteID)
	}
	if len(rows) == 0 {
		return nil, tagNotFound(remoteID)
	}
	return repository.ExtractTagList(rows)[0], nil
}

func (s *tagService) LoadTagInfoByRemoteID(remoteID string) (*model.TagInfo, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	row, err := s.gateway.GetBasicTagDataByRemoteID(remoteID)
	if err != nil {
		return nil, notFound(err, remoteID)
	}
	return repository.TagInfoFromRow(row), nil
}

// LoadByURL 按关键字路径加载标签，不做翻译过滤
func (s *tagService) LoadByURL(url string) (*model.Tag, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	row, err := s.gateway.GetBasicTagDataByURL(url)
	if err != nil {
		return nil, notFound(err, url)
	}
	return repository.TagFromRow(row), nil
}

// LoadSubtree 构建以 tagID 为根的标签树（children + synonyms）。
// 实现采用两遍扫描：
// 1. 第一遍创建所有节点并放入 map（id -> node）
// 2. 第二遍按 parent/main 关系把子节点和同义词挂到对应节点上
func (s *tagService) LoadSubtree(tagID int64) (*model.TagNode, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	root, err := s.basicRow(tagID)
	if err != nil {
		return nil, err
	}
	rows, err := s.gateway.GetSubtree(root.PathString)
	if err != nil {
		return nil, err
	}

	tags := repository.ExtractTagList(rows)
	nodes := make(map[int64]*model.TagNode, len(tags))
	for _, tag := range tags {
		nodes[tag.ID] = &model.TagNode{Tag: tag, Children: []*model.TagNode{}, Synonyms: []*model.Tag{}}
	}

	for _, tag := range tags {
		if tag.ID == root.ID {
			continue
		}
		if tag.IsSynonym() {
			if main, ok := nodes[tag.MainTagID]; ok {
				main.Synonyms = append(main.Synonyms, tag)
			}
			continue
		}
		if parent, ok := nodes[tag.ParentTagID]; ok {
			parent.Children = append(parent.Children, nodes[tag.ID])
		}
	}

	rootNode, ok := nodes[root.ID]
	if !ok {
		return nil, tagNotFound(tagID)
	}
	return rootNode, nil
}

func (s *tagService) LoadChildren(tagID int64, offset, limit int) ([]*model.Tag, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	offset, limit = normalizePage(offset, limit)
	rows, err := s.gateway.GetChildren(tagID, offset, limit)
	if err != nil {
		return nil, err
	}
	return repository.ExtractTagList(rows), nil
}

func (s *tagService) GetChildrenCount(tagID int64) (int64, error) {
	if s.gateway == nil {
		return 0, ErrInternal
	}
	return s.gateway.GetChildrenCount(tagID)
}

func (s *tagService) LoadTagsByKeyword(keyword string, offset, limit int) ([]*model.Tag, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	offset, limit = normalizePage(offset, limit)
	rows, err := s.gateway.GetTagsByKeyword(strings.TrimSpace(keyword), offset, limit)
	if err != nil {
		return nil, err
	}
	return repository.ExtractTagList(rows), nil
}

func (s *tagService) GetTagsByKeywordCount(keyword string) (int64, error) {
	if s.gateway == nil {
		return 0, ErrInternal
	}
	return s.gateway.GetTagsByKeywordCount(strings.TrimSpace(keyword))
}

func (s *tagService) LoadSynonyms(tagID int64, offset, limit int) ([]*model.Tag, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	offset, limit = normalizePage(offset, limit)
	rows, err := s.gateway.GetSynonyms(tagID, offset, limit)
	if err != nil {
		return nil, err
	}
	return repository.ExtractTagList(rows), nil
}

func (s *tagService) GetSynonymCount(tagID int64) (int64, error) {
	if s.gateway == nil {
		return 0, ErrInternal
	}
	return s.gateway.GetSynonymCount(tagID)
}

func (s *tagService) LoadRelatedContentIDs(tagID int64, offset, limit int) ([]int64, error) {
	if s.gateway == nil {
		return nil, ErrInternal
	}
	offset, limit = normalizePage(offset, limit)
	return s.gateway.GetRelatedContentIDs(tagID, offset, limit)
}

func (s *tagService) GetRelatedContentCount(tagID int64) (int64, error) {
	if s.gateway == nil {
		return 0, ErrInternal
	}
	return s.gateway.GetRelatedContentCount(tagID)
}

// AddRelatedContent 让内容对象的某个字段引用标签；重复关联是幂等的
func (s *tagService) AddRelatedContent(tagID, contentID, fieldID int64) error {
	if s.gateway == nil {
		return ErrInternal
	}
	if contentID <= 0 || fieldID < 0 {
		return ErrInvalidInput
	}
	row, err := s.basicRow(tagID)
	if err != nil {
		return err
	}
	return s.gateway.CreateTagAttributeLink(&model.TagAttributeLinkRow{
		TagID:     row.ID,
		ContentID: contentID,
		FieldID:   fieldID,
	})
}

// normalizeTranslations 校验并规范化关键字：
// 1. 至少有一个翻译，语言和关键字都去除首尾空白且不能为空。
// 2. 主语言为空时使用默认语言，且主语言必须有关键字。
// 返回新的 map，不修改调用方传入的 map。
func (s *tagService) normalizeTranslations(mainLanguageCode string, keywords map[string]string) (string, map[string]string, error) {
	if len(keywords) == 0 {
		return "", nil, fmt.Errorf("%w: keywords are required", ErrInvalidInput)
	}
	normalized := make(map[string]string, len(keywords))
	for locale, keyword := range keywords {
		locale = strings.TrimSpace(locale)
		keyword = strings.TrimSpace(keyword)
		if locale == "" || keyword == "" {
			return "", nil, fmt.Errorf("%w: blank keyword or language code", ErrInvalidInput)
		}
		normalized[locale] = keyword
	}

	mainLanguageCode = strings.TrimSpace(mainLanguageCode)
	if mainLanguageCode == "" {
		mainLanguageCode = s.defaultLanguageCode
	}
	if _, ok := normalized[mainLanguageCode]; !ok {
		return "", nil, fmt.Errorf("%w: missing keyword for main language %s", ErrInvalidInput, mainLanguageCode)
	}
	return mainLanguageCode, normalized, nil
}

// resolveRemoteID 为空时生成新的 remoteId；显式给出的 remoteId 必须未被占用
func (s *tagService) resolveRemoteID(remoteID string) (string, error) {
	remoteID = strings.TrimSpace(remoteID)
	if remoteID == "" {
		remoteID = s.remoteIDs.NewRemoteID()
	}
	_, err := s.gateway.GetBasicTagDataByRemoteID(remoteID)
	if err == nil {
		return "", fmt.Errorf("%w: remote id %s", ErrTagAlreadyExists, remoteID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	return remoteID, nil
}

// Create 创建标签。
// 关键规则：
// 1. 指定 parentTagId 时父标签必须存在，且不能是同义词。
// 2. 新标签写入后立即重新加载，以拿到路径、深度等派生字段。
// 3. 从新标签开始级联更新所有祖先的修改时间。
func (s *tagService) Create(createStruct model.CreateStruct) (*model.Tag, error) {
	var created *model.Tag
	err := s.inTransaction(func(tx *tagService) (err error) {
		created, err = tx.create(createStruct)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infow("tag created", "tag_id", created.ID, "parent_tag_id", created.ParentTagID, "path", created.PathString)
	return created, nil
}

func (s *tagService) create(createStruct model.CreateStruct) (*model.Tag, error) {
	mainLanguageCode, keywords, err := s.normalizeTranslations(createStruct.MainLanguageCode, createStruct.Keywords)
	if err != nil {
		return nil, err
	}
	createStruct.MainLanguageCode = mainLanguageCode
	createStruct.Keywords = keywords

	var parent *model.TagRow
	if createStruct.ParentTagID != 0 {
		if parent, err = s.basicRow(createStruct.ParentTagID); err != nil {
			return nil, err
		}
		if parent.MainTagID > 0 {
			return nil, fmt.Errorf("%w: parent tag %d is a synonym", ErrInvalidInput, parent.ID)
		}
	}

	if createStruct.RemoteID, err = s.resolveRemoteID(createStruct.RemoteID); err != nil {
		return nil, err
	}

	newTagID, err := s.gateway.Create(createStruct, parent)
	if err != nil {
		return nil, err
	}
	newTag, err := s.Load(newTagID)
	if err != nil {
		return nil, err
	}
	if err := s.updateSubtreeModificationTime(newTag.ID, newTag.ModificationDate); err != nil {
		return nil, err
	}
	return newTag, nil
}

// Update 更新标签属性，随后级联修改时间并返回重新加载的标签。
func (s *tagService) Update(updateStruct model.UpdateStruct, tagID int64) (*model.Tag, error) {
	var updated *model.Tag
	err := s.inTransaction(func(tx *tagService) error {
		row, err := tx.basicRow(tagID)
		if err != nil {
			return err
		}

		mainLanguageCode, keywords, err := tx.normalizeTranslations(updateStruct.MainLanguageCode, updateStruct.Keywords)
		if err != nil {
			return err
		}
		updateStruct.MainLanguageCode = mainLanguageCode
		updateStruct.Keywords = keywords

		// remoteId 留空表示保持不变；修改时不能与其他标签冲突
		updateStruct.RemoteID = strings.TrimSpace(updateStruct.RemoteID)
		if updateStruct.RemoteID == "" {
			updateStruct.RemoteID = row.RemoteID
		} else if updateStruct.RemoteID != row.RemoteID {
			if _, err := tx.resolveRemoteID(updateStruct.RemoteID); err != nil {
				return err
			}
		}

		if err := tx.gateway.Update(updateStruct, tagID); err != nil {
			return notFound(err, tagID)
		}
		if err := tx.updateSubtreeModificationTime(tagID, time.Time{}); err != nil {
			return err
		}
		updated, err = tx.Load(tagID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infow("tag updated", "tag_id", tagID)
	return updated, nil
}

// AddSynonym 为主标签创建同义词。
// 同义词与主标签的祖先链都要级联，二者在移动后可能不再共享同一条路径。
func (s *tagService) AddSynonym(createStruct model.SynonymCreateStruct) (*model.Tag, error) {
	var synonym *model.Tag
	err := s.inTransaction(func(tx *tagService) (err error) {
		synonym, err = tx.addSynonym(createStruct)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infow("synonym added", "tag_id", synonym.ID, "main_tag_id", synonym.MainTagID)
	return synonym, nil
}

func (s *tagService) addSynonym(createStruct model.SynonymCreateStruct) (*model.Tag, error) {
	mainTag, err := s.basicRow(createStruct.MainTagID)
	if err != nil {
		return nil, err
	}
	if mainTag.MainTagID > 0 {
		return nil, fmt.Errorf("%w: main tag %d is itself a synonym", ErrInvalidInput, mainTag.ID)
	}

	mainLanguageCode, keywords, err := s.normalizeTranslations(createStruct.MainLanguageCode, createStruct.Keywords)
	if err != nil {
		return nil, err
	}
	createStruct.MainLanguageCode = mainLanguageCode
	createStruct.Keywords = keywords
	if createStruct.RemoteID, err = s.resolveRemoteID(createStruct.RemoteID); err != nil {
		return nil, err
	}

	newSynonymID, err := s.gateway.CreateSynonym(createStruct, mainTag)
	if err != nil {
		return nil, err
	}
	newSynonym, err := s.Load(newSynonymID)
	if err != nil {
		return nil, err
	}
	if err := s.updateSubtreeModificationTime(newSynonym.ID, newSynonym.ModificationDate); err != nil {
		return nil, err
	}
	if err := s.updateSubtreeModificationTime(mainTag.ID, newSynonym.ModificationDate); err != nil {
		return nil, err
	}
	return newSynonym, nil
}

// ConvertToSynonym 把 tagID 转换为 mainTagID 的同义词。
// 关键规则：
// 1. 两个标签都必须存在，且都不能是同义词，也不能是同一个标签。
// 2. 有子节点的标签会被拒绝（ErrTagHasChildren），避免子节点挂在同义词下。
// 3. tagID 原有的同义词全部改挂到 mainTagID，不产生悬挂同义词。
func (s *tagService) ConvertToSynonym(tagID, mainTagID int64) (*model.Tag, error) {
	var converted *model.Tag
	err := s.inTransaction(func(tx *tagService) error {
		tagRow, err := tx.basicRow(tagID)
		if err != nil {
			return err
		}
		mainRow, err := tx.basicRow(mainTagID)
		if err != nil {
			return err
		}
		if tagRow.ID == mainRow.ID {
			return fmt.Errorf("%w: tag cannot be a synonym of itself", ErrInvalidInput)
		}
		if tagRow.MainTagID > 0 || mainRow.MainTagID > 0 {
			return fmt.Errorf("%w: synonyms cannot take part in conversion", ErrInvalidTreeOperation)
		}
		childCount, err := tx.gateway.GetChildrenCount(tagRow.ID)
		if err != nil {
			return err
		}
		if childCount > 0 {
			return fmt.Errorf("%w: tag %d has %d children", ErrTagHasChildren, tagRow.ID, childCount)
		}

		synonyms, err := tx.LoadSynonyms(tagRow.ID, 0, -1)
		if err != nil {
			return err
		}
		for _, synonym := range synonyms {
			if err := tx.gateway.MoveSynonym(synonym.ID, mainRow); err != nil {
				return err
			}
		}

		if err := tx.gateway.ConvertToSynonym(tagRow.ID, mainRow); err != nil {
			return err
		}
		if converted, err = tx.Load(tagRow.ID); err != nil {
			return err
		}
		if tagRow.ParentID > 0 {
			if err := tx.updateSubtreeModificationTime(tagRow.ParentID, converted.ModificationDate); err != nil {
				return err
			}
		}
		return tx.updateSubtreeModificationTime(mainRow.ID, converted.ModificationDate)
	})
	if err != nil {
		return nil, err
	}
	log.Infow("tag converted to synonym", "tag_id", tagID, "main_tag_id", mainTagID)
	return converted, nil
}

// Merge 把 tagID 合并进 targetTagID：内容关联全部转给目标，随后删除 tagID 及其同义词。
// tagID 的子节点会先移动到目标之下，合并不会丢失子树。
// 合并不可逆，原子性依赖网关事务。
func (s *tagService) Merge(tagID, targetTagID int64) error {
	err := s.inTransaction(func(tx *tagService) error {
		tagRow, err := tx.basicRow(tagID)
		if err != nil {
			return err
		}
		targetRow, err := tx.basicRow(targetTagID)
		if err != nil {
			return err
		}
		if tagRow.ID == targetRow.ID {
			return fmt.Errorf("%w: tag cannot be merged into itself", ErrInvalidInput)
		}
		if tagRow.MainTagID > 0 || targetRow.MainTagID > 0 {
			return fmt.Errorf("%w: synonyms cannot be merged", ErrInvalidTreeOperation)
		}
		if model.InSubtree(targetRow.PathString, tagRow.PathString) {
			return fmt.Errorf("%w: target %d is inside the subtree of %d", ErrInvalidTreeOperation, targetRow.ID, tagRow.ID)
		}

		children, err := tx.LoadChildren(tagRow.ID, 0, -1)
		if err != nil {
			return err
		}
		for _, child := range children {
			if _, err := tx.moveSubtree(child.ID, targetRow.ID); err != nil {
				return err
			}
		}

		synonyms, err := tx.LoadSynonyms(tagRow.ID, 0, -1)
		if err != nil {
			return err
		}
		for _, synonym := range synonyms {
			if err := tx.gateway.TransferTagAttributeLinks(synonym.ID, targetRow.ID); err != nil {
				return err
			}
			if err := tx.gateway.DeleteTag(synonym.ID); err != nil {
				return err
			}
		}

		if err := tx.gateway.TransferTagAttributeLinks(tagRow.ID, targetRow.ID); err != nil {
			return err
		}
		if err := tx.gateway.DeleteTag(tagRow.ID); err != nil {
			return err
		}

		// 被合并的标签已不存在，使用当前时间级联
		timestamp := tx.now()
		if tagRow.ParentID > 0 {
			if err := tx.updateSubtreeModificationTime(tagRow.ParentID, timestamp); err != nil {
				return err
			}
		}
		return tx.updateSubtreeModificationTime(targetRow.ID, timestamp)
	})
	if err != nil {
		return err
	}
	log.Infow("tag merged", "tag_id", tagID, "target_tag_id", targetTagID)
	return nil
}

// copyTask 是复制子树时待处理的一项：把 source 复制到 destinationParentID 之下
type copyTask struct {
	source              *model.Tag
	destinationParentID int64
}

// CopySubtree 把 sourceID 的整棵子树（含每个节点的同义词）复制到 destinationParentID 之下，
// 返回复制出的根节点。每个新节点都使用新生成的 remoteId。
func (s *tagService) CopySubtree(sourceID, destinationParentID int64) (*model.Tag, error) {
	var copied *model.Tag
	err := s.inTransaction(func(tx *tagService) error {
		source, err := tx.Load(sourceID)
		if err != nil {
			return err
		}
		destination, err := tx.Load(destinationParentID)
		if err != nil {
			return err
		}
		if source.IsSynonym() || destination.IsSynonym() {
			return fmt.Errorf("%w: synonyms cannot be copied or used as destination", ErrInvalidTreeOperation)
		}
		if model.InSubtree(destination.PathString, source.PathString) {
			return fmt.Errorf("%w: destination %d is inside the subtree of %d", ErrInvalidTreeOperation, destination.ID, source.ID)
		}

		if copied, err = tx.copySubtree(source, destination.ID); err != nil {
			return err
		}
		if source.ParentTagID > 0 {
			if err := tx.updateSubtreeModificationTime(source.ParentTagID, copied.ModificationDate); err != nil {
				return err
			}
		}
		return tx.updateSubtreeModificationTime(copied.ID, copied.ModificationDate)
	})
	if err != nil {
		return nil, err
	}
	log.Infow("subtree copied", "source_tag_id", sourceID, "destination_parent_id", destinationParentID, "copy_tag_id", copied.ID)
	return copied, nil
}

// copySubtree 使用显式栈做深度优先复制：节点先于其同义词和子节点创建，
// 子节点逆序入栈以保持原有顺序，树再深也不会增长调用栈。
func (s *tagService) copySubtree(root *model.Tag, destinationParentID int64) (*model.Tag, error) {
	var copiedRoot *model.Tag
	stack := []copyTask{{source: root, destinationParentID: destinationParentID}}

	for len(stack) > 0 {
		task := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		created, err := s.create(model.CreateStruct{
			ParentTagID:      task.destinationParentID,
			MainLanguageCode: task.source.MainLanguageCode,
			Keywords:         model.CloneKeywords(task.source.Keywords),
			RemoteID:         s.remoteIDs.NewRemoteID(),
			AlwaysAvailable:  task.source.AlwaysAvailable,
		})
		if err != nil {
			return nil, err
		}
		if copiedRoot == nil {
			copiedRoot = created
		}

		synonyms, err := s.LoadSynonyms(task.source.ID, 0, -1)
		if err != nil {
			return nil, err
		}
		for _, synonym := range synonyms {
			if _, err := s.addSynonym(model.SynonymCreateStruct{
				MainTagID:        created.ID,
				MainLanguageCode: synonym.MainLanguageCode,
				Keywords:         model.CloneKeywords(synonym.Keywords),
				RemoteID:         s.remoteIDs.NewRemoteID(),
				AlwaysAvailable:  synonym.AlwaysAvailable,
			}); err != nil {
				return nil, err
			}
		}

		children, err := s.LoadChildren(task.source.ID, 0, -1)
		if err != nil {
			return nil, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, copyTask{source: children[i], destinationParentID: created.ID})
		}
	}
	return copiedRoot, nil
}

// MoveSubtree 把 sourceID 及其子树移动到 destinationParentID 之下。
// 路径重写由网关一次完成；旧父节点和新位置的祖先链都会级联修改时间。
func (s *tagService) MoveSubtree(sourceID, destinationParentID int64) (*model.Tag, error) {
	var moved *model.Tag
	err := s.inTransaction(func(tx *tagService) (err error) {
		moved, err = tx.moveSubtree(sourceID, destinationParentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Infow("subtree moved", "tag_id", sourceID, "destination_parent_id", destinationParentID, "path", moved.PathString)
	return moved, nil
}

func (s *tagService) moveSubtree(sourceID, destinationParentID int64) (*model.Tag, error) {
	source, err := s.basicRow(sourceID)
	if err != nil {
		return nil, err
	}
	destination, err := s.basicRow(destinationParentID)
	if err != nil {
		return nil, err
	}
	if source.MainTagID > 0 || destination.MainTagID > 0 {
		return nil, fmt.Errorf("%w: synonyms cannot be moved or used as destination", ErrInvalidTreeOperation)
	}
	if model.InSubtree(destination.PathString, source.PathString) {
		return nil, fmt.Errorf("%w: destination %d is inside the subtree of %d", ErrInvalidTreeOperation, destination.ID, source.ID)
	}

	movedRow, err := s.gateway.MoveSubtree(source, destination)
	if err != nil {
		return nil, notFound(err, sourceID)
	}
	timestamp := repository.ModificationDate(movedRow.Modified)
	if source.ParentID > 0 {
		if err := s.updateSubtreeModificationTime(source.ParentID, timestamp); err != nil {
			return nil, err
		}
	}
	if err := s.updateSubtreeModificationTime(movedRow.ID, timestamp); err != nil {
		return nil, err
	}
	return s.Load(movedRow.ID)
}

// DeleteTag 删除标签。
// 同义词只删除自身；普通标签由网关级联删除全部子孙及其同义词。
// 删除后级联旧父节点（顶级标签没有父节点则跳过），同义词额外级联其主标签。
func (s *tagService) DeleteTag(tagID int64) error {
	var deleted *model.TagRow
	err := s.inTransaction(func(tx *tagService) (err error) {
		if deleted, err = tx.basicRow(tagID); err != nil {
			return err
		}
		if err := tx.gateway.DeleteTag(deleted.ID); err != nil {
			return notFound(err, tagID)
		}
		if deleted.ParentID > 0 {
			if err := tx.updateSubtreeModificationTime(deleted.ParentID, time.Time{}); err != nil {
				return err
			}
		}
		if deleted.MainTagID > 0 {
			return tx.updateSubtreeModificationTime(deleted.MainTagID, time.Time{})
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Infow("tag deleted", "tag_id", tagID, "parent_tag_id", deleted.ParentID, "main_tag_id", deleted.MainTagID)
	return nil
}

// updateSubtreeModificationTime 更新标签及其全部祖先的修改时间，timestamp 为零值时取当前时间。
// 同义词与主标签视为同一个逻辑实体，额外更新主标签；主标签的祖先与同义词相同，已在路径中覆盖。
func (s *tagService) updateSubtreeModificationTime(tagID int64, timestamp time.Time) error {
	row, err := s.basicRow(tagID)
	if err != nil {
		return err
	}
	if timestamp.IsZero() {
		timestamp = s.now()
	}
	if err := s.gateway.UpdateSubtreeModificationTime(row.PathString, timestamp); err != nil {
		return err
	}
	if row.MainTagID > 0 {
		return s.gateway.UpdateSubtreeModificationTime(model.ChildPathString(model.RootPathString, row.MainTagID), timestamp)
	}
	return nil
}
