package service

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"

	"knowhub_tags/internal/model"
	"knowhub_tags/internal/repository"

	"gorm.io/gorm"
)

var errInsertFailed = errors.New("insert failed")

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type sequenceRemoteIDs struct {
	n int
}

func (g *sequenceRemoteIDs) NewRemoteID() string {
	g.n++
	return fmt.Sprintf("remote-%d", g.n)
}

type fakeTag struct {
	row      model.TagRow
	keywords map[string]string
}

// fakeTagGateway 是内存版的 TagGateway，路径维护规则与 GORM 实现一致，
// Transaction 在 fn 失败时恢复快照以模拟回滚。
type fakeTagGateway struct {
	tags         map[int64]*fakeTag
	links        []model.TagAttributeLinkRow
	nextID       int64
	nextLinkID   int64
	now          func() time.Time
	transactions int

	creates      int
	failCreateAt int
}

var _ repository.TagGateway = (*fakeTagGateway)(nil)

func newFakeTagGateway(now func() time.Time) *fakeTagGateway {
	return &fakeTagGateway{tags: map[int64]*fakeTag{}, now: now}
}

type fakeState struct {
	tags       map[int64]*fakeTag
	links      []model.TagAttributeLinkRow
	nextID     int64
	nextLinkID int64
}

func (f *fakeTagGateway) snapshot() fakeState {
	tags := make(map[int64]*fakeTag, len(f.tags))
	for id, t := range f.tags {
		tags[id] = &fakeTag{row: t.row, keywords: maps.Clone(t.keywords)}
	}
	return fakeState{
		tags:       tags,
		links:      append([]model.TagAttributeLinkRow(nil), f.links...),
		nextID:     f.nextID,
		nextLinkID: f.nextLinkID,
	}
}

func (f *fakeTagGateway) restore(s fakeState) {
	f.tags, f.links, f.nextID, f.nextLinkID = s.tags, s.links, s.nextID, s.nextLinkID
}

func (f *fakeTagGateway) fullRows(t *fakeTag, translations []string) []model.TagFullRow {
	locales := make([]string, 0, len(t.keywords))
	for locale := range t.keywords {
		if len(translations) == 0 || contains(translations, locale) {
			locales = append(locales, locale)
		}
	}
	sort.Strings(locales)

	rows := make([]model.TagFullRow, 0, len(locales))
	for _, locale := range locales {
		rows = append(rows, model.TagFullRow{TagRow: t.row, Locale: locale, TranslatedKeyword: t.keywords[locale]})
	}
	return rows
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

func (f *fakeTagGateway) filter(match func(*fakeTag) bool) []*fakeTag {
	out := make([]*fakeTag, 0)
	for _, t := range f.tags {
		if match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].row.Keyword != out[j].row.Keyword {
			return out[i].row.Keyword < out[j].row.Keyword
		}
		return out[i].row.ID < out[j].row.ID
	})
	return out
}

func pageOf[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (f *fakeTagGateway) pagedRows(tags []*fakeTag, offset, limit int) []model.TagFullRow {
	rows := []model.TagFullRow{}
	for _, t := range pageOf(tags, offset, limit) {
		rows = append(rows, f.fullRows(t, nil)...)
	}
	return rows
}

func (f *fakeTagGateway) GetBasicTagData(tagID int64) (*model.TagRow, error) {
	t, ok := f.tags[tagID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	row := t.row
	return &row, nil
}

func (f *fakeTagGateway) GetBasicTagDataByRemoteID(remoteID string) (*model.TagRow, error) {
	for _, t := range f.tags {
		if t.row.RemoteID == remoteID {
			row := t.row
			return &row, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeTagGateway) GetBasicTagDataByURL(url string) (*model.TagRow, error) {
	var current *model.TagRow
	var parentID int64
	for _, keyword := range strings.Split(strings.Trim(url, "/"), "/") {
		if keyword == "" {
			continue
		}
		found := f.filter(func(t *fakeTag) bool {
			return t.row.ParentID == parentID && t.row.MainTagID == 0 && t.row.Keyword == keyword
		})
		if len(found) == 0 {
			return nil, gorm.ErrRecordNotFound
		}
		row := found[0].row
		current = &row
		parentID = row.ID
	}
	if current == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return current, nil
}

func (f *fakeTagGateway) GetFullTagData(tagID int64, translations []string) ([]model.TagFullRow, error) {
	t, ok := f.tags[tagID]
	if !ok {
		return []model.TagFullRow{}, nil
	}
	return f.fullRows(t, translations), nil
}

func (f *fakeTagGateway) GetFullTagDataByRemoteID(remoteID string, translations []string) ([]model.TagFullRow, error) {
	for _, t := range f.tags {
		if t.row.RemoteID == remoteID {
			return f.fullRows(t, translations), nil
		}
	}
	return []model.TagFullRow{}, nil
}

func (f *fakeTagGateway) children(tagID int64) []*fakeTag {
	return f.filter(func(t *fakeTag) bool { return t.row.ParentID == tagID && t.row.MainTagID == 0 })
}

func (f *fakeTagGateway) GetChildren(tagID int64, offset, limit int) ([]model.TagFullRow, error) {
	return f.pagedRows(f.children(tagID), offset, limit), nil
}

func (f *fakeTagGateway) GetChildrenCount(tagID int64) (int64, error) {
	return int64(len(f.children(tagID))), nil
}

func (f *fakeTagGateway) byKeyword(keyword string) []*fakeTag {
	return f.filter(func(t *fakeTag) bool {
		for _, k := range t.keywords {
			if k == keyword {
				return true
			}
		}
		return false
	})
}

func (f *fakeTagGateway) GetTagsByKeyword(keyword string, offset, limit int) ([]model.TagFullRow, error) {
	return f.pagedRows(f.byKeyword(keyword), offset, limit), nil
}

func (f *fakeTagGateway) GetTagsByKeywordCount(keyword string) (int64, error) {
	return int64(len(f.byKeyword(keyword))), nil
}

func (f *fakeTagGateway) synonyms(tagID int64) []*fakeTag {
	return f.filter(func(t *fakeTag) bool { return t.row.MainTagID == tagID })
}

func (f *fakeTagGateway) GetSynonyms(tagID int64, offset, limit int) ([]model.TagFullRow, error) {
	return f.pagedRows(f.synonyms(tagID), offset, limit), nil
}

func (f *fakeTagGateway) GetSynonymCount(tagID int64) (int64, error) {
	return int64(len(f.synonyms(tagID))), nil
}

func (f *fakeTagGateway) relatedContentIDs(tagID int64) []int64 {
	seen := map[int64]struct{}{}
	ids := []int64{}
	for _, l := range f.links {
		if l.TagID != tagID {
			continue
		}
		if _, ok := seen[l.ContentID]; !ok {
			seen[l.ContentID] = struct{}{}
			ids = append(ids, l.ContentID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeTagGateway) GetRelatedContentIDs(tagID int64, offset, limit int) ([]int64, error) {
	return pageOf(f.relatedContentIDs(tagID), offset, limit), nil
}

func (f *fakeTagGateway) GetRelatedContentCount(tagID int64) (int64, error) {
	return int64(len(f.relatedContentIDs(tagID))), nil
}

func (f *fakeTagGateway) GetSubtree(pathString string) ([]model.TagFullRow, error) {
	ids := model.PathIDs(pathString)
	if len(ids) == 0 {
		return []model.TagFullRow{}, nil
	}
	rootID := ids[len(ids)-1]
	tags := f.filter(func(t *fakeTag) bool {
		return strings.HasPrefix(t.row.PathString, pathString) || t.row.MainTagID == rootID
	})
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].row.Depth < tags[j].row.Depth })
	rows := []model.TagFullRow{}
	for _, t := range tags {
		rows = append(rows, f.fullRows(t, nil)...)
	}
	return rows, nil
}

func (f *fakeTagGateway) insert(row model.TagRow, parentPath string, keywords map[string]string) int64 {
	f.nextID++
	row.ID = f.nextID
	row.PathString = model.ChildPathString(parentPath, row.ID)
	row.Modified = f.now().Unix()
	f.tags[row.ID] = &fakeTag{row: row, keywords: maps.Clone(keywords)}
	return row.ID
}

func (f *fakeTagGateway) Create(createStruct model.CreateStruct, parent *model.TagRow) (int64, error) {
	f.creates++
	if f.failCreateAt > 0 && f.creates == f.failCreateAt {
		return 0, errInsertFailed
	}
	row := model.TagRow{
		Keyword:          createStruct.Keywords[createStruct.MainLanguageCode],
		Depth:            1,
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
	return f.insert(row, parentPath, createStruct.Keywords), nil
}

func (f *fakeTagGateway) Update(updateStruct model.UpdateStruct, tagID int64) error {
	t, ok := f.tags[tagID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.row.Keyword = updateStruct.Keywords[updateStruct.MainLanguageCode]
	t.row.RemoteID = updateStruct.RemoteID
	t.row.MainLanguageCode = updateStruct.MainLanguageCode
	t.row.AlwaysAvailable = updateStruct.AlwaysAvailable
	t.row.Modified = f.now().Unix()
	t.keywords = maps.Clone(updateStruct.Keywords)
	return nil
}

func (f *fakeTagGateway) CreateSynonym(createStruct model.SynonymCreateStruct, mainTag *model.TagRow) (int64, error) {
	row := model.TagRow{
		ParentID:         mainTag.ParentID,
		MainTagID:        mainTag.ID,
		Keyword:          createStruct.Keywords[createStruct.MainLanguageCode],
		Depth:            mainTag.Depth,
		RemoteID:         createStruct.RemoteID,
		MainLanguageCode: createStruct.MainLanguageCode,
		AlwaysAvailable:  createStruct.AlwaysAvailable,
	}
	return f.insert(row, model.ParentPathString(mainTag.PathString), createStruct.Keywords), nil
}

func (f *fakeTagGateway) attachToMainTag(tagID int64, mainTag *model.TagRow) error {
	t, ok := f.tags[tagID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	t.row.ParentID = mainTag.ParentID
	t.row.MainTagID = mainTag.ID
	t.row.Depth = mainTag.Depth
	t.row.PathString = model.ChildPathString(model.ParentPathString(mainTag.PathString), tagID)
	t.row.Modified = f.now().Unix()
	return nil
}

func (f *fakeTagGateway) ConvertToSynonym(tagID int64, mainTag *model.TagRow) error {
	return f.attachToMainTag(tagID, mainTag)
}

func (f *fakeTagGateway) MoveSynonym(synonymID int64, mainTag *model.TagRow) error {
	return f.attachToMainTag(synonymID, mainTag)
}

func (f *fakeTagGateway) MoveSubtree(source, destinationParent *model.TagRow) (*model.TagRow, error) {
	oldParentPath := model.ParentPathString(source.PathString)
	depthDelta := destinationParent.Depth + 1 - source.Depth
	for _, t := range f.tags {
		if strings.HasPrefix(t.row.PathString, source.PathString) || t.row.MainTagID == source.ID {
			t.row.Depth += depthDelta
			t.row.PathString = destinationParent.PathString + t.row.PathString[len(oldParentPath):]
		}
		if t.row.ID == source.ID || t.row.MainTagID == source.ID {
			t.row.ParentID = destinationParent.ID
			t.row.Modified = f.now().Unix()
		}
	}
	return f.GetBasicTagData(source.ID)
}

func (f *fakeTagGateway) DeleteTag(tagID int64) error {
	current, ok := f.tags[tagID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	path, id := current.row.PathString, current.row.ID
	removed := map[int64]struct{}{}
	for tid, t := range f.tags {
		if strings.HasPrefix(t.row.PathString, path) || t.row.MainTagID == id {
			removed[tid] = struct{}{}
		}
	}
	for tid := range removed {
		delete(f.tags, tid)
	}
	links := f.links[:0]
	for _, l := range f.links {
		if _, ok := removed[l.TagID]; !ok {
			links = append(links, l)
		}
	}
	f.links = links
	return nil
}

func (f *fakeTagGateway) TransferTagAttributeLinks(fromTagID, toTagID int64) error {
	taken := map[[2]int64]struct{}{}
	for _, l := range f.links {
		if l.TagID == toTagID {
			taken[[2]int64{l.ContentID, l.FieldID}] = struct{}{}
		}
	}
	links := make([]model.TagAttributeLinkRow, 0, len(f.links))
	for _, l := range f.links {
		if l.TagID == fromTagID {
			key := [2]int64{l.ContentID, l.FieldID}
			if _, dup := taken[key]; dup {
				continue
			}
			taken[key] = struct{}{}
			l.TagID = toTagID
		}
		links = append(links, l)
	}
	f.links = links
	return nil
}

func (f *fakeTagGateway) CreateTagAttributeLink(link *model.TagAttributeLinkRow) error {
	for _, l := range f.links {
		if l.TagID == link.TagID && l.ContentID == link.ContentID && l.FieldID == link.FieldID {
			*link = l
			return nil
		}
	}
	f.nextLinkID++
	link.ID = f.nextLinkID
	f.links = append(f.links, *link)
	return nil
}

func (f *fakeTagGateway) UpdateSubtreeModificationTime(pathString string, timestamp time.Time) error {
	ts := timestamp.Unix()
	for _, id := range model.PathIDs(pathString) {
		if t, ok := f.tags[id]; ok && t.row.Modified < ts {
			t.row.Modified = ts
		}
	}
	return nil
}

func (f *fakeTagGateway) Transaction(fn func(repository.TagGateway) error) error {
	f.transactions++
	state := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(state)
		return err
	}
	return nil
}
