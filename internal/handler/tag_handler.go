package handler

import (
	"net/http"
	"strings"

	"knowhub_tags/internal/model"
	"knowhub_tags/internal/service"
	"knowhub_tags/pkg/log"

	"github.com/gin-gonic/gin"
)

// TagHandler 负责标签树管理接口。
type TagHandler struct {
	tagService service.TagService
	// alwaysAvailable 请求体未给出 alwaysAvailable 时创建标签使用的默认值
	alwaysAvailable bool
}

func NewTagHandler(tagService service.TagService, alwaysAvailable bool) *TagHandler {
	return &TagHandler{tagService: tagService, alwaysAvailable: alwaysAvailable}
}

// RegisterRoutes 把标签接口挂到 r 上（通常是 /api/v1）
func (h *TagHandler) RegisterRoutes(r gin.IRouter) {
	tags := r.Group("/tags")
	tags.POST("", h.Create)
	tags.GET("/search", h.Search)
	tags.GET("/remote/:remoteId", h.GetByRemoteID)
	tags.GET("/url/*url", h.GetByURL)
	tags.GET("/:id", h.Get)
	tags.PUT("/:id", h.Update)
	tags.DELETE("/:id", h.Delete)
	tags.GET("/:id/children", h.Children)
	tags.GET("/:id/synonyms", h.Synonyms)
	tags.POST("/:id/synonyms", h.AddSynonym)
	tags.GET("/:id/tree", h.Tree)
	tags.GET("/:id/content", h.RelatedContent)
	tags.POST("/:id/content", h.AddRelatedContent)
	tags.POST("/:id/convert", h.ConvertToSynonym)
	tags.POST("/:id/merge", h.Merge)
	tags.POST("/:id/copy", h.Copy)
	tags.POST("/:id/move", h.Move)
}

// CreateTagRequest 是创建标签的请求体。
// alwaysAvailable 使用指针以区分“没传该字段”和“显式传 false”。
type CreateTagRequest struct {
	ParentTagID      int64             `json:"parentTagId"`
	MainLanguageCode string            `json:"mainLanguageCode"`
	Keywords         map[string]string `json:"keywords" binding:"required"`
	RemoteID         string            `json:"remoteId"`
	AlwaysAvailable  *bool             `json:"alwaysAvailable"`
}

// UpdateTagRequest 是更新标签的请求体，remoteId 留空表示保持不变。
type UpdateTagRequest struct {
	MainLanguageCode string            `json:"mainLanguageCode"`
	Keywords         map[string]string `json:"keywords" binding:"required"`
	RemoteID         string            `json:"remoteId"`
	AlwaysAvailable  *bool             `json:"alwaysAvailable"`
}

type AddRelatedContentRequest struct {
	ContentID int64 `json:"contentId" binding:"required"`
	FieldID   int64 `json:"fieldId"`
}

type ConvertToSynonymRequest struct {
	MainTagID int64 `json:"mainTagId" binding:"required"`
}

type MergeRequest struct {
	TargetTagID int64 `json:"targetTagId" binding:"required"`
}

// TreeOperationRequest 是复制与移动子树共用的请求体。
type TreeOperationRequest struct {
	DestinationParentID int64 `json:"destinationParentId" binding:"required"`
}

func (h *TagHandler) availability(v *bool) bool {
	if v == nil {
		return h.alwaysAvailable
	}
	return *v
}

// Create 创建标签。
func (h *TagHandler) Create(c *gin.Context) {
	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	tag, err := h.tagService.Create(model.CreateStruct{
		ParentTagID:      req.ParentTagID,
		MainLanguageCode: req.MainLanguageCode,
		Keywords:         req.Keywords,
		RemoteID:         req.RemoteID,
		AlwaysAvailable:  h.availability(req.AlwaysAvailable),
	})
	if err != nil {
		log.Warnf("TagHandler.Create: failed to create tag: %v", err)
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Tag created successfully",
		"data":    tag,
	})
}

// Get 加载标签，lang 查询参数为逗号分隔的语言列表，为空表示全部语言。
func (h *TagHandler) Get(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}

	var translations []string
	for _, lang := range strings.Split(c.Query("lang"), ",") {
		if lang = strings.TrimSpace(lang); lang != "" {
			translations = append(translations, lang)
		}
	}

	tag, err := h.tagService.Load(tagID, translations...)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag retrieved successfully",
		"data":    tag,
	})
}

func (h *TagHandler) GetByRemoteID(c *gin.Context) {
	tag, err := h.tagService.LoadByRemoteID(c.Param("remoteId"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag retrieved successfully",
		"data":    tag,
	})
}

// GetByURL 按关键字路径加载，例如 /tags/url/Cities/Paris
func (h *TagHandler) GetByURL(c *gin.Context) {
	tag, err := h.tagService.LoadByURL(c.Param("url"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag retrieved successfully",
		"data":    tag,
	})
}

// Update 更新标签；未给出 alwaysAvailable 时保持原值。
func (h *TagHandler) Update(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}

	var req UpdateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	var alwaysAvailable bool
	if req.AlwaysAvailable != nil {
		alwaysAvailable = *req.AlwaysAvailable
	} else {
		current, err := h.tagService.LoadTagInfo(tagID)
		if err != nil {
			writeServiceError(c, err)
			return
		}
		alwaysAvailable = current.AlwaysAvailable
	}

	tag, err := h.tagService.Update(model.UpdateStruct{
		MainLanguageCode: req.MainLanguageCode,
		Keywords:         req.Keywords,
		RemoteID:         req.RemoteID,
		AlwaysAvailable:  alwaysAvailable,
	}, tagID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag updated successfully",
		"data":    tag,
	})
}

// Delete 删除标签及其整棵子树。
func (h *TagHandler) Delete(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	if err := h.tagService.DeleteTag(tagID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag deleted successfully",
	})
}

func (h *TagHandler) Children(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	offset, limit, ok := parsePage(c)
	if !ok {
		return
	}

	children, err := h.tagService.LoadChildren(tagID, offset, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	total, err := h.tagService.GetChildrenCount(tagID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Children retrieved successfully",
		"data":    gin.H{"items": children, "total": total},
	})
}

func (h *TagHandler) Synonyms(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	offset, limit, ok := parsePage(c)
	if !ok {
		return
	}

	synonyms, err := h.tagService.LoadSynonyms(tagID, offset, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	total, err := h.tagService.GetSynonymCount(tagID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Synonyms retrieved successfully",
		"data":    gin.H{"items": synonyms, "total": total},
	})
}

// AddSynonym 为路径中的标签创建同义词。
func (h *TagHandler) AddSynonym(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	var req CreateTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	synonym, err := h.tagService.AddSynonym(model.SynonymCreateStruct{
		MainTagID:        tagID,
		MainLanguageCode: req.MainLanguageCode,
		Keywords:         req.Keywords,
		RemoteID:         req.RemoteID,
		AlwaysAvailable:  h.availability(req.AlwaysAvailable),
	})
	if err != nil {
		log.Warnf("TagHandler.AddSynonym: failed to add synonym to %d: %v", tagID, err)
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Synonym created successfully",
		"data":    synonym,
	})
}

// Tree 返回以该标签为根的子树。
func (h *TagHandler) Tree(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	tree, err := h.tagService.LoadSubtree(tagID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag tree retrieved successfully",
		"data":    tree,
	})
}

func (h *TagHandler) RelatedContent(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	offset, limit, ok := parsePage(c)
	if !ok {
		return
	}

	ids, err := h.tagService.LoadRelatedContentIDs(tagID, offset, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	total, err := h.tagService.GetRelatedContentCount(tagID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Related content retrieved successfully",
		"data":    gin.H{"items": ids, "total": total},
	})
}

func (h *TagHandler) AddRelatedContent(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	var req AddRelatedContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.tagService.AddRelatedContent(tagID, req.ContentID, req.FieldID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Related content added successfully",
	})
}

func (h *TagHandler) ConvertToSynonym(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	var req ConvertToSynonymRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	tag, err := h.tagService.ConvertToSynonym(tagID, req.MainTagID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tag converted to synonym successfully",
		"data":    tag,
	})
}

// Merge 把路径中的标签合并进 targetTagId，操作不可逆。
func (h *TagHandler) Merge(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.tagService.Merge(tagID, req.TargetTagID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tags merged successfully",
	})
}

func (h *TagHandler) Copy(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	var req TreeOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	copied, err := h.tagService.CopySubtree(tagID, req.DestinationParentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "Subtree copied successfully",
		"data":    copied,
	})
}

func (h *TagHandler) Move(c *gin.Context) {
	tagID, ok := parseTagID(c)
	if !ok {
		return
	}
	var req TreeOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	moved, err := h.tagService.MoveSubtree(tagID, req.DestinationParentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Subtree moved successfully",
		"data":    moved,
	})
}

// Search 按任一语言的关键字精确查找标签。
func (h *TagHandler) Search(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		writeError(c, http.StatusBadRequest, "Missing keyword")
		return
	}
	offset, limit, ok := parsePage(c)
	if !ok {
		return
	}

	tags, err := h.tagService.LoadTagsByKeyword(keyword, offset, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	total, err := h.tagService.GetTagsByKeywordCount(keyword)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "Tags retrieved successfully",
		"data":    gin.H{"items": tags, "total": total},
	})
}
