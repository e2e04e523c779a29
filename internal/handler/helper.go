package handler

import (
	"errors"
	"net/http"
	"strconv"

	"knowhub_tags/internal/service"

	"github.com/gin-gonic/gin"
)

// mapServiceError 把 Service 层哨兵错误转换为 HTTP 状态码和对外消息。
// Handler 不必散落大量 if/else 判断，对外返回口径也保持稳定。
func mapServiceError(err error) (httpStatus int, message string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "Invalid request parameters"
	case errors.Is(err, service.ErrTagNotFound):
		return http.StatusNotFound, "Tag not found"
	case errors.Is(err, service.ErrTagAlreadyExists):
		return http.StatusConflict, "Tag already exists"
	case errors.Is(err, service.ErrTagHasChildren):
		return http.StatusConflict, "Tag has child nodes"
	case errors.Is(err, service.ErrInvalidTreeOperation):
		return http.StatusConflict, "Invalid tree operation"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func writeError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
	})
}

func writeServiceError(c *gin.Context, err error) {
	status, msg := mapServiceError(err)
	writeError(c, status, msg)
}

// parseTagID 读取路径参数 id，非法时直接写 400 并返回 false
func parseTagID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "Invalid tag id")
		return 0, false
	}
	return id, true
}

// parsePage 读取 offset/limit 查询参数，limit 缺省为 -1（不限制）
func parsePage(c *gin.Context) (offset, limit int, ok bool) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid offset")
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "-1"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "Invalid limit")
		return 0, 0, false
	}
	return offset, limit, true
}
