package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OK 成功响应: 200 + {"ok":true, ...}
func OK(c *gin.Context, fields gin.H) {
	body := gin.H{"ok": true}
	for key, value := range fields {
		body[key] = value
	}
	c.JSON(http.StatusOK, body)
}

// Success 成功响应: 200 + {"success":true, "message": ...},重发类端点专用
func Success(c *gin.Context, message string, fields gin.H) {
	body := gin.H{"success": true, "message": message}
	for key, value := range fields {
		body[key] = value
	}
	c.JSON(http.StatusOK, body)
}

// Fail 错误响应: {"error": reason},HTTP 状态码承载错误类别
func Fail(c *gin.Context, status int, reason string) {
	c.JSON(status, gin.H{"error": reason})
}

// BadRequest 400 响应
func BadRequest(c *gin.Context, reason string) {
	Fail(c, http.StatusBadRequest, reason)
}

// Forbidden 403 响应
func Forbidden(c *gin.Context, reason string) {
	Fail(c, http.StatusForbidden, reason)
}

// NotFound 404 响应
func NotFound(c *gin.Context, reason string) {
	Fail(c, http.StatusNotFound, reason)
}

// TooManyRequests 429 响应
func TooManyRequests(c *gin.Context, reason string) {
	Fail(c, http.StatusTooManyRequests, reason)
}

// Internal 500 响应
func Internal(c *gin.Context, reason string) {
	Fail(c, http.StatusInternalServerError, reason)
}
