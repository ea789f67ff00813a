package api

import (
	"crypto/subtle"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// BasicAuth 为整个站点增加一个简单的 Basic Auth 访问密码。
// 仅当配置了 basic_auth_user / basic_auth_pass 时启用。
// /health 与 /metrics 不做认证，便于健康检查和抓取指标。
func BasicAuth(user, pass string) gin.HandlerFunc {
	const realm = "Restricted"
	uBytes := []byte(user)
	pBytes := []byte(pass)

	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/health", "/metrics":
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), uBytes) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), pBytes) != 1 {
			c.Header("WWW-Authenticate", `Basic realm="`+realm+`"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// ServeSPA 托管前端静态文件，未匹配 API 的 GET 均返回 index.html
func ServeSPA(r *gin.Engine, webRoot string) {
	assetsDir := filepath.Join(webRoot, "assets")
	indexFile := filepath.Join(webRoot, "index.html")
	r.Static("/assets", assetsDir)
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet || strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "not found"})
			return
		}
		c.File(indexFile)
	})
}
