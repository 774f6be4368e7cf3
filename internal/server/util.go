package server

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	return strings.TrimRight(bp, "/")
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

// validCompletionBody accepts any JSON object. Field-level schema checks
// belong to the worker; the gateway only refuses bodies it could never
// relay meaningfully.
func validCompletionBody(b []byte) bool {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || t[0] != '{' {
		return false
	}
	return json.Valid(t)
}
