package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"balance-ledger/internal/core/domain"
	"balance-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxAuditAction   = "audit_action"
	ctxAuditResource = "audit_resource"
)

// SetAudit lets a handler name the audited action and the resource it produced.
// A non-empty action overrides the route-based mapping.
func SetAudit(c *gin.Context, action domain.AuditAction, resourceID string) {
	c.Set(ctxAuditAction, action)
	c.Set(ctxAuditResource, resourceID)
}

// AuditLog creates an audit middleware that logs successful write operations.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method != http.MethodPost {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath())
		if a, ok := c.Get(ctxAuditAction); ok && a != domain.AuditAction("") {
			action = a.(domain.AuditAction)
		}
		if action == "" {
			return
		}

		var userID *uuid.UUID
		if id, ok := UserID(c); ok {
			userID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.GetString(ctxAuditResource),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}

func mapPathToAction(route string) (domain.AuditAction, string) {
	switch route {
	case "/api/v1/auth/signup":
		return domain.AuditActionSignup, "user"
	case "/api/v1/auth/login":
		return domain.AuditActionLogin, "session"
	case "/api/v1/transactions":
		return "", "transaction"
	}
	return "", ""
}
