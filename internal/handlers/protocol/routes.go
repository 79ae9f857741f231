package protocol

import (
	"seller-gateway/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Actions is the inbound surface of the gateway. Every action gets the
// same envelope treatment; only the registered processor differs.
var Actions = []string{
	"search",
	"select",
	"init",
	"confirm",
	"status",
	"track",
	"cancel",
	"update",
}

// RegisterRoutes mounts one POST route per protocol action on the group.
func RegisterRoutes(
	group *gin.RouterGroup,
	idempotency IdempotencyService,
	queue CallbackEnqueuer,
	auditor AuditLogger,
	protocolCfg config.ProtocolConfig,
	defaultTTLSeconds int,
	logger *zap.Logger,
) {
	for _, action := range Actions {
		handler := NewActionHandler(action, idempotency, queue, auditor, protocolCfg, defaultTTLSeconds, logger)
		group.POST("/"+action, handler.Handle)
	}
}
