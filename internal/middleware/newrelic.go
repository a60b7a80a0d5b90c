package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// TransactionAttributes tags the New Relic transaction started by nrgin with the caller and the
// ride and request being acted on. It must run after Auth.
func TransactionAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if actor, ok := ActorFrom(c); ok {
			txn.AddAttribute("actor_id", actor.UserID)
			txn.AddAttribute("actor_role", string(actor.Role))
		}
		if rideID := c.Param("id"); rideID != "" {
			txn.AddAttribute("ride_id", rideID)
		}
		if requestID := c.Param("requestId"); requestID != "" {
			txn.AddAttribute("request_id", requestID)
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
