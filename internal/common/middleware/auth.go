package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"receipts-bot/internal/common/errors"
)

const (
	// InitDataHeader carries the raw Mini App init-data string.
	InitDataHeader  = "X-Telegram-Init-Data"
	TelegramUserKey = "user"
)

// InitData validates Telegram Mini App init-data signed with the bot token and
// stores the operator in the context. expIn == 0 disables the age check.
func InitData(token string, expIn time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			AbortWithError(c, errors.New(errors.ErrCodeInternal, "init-data validation is not configured"))
			return
		}

		raw := c.GetHeader(InitDataHeader)
		if raw == "" {
			raw = c.Query("init_data")
		}
		if raw == "" {
			AbortWithError(c, errors.NewUnauthorizedError("missing init_data"))
			return
		}

		if err := initdata.Validate(raw, token, expIn); err != nil {
			AbortWithError(c, errors.Wrap(err, errors.ErrCodeUnauthorized, "Unauthorized: invalid init_data"))
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil {
			AbortWithError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid init_data format"))
			return
		}
		if parsed.User.ID == 0 {
			AbortWithError(c, errors.NewUnauthorizedError("init_data has no user"))
			return
		}

		c.Set(TelegramUserKey, parsed.User)
		c.Set(UserIDKey, parsed.User.ID)
		c.Next()
	}
}

// RequireAdmin lets through only operators accepted by isAdmin. It must run after InitData.
func RequireAdmin(isAdmin func(int64) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := getUserID(c)
		if userID == 0 {
			AbortWithError(c, errors.NewUnauthorizedError("Telegram Init Data required"))
			return
		}
		if !isAdmin(userID) {
			AbortWithError(c, errors.NewForbiddenError("admin access required").WithUserID(userID))
			return
		}
		c.Next()
	}
}
