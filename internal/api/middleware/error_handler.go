package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tuns2000/Campusfix-sub000/internal/validation"
	pkgerrors "github.com/Tuns2000/Campusfix-sub000/pkg/errors"
	"github.com/Tuns2000/Campusfix-sub000/pkg/response"
)

const msgBodyTooLarge = "Слишком большой размер запроса"

// ErrorHandler 统一错误出口
// Handler 只调用 c.Error(err) 并返回，响应格式在此处决定：
//   - *AppError → 按 Kind 映射状态码
//   - 请求体超限 → 413
//   - 参数校验 / JSON 解析错误 → 400，列出全部字段
//   - 其余 → 500，细节只写日志
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := pkgerrors.As(err); ok {
			response.AppError(c, appErr)
			return
		}

		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}

		if fields, ok := validation.Translate(err); ok {
			response.ValidationError(c, validation.MsgInvalidInput, fields)
			return
		}

		logger.Error("未处理的服务端错误",
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		response.InternalError(c)
	}
}
