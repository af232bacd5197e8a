package handler

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ha-Ezer/wecc/internal/dto"
	"github.com/ha-Ezer/wecc/internal/service"
	pkgerrors "github.com/ha-Ezer/wecc/pkg/errors"
	"github.com/ha-Ezer/wecc/pkg/response"
)

// 返回给表单的文案（内部细节只进日志与运维通知）
const (
	MsgParseError      = "Invalid data format. Please try again."
	MsgValidationError = "Please fill in all required fields (name, phone, location)."
	MsgGenericError    = "Unable to save your information. Please try again later."
	MsgServiceRunning  = "WECC contact form service is running."
)

// IntakeHandler 联系表单 HTTP 处理器
type IntakeHandler struct {
	intakeSvc service.IntakeService
	logger    *zap.Logger
}

// NewIntakeHandler 创建 IntakeHandler
func NewIntakeHandler(intakeSvc service.IntakeService, logger *zap.Logger) *IntakeHandler {
	return &IntakeHandler{intakeSvc: intakeSvc, logger: logger}
}

// Submit 提交联系表单
// POST /
//
// 请求体可以是表单参数、JSON 或原始 URL 编码文本
func (h *IntakeHandler) Submit(c *gin.Context) {
	body, err := h.readBody(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			// 交给 BodyLimit 中间件写 413
			_ = c.Error(err)
			return
		}
		h.logger.Warn("读取请求体失败",
			zap.String("request_id", GetRequestID(c)),
			zap.Error(err),
		)
		response.BadRequest(c, MsgParseError)
		return
	}

	// 表单编码的请求体会进入 Form；解析失败时保留已解析的部分，原始请求体仍交给服务层
	if err := c.Request.ParseForm(); err != nil {
		h.logger.Debug("表单参数解析失败，回退到请求体解析",
			zap.String("request_id", GetRequestID(c)),
			zap.Error(err),
		)
	}

	result, err := h.intakeSvc.Submit(c.Request.Context(), &dto.IntakeRequest{
		Params: c.Request.Form,
		Body:   body,
	})
	if err != nil {
		h.handleIntakeError(c, err)
		return
	}

	response.Success(c, result.Message, result.Timestamp)
}

// Index 服务探活
// GET /
func (h *IntakeHandler) Index(c *gin.Context) {
	response.OK(c, MsgServiceRunning)
}

// Health 表格容量健康检查（只读，不发送通知）
// GET /health
func (h *IntakeHandler) Health(c *gin.Context) {
	status := h.intakeSvc.Health(c.Request.Context())
	if !status.IsHealthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// readBody 读取完整请求体并放回，供 ParseForm 再次读取
func (h *IntakeHandler) readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// handleIntakeError 将业务错误映射为 HTTP 响应
func (h *IntakeHandler) handleIntakeError(c *gin.Context, err error) {
	switch pkgerrors.TypeOf(err) {
	case pkgerrors.DataParseError:
		response.BadRequest(c, MsgParseError)
	case pkgerrors.ValidationError:
		response.BadRequest(c, MsgValidationError)
	case pkgerrors.SheetUnavailable, pkgerrors.RowLimitReached:
		response.ServiceUnavailable(c, MsgGenericError)
	default:
		response.InternalError(c, MsgGenericError)
	}
}
