package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ha-Ezer/wecc/config"
	"github.com/ha-Ezer/wecc/internal/dto"
	"github.com/ha-Ezer/wecc/internal/model"
	"github.com/ha-Ezer/wecc/internal/repository"
	pkgerrors "github.com/ha-Ezer/wecc/pkg/errors"
	"github.com/ha-Ezer/wecc/pkg/spreadsheet"
)

// SuccessMessage 提交成功时返回给表单的文案
const SuccessMessage = "Thank you! Your information has been saved successfully."

// IntakeService 联系表单提交业务接口
//
// 流程：解析 → 校验 → 生成时间戳 → 健康检查 → 追加 → 格式化（尽力而为）
// 返回的错误均为 *errors.IntakeError，内部细节只进日志与运维通知。
type IntakeService interface {
	Submit(ctx context.Context, req *dto.IntakeRequest) (*dto.IntakeResult, error)
	Health(ctx context.Context) *model.HealthStatus
}

type intakeService struct {
	cfg       config.IntakeConfig
	repo      *repository.Repository
	formatter FormatService
	notifier  NotifyService
	logger    *zap.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewIntakeService 创建 IntakeService 实例
func NewIntakeService(
	cfg config.IntakeConfig,
	repo *repository.Repository,
	formatter FormatService,
	notifier NotifyService,
	logger *zap.Logger,
) IntakeService {
	return &intakeService{
		cfg:       cfg,
		repo:      repo,
		formatter: formatter,
		notifier:  notifier,
		logger:    logger,
		loc:       loadLocation(cfg.Timezone, logger),
		now:       time.Now,
	}
}

// ═══════════════════════════════════════════════════════════
// Submit
// ═══════════════════════════════════════════════════════════

func (s *intakeService) Submit(ctx context.Context, req *dto.IntakeRequest) (result *dto.IntakeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = s.fail(ctx, pkgerrors.New(pkgerrors.UnknownError,
				fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack()), nil))
		}
	}()

	// 1. 解析
	payload, err := ParsePayload(req.Params, req.Body)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	// 2. 校验
	if err := validatePayload(payload); err != nil {
		s.logger.Warn("提交校验失败",
			zap.String("source", payload.Source.String()),
			zap.Error(err),
		)
		return nil, err
	}

	// 3. 服务端时间戳
	sub := model.NewSubmission(payload.Name, payload.Phone, payload.Location, s.now().In(s.loc))

	// 4. 写入工作表；通知要等工作簿释放后再发，避免 SMTP 往返期间占住工作簿
	warning, err := s.persist(ctx, sub)
	if warning != "" {
		s.notifier.Notify(context.WithoutCancel(ctx), pkgerrors.RowLimitReached, warning)
	}
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.logger.Info("提交已保存",
		zap.String("source", payload.Source.String()),
		zap.String("date", sub.Date),
		zap.String("time", sub.Time),
	)

	return &dto.IntakeResult{
		Success:   true,
		Message:   SuccessMessage,
		Timestamp: sub.Timestamp(),
	}, nil
}

// persist 持有工作簿期间完成健康检查、追加与格式化
// warning 非空表示已接近容量上限，由调用方在工作簿关闭后通知
func (s *intakeService) persist(ctx context.Context, sub *model.Submission) (warning string, err error) {
	sheet, err := s.repo.Submission.Open(ctx)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.SheetUnavailable, "无法打开工作簿", err)
	}
	defer sheet.Close()

	health, warn := s.checkHealth(sheet)
	if !health.IsHealthy {
		return "", pkgerrors.New(pkgerrors.ErrorType(health.ErrorType), health.Message, nil)
	}
	if warn {
		s.logger.Warn("工作表接近容量上限", zap.Int("row_count", *health.RowCount))
		warning = health.Message
	}

	if err := sheet.Append(sub); err != nil {
		return warning, pkgerrors.New(pkgerrors.PermissionDenied, "追加行失败", err)
	}

	// 格式化失败不影响结果
	s.formatDetached(sheet)
	return warning, nil
}

// formatDetached 格式化与保存的任何错误（含 panic）只记录日志
func (s *intakeService) formatDetached(sheet repository.SubmissionSheet) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("格式化发生 panic，已忽略", zap.Any("panic", r))
		}
	}()

	if err := s.formatter.Format(sheet.Sheet()); err != nil {
		s.logger.Warn("格式化失败，已忽略", zap.Error(err))
		return
	}
	if err := sheet.Save(); err != nil {
		s.logger.Warn("保存格式化结果失败，已忽略", zap.Error(err))
	}
}

// fail 记录错误并按类型通知运维，返回分类后的错误
func (s *intakeService) fail(ctx context.Context, err error) error {
	var ie *pkgerrors.IntakeError
	if !errors.As(err, &ie) {
		ie = pkgerrors.New(pkgerrors.UnknownError, "未分类错误", err)
	}

	s.logger.Error("提交处理失败",
		zap.String("error_type", string(ie.Type)),
		zap.Error(ie),
	)

	if ie.Type.Notifiable() {
		s.notifier.Notify(context.WithoutCancel(ctx), ie.Type, ie.Error())
	}
	return ie
}

// ═══════════════════════════════════════════════════════════
// Health
// ═══════════════════════════════════════════════════════════

// Health 只读健康检查，不发送通知
func (s *intakeService) Health(ctx context.Context) *model.HealthStatus {
	sheet, err := s.repo.Submission.Open(ctx)
	if err != nil {
		s.logger.Warn("健康检查无法打开工作簿", zap.Error(err))
		return &model.HealthStatus{
			IsHealthy: false,
			Message:   "Spreadsheet is not accessible",
			ErrorType: string(pkgerrors.SheetUnavailable),
		}
	}
	defer sheet.Close()

	health, _ := s.checkHealth(sheet)
	return health
}

// checkHealth 根据数据行数判断容量；warn 表示达到预警线但仍可写入
func (s *intakeService) checkHealth(sheet repository.SubmissionSheet) (*model.HealthStatus, bool) {
	count, err := sheet.RowCount()
	if err != nil {
		return &model.HealthStatus{
			IsHealthy: false,
			Message:   "Unable to read spreadsheet: " + err.Error(),
			ErrorType: string(pkgerrors.SheetUnavailable),
		}, false
	}

	if count >= s.cfg.MaxRows {
		return &model.HealthStatus{
			IsHealthy: false,
			Message:   fmt.Sprintf("Spreadsheet has reached its row limit (%d/%d rows)", count, s.cfg.MaxRows),
			ErrorType: string(pkgerrors.RowLimitReached),
			RowCount:  &count,
		}, false
	}

	if count >= s.cfg.WarnThreshold() {
		return &model.HealthStatus{
			IsHealthy: true,
			Message:   fmt.Sprintf("Spreadsheet is approaching its row limit (%d/%d rows)", count, s.cfg.MaxRows),
			RowCount:  &count,
		}, true
	}

	return &model.HealthStatus{
		IsHealthy: true,
		Message:   "Spreadsheet is healthy",
		RowCount:  &count,
	}, false
}

// ── 校验 ──

// validatePayload 三个字段去空白后必须非空，且不超过单元格容量（否则存储会静默截断）
func validatePayload(p *Payload) error {
	var missing, tooLong []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{fieldName, p.Name},
		{fieldPhone, p.Phone},
		{fieldLocation, p.Location},
	} {
		v := strings.TrimSpace(f.value)
		switch {
		case v == "":
			missing = append(missing, f.name)
		case utf8.RuneCountInString(v) > spreadsheet.MaxCellChars:
			tooLong = append(tooLong, f.name)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.ValidationError, "缺少必填字段: "+strings.Join(missing, ", "), nil)
	}
	if len(tooLong) > 0 {
		return pkgerrors.New(pkgerrors.ValidationError,
			fmt.Sprintf("字段超过 %d 个字符: %s", spreadsheet.MaxCellChars, strings.Join(tooLong, ", ")), nil)
	}
	return nil
}
