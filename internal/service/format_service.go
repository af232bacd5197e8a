package service

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ha-Ezer/wecc/config"
	"github.com/ha-Ezer/wecc/internal/model"
	"github.com/ha-Ezer/wecc/pkg/spreadsheet"
)

// FormatService 工作表外观整理接口
//
// 设计说明：
//   - 先按 日期、时间 升序稳定排序，再按行号奇偶着色，重复执行结果不变
//   - 表头冻结并使用独立样式
//   - 姓名/电话/地点左对齐，日期/时间居中
type FormatService interface {
	Format(sheet spreadsheet.Sheet) error
}

type formatService struct {
	cfg    config.IntakeConfig
	logger *zap.Logger
}

// NewFormatService 创建 FormatService 实例
func NewFormatService(cfg config.IntakeConfig, logger *zap.Logger) FormatService {
	return &formatService{cfg: cfg, logger: logger}
}

func (s *formatService) Format(sheet spreadsheet.Sheet) error {
	lastRow, err := sheet.LastRow()
	if err != nil {
		return fmt.Errorf("读取行数失败: %w", err)
	}
	if lastRow == 0 {
		return nil
	}
	lastCol, err := sheet.LastColumn()
	if err != nil {
		return fmt.Errorf("读取列数失败: %w", err)
	}
	if lastCol < len(model.SheetHeader) {
		lastCol = len(model.SheetHeader)
	}

	dataRows := lastRow - 1
	palette := s.cfg.Palette

	// 1. 排序（最早的在前）
	if dataRows > 1 {
		rng := spreadsheet.Range{Row: 2, Col: 1, NumRows: dataRows, NumCols: lastCol}
		if err := sheet.Sort(rng,
			spreadsheet.SortKey{Column: model.ColDate, Ascending: true},
			spreadsheet.SortKey{Column: model.ColTime, Ascending: true},
		); err != nil {
			return fmt.Errorf("排序失败: %w", err)
		}
	}

	// 2. 表头
	if err := sheet.FreezeRows(1); err != nil {
		return fmt.Errorf("冻结表头失败: %w", err)
	}
	header := spreadsheet.CellStyle{
		Background:  palette.HeaderBackground,
		FontColor:   palette.HeaderText,
		Bold:        true,
		FontSize:    s.cfg.HeaderFontSize,
		BorderColor: palette.Border,
		Align:       spreadsheet.AlignCenter,
	}
	if err := sheet.ApplyStyle(spreadsheet.Range{Row: 1, Col: 1, NumRows: 1, NumCols: lastCol}, header); err != nil {
		return fmt.Errorf("设置表头样式失败: %w", err)
	}

	// 3. 数据行：奇偶底色 + 边框 + 对齐
	for row := 2; row <= lastRow; row++ {
		bg := palette.OddRow
		if row%2 == 0 {
			bg = palette.EvenRow
		}
		left := spreadsheet.CellStyle{Background: bg, BorderColor: palette.Border, Align: spreadsheet.AlignLeft}
		center := left
		center.Align = spreadsheet.AlignCenter

		textCols := model.ColLocation
		if err := sheet.ApplyStyle(spreadsheet.Range{Row: row, Col: 1, NumRows: 1, NumCols: textCols}, left); err != nil {
			return fmt.Errorf("设置第 %d 行样式失败: %w", row, err)
		}
		if err := sheet.ApplyStyle(spreadsheet.Range{Row: row, Col: textCols + 1, NumRows: 1, NumCols: lastCol - textCols}, center); err != nil {
			return fmt.Errorf("设置第 %d 行样式失败: %w", row, err)
		}
	}

	// 4. 列宽
	for col := 1; col <= lastCol; col++ {
		if err := sheet.AutoResizeColumn(col); err != nil {
			return fmt.Errorf("调整第 %d 列宽度失败: %w", col, err)
		}
	}

	s.logger.Debug("工作表格式化完成",
		zap.String("sheet", sheet.Name()),
		zap.Int("rows", dataRows),
	)
	return nil
}
