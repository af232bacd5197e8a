package repository

import (
	"context"
	"fmt"

	"github.com/ha-Ezer/wecc/internal/model"
	"github.com/ha-Ezer/wecc/pkg/spreadsheet"
)

// SubmissionRepository 提交记录数据访问接口（表格存储）
type SubmissionRepository interface {
	// Open 打开工作簿并定位目标工作表；调用方必须 Close
	Open(ctx context.Context) (SubmissionSheet, error)
}

// SubmissionSheet 一次请求内打开的提交工作表
type SubmissionSheet interface {
	// RowCount 数据行数（不含表头）
	RowCount() (int, error)
	// Append 追加一行并立即持久化
	Append(s *model.Submission) error
	// Sheet 底层工作表，供格式化使用
	Sheet() spreadsheet.Sheet
	// Save 持久化格式化等后续修改
	Save() error
	Close() error
}

type submissionRepo struct {
	store     spreadsheet.Store
	sheetID   string
	sheetName string
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(store spreadsheet.Store, sheetID, sheetName string) SubmissionRepository {
	return &submissionRepo{store: store, sheetID: sheetID, sheetName: sheetName}
}

func (r *submissionRepo) Open(ctx context.Context) (SubmissionSheet, error) {
	wb, err := r.store.Open(ctx, r.sheetID)
	if err != nil {
		return nil, err
	}
	sh, err := wb.Sheet(r.sheetName)
	if err != nil {
		wb.Close()
		return nil, err
	}
	return &submissionSheet{wb: wb, sheet: sh}, nil
}

type submissionSheet struct {
	wb    spreadsheet.Workbook
	sheet spreadsheet.Sheet
}

func (s *submissionSheet) RowCount() (int, error) {
	last, err := s.sheet.LastRow()
	if err != nil {
		return 0, err
	}
	if last <= 1 {
		return 0, nil
	}
	return last - 1, nil
}

func (s *submissionSheet) Append(sub *model.Submission) error {
	last, err := s.sheet.LastRow()
	if err != nil {
		return err
	}
	// 空工作表先补表头
	if last == 0 {
		if err := s.sheet.AppendRow(model.SheetHeader); err != nil {
			return fmt.Errorf("写入表头失败: %w", err)
		}
	}
	if err := s.sheet.AppendRow(sub.Row()); err != nil {
		return err
	}
	return s.wb.Save()
}

func (s *submissionSheet) Sheet() spreadsheet.Sheet { return s.sheet }

func (s *submissionSheet) Save() error { return s.wb.Save() }

func (s *submissionSheet) Close() error { return s.wb.Close() }
