// Package spreadsheet 定义表格存储能力接口：按标识打开工作簿、按名称取工作表、
// 读取范围、追加行、设置格式与排序。
//
// 行号、列号均从 1 开始，与表格软件的显示一致。
package spreadsheet

import (
	"context"
	"errors"
)

var (
	ErrUnavailable = errors.New("工作簿不可用")
	ErrNoSheet     = errors.New("工作簿中没有可用的工作表")
	ErrWriteDenied = errors.New("工作簿写入被拒绝")
	ErrCellTooLong = errors.New("单元格内容过长")
)

// Range 矩形区域
type Range struct {
	Row     int
	Col     int
	NumRows int
	NumCols int
}

// Empty 区域是否为空
func (r Range) Empty() bool {
	return r.NumRows <= 0 || r.NumCols <= 0
}

// Alignment 水平对齐方式
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// CellStyle 单元格完整样式（背景、字体、边框、对齐）
// 一次写入覆盖单元格原有样式；字段须保持可比较，用作样式缓存键
type CellStyle struct {
	Background  string
	FontColor   string
	Bold        bool
	FontSize    float64
	BorderColor string
	Align       Alignment
}

// SortKey 排序键，Column 为工作表内的绝对列号
type SortKey struct {
	Column    int
	Ascending bool
}

// Store 表格存储服务
type Store interface {
	// Open 按标识打开工作簿；调用方必须 Close
	Open(ctx context.Context, id string) (Workbook, error)
}

// Workbook 已打开的工作簿
type Workbook interface {
	// Sheet 返回指定名称的工作表，不存在时回退到第一个工作表
	Sheet(name string) (Sheet, error)
	// Save 持久化全部修改
	Save() error
	Close() error
}

// Sheet 工作表
type Sheet interface {
	Name() string
	LastRow() (int, error)
	LastColumn() (int, error)
	Values(r Range) ([][]string, error)
	AppendRow(values []string) error
	ApplyStyle(r Range, style CellStyle) error
	FreezeRows(n int) error
	AutoResizeColumn(col int) error
	Sort(r Range, keys ...SortKey) error
}
