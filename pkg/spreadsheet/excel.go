package spreadsheet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"
)

const (
	minColWidth = 8
	maxColWidth = 60
)

// MaxCellChars 单元格可容纳的最大字符数，excelize 会静默截断超出部分
const MaxCellChars = excelize.TotalCellChars

// ExcelStore 基于本地 .xlsx 文件的表格存储
//
// 同一工作簿在进程内串行访问：Open 获取该工作簿的令牌，Close 归还。
// 保存时先写临时文件再原子替换，失败不会留下半行数据。
type ExcelStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewExcelStore 创建 ExcelStore，dir 为工作簿所在目录
func NewExcelStore(dir string) *ExcelStore {
	return &ExcelStore{dir: dir, locks: make(map[string]chan struct{})}
}

func (s *ExcelStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: 非法标识 %q", ErrUnavailable, id)
	}
	return filepath.Join(s.dir, id+".xlsx"), nil
}

func (s *ExcelStore) token(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

// Create 工作簿不存在时创建，写入表头；已存在时不做修改
func (s *ExcelStore) Create(ctx context.Context, id, sheetName string, header []string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	tok := s.token(id)
	select {
	case tok <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-tok }()

	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("创建数据目录失败: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("重命名工作表失败: %w", err)
	}
	if len(header) > 0 {
		if err := f.SetSheetRow(sheetName, "A1", toRow(header)); err != nil {
			return fmt.Errorf("写入表头失败: %w", err)
		}
	}

	wb := &excelWorkbook{f: f, path: path}
	return wb.Save()
}

// Open 打开工作簿；ctx 取消时放弃等待
func (s *ExcelStore) Open(ctx context.Context, id string) (Workbook, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	tok := s.token(id)
	select {
	case tok <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}

	if _, err := os.Stat(path); err != nil {
		<-tok
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		<-tok
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &excelWorkbook{
		f:      f,
		path:   path,
		styles: make(map[CellStyle]int),
		unlock: func() { <-tok },
	}, nil
}

// ── Workbook ──

type excelWorkbook struct {
	f      *excelize.File
	path   string
	styles map[CellStyle]int

	unlock    func()
	closeOnce sync.Once
}

func (w *excelWorkbook) Sheet(name string) (Sheet, error) {
	if idx, err := w.f.GetSheetIndex(name); err == nil && idx >= 0 {
		return &excelSheet{wb: w, name: name}, nil
	}
	list := w.f.GetSheetList()
	if len(list) == 0 {
		return nil, ErrNoSheet
	}
	return &excelSheet{wb: w, name: list[0]}, nil
}

func (w *excelWorkbook) Save() error {
	buf, err := w.f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("%w: 序列化失败: %v", ErrWriteDenied, err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteDenied, err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrWriteDenied, err)
	}
	return nil
}

func (w *excelWorkbook) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.f.Close()
		if w.unlock != nil {
			w.unlock()
		}
	})
	return err
}

func (w *excelWorkbook) styleID(style CellStyle) (int, error) {
	if id, ok := w.styles[style]; ok {
		return id, nil
	}

	st := &excelize.Style{
		Font: &excelize.Font{
			Bold:  style.Bold,
			Size:  style.FontSize,
			Color: style.FontColor,
		},
	}
	if style.Align != "" {
		st.Alignment = &excelize.Alignment{Horizontal: string(style.Align), Vertical: "center"}
	}
	if style.Background != "" {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{style.Background}}
	}
	if style.BorderColor != "" {
		for _, side := range []string{"left", "top", "right", "bottom"} {
			st.Border = append(st.Border, excelize.Border{Type: side, Color: style.BorderColor, Style: 1})
		}
	}

	id, err := w.f.NewStyle(st)
	if err != nil {
		return 0, err
	}
	w.styles[style] = id
	return id, nil
}

// ── Sheet ──

type excelSheet struct {
	wb   *excelWorkbook
	name string
}

func (s *excelSheet) Name() string { return s.name }

// rows 读取全部行，去掉尾部空行与每行尾部空单元格
func (s *excelSheet) rows() ([][]string, error) {
	rows, err := s.wb.f.GetRows(s.name)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i] = trimRight(rows[i])
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func (s *excelSheet) LastRow() (int, error) {
	rows, err := s.rows()
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *excelSheet) LastColumn() (int, error) {
	rows, err := s.rows()
	if err != nil {
		return 0, err
	}
	last := 0
	for _, r := range rows {
		if len(r) > last {
			last = len(r)
		}
	}
	return last, nil
}

func (s *excelSheet) Values(r Range) ([][]string, error) {
	if r.Empty() {
		return nil, nil
	}
	rows, err := s.rows()
	if err != nil {
		return nil, err
	}

	out := make([][]string, r.NumRows)
	for i := range out {
		out[i] = make([]string, r.NumCols)
		ri := r.Row - 1 + i
		if ri < 0 || ri >= len(rows) {
			continue
		}
		for j := range out[i] {
			ci := r.Col - 1 + j
			if ci >= 0 && ci < len(rows[ri]) {
				out[i][j] = rows[ri][ci]
			}
		}
	}
	return out, nil
}

func (s *excelSheet) AppendRow(values []string) error {
	for i, v := range values {
		if utf8.RuneCountInString(v) > MaxCellChars {
			return fmt.Errorf("%w: 第 %d 列超过 %d 个字符", ErrCellTooLong, i+1, MaxCellChars)
		}
	}
	last, err := s.LastRow()
	if err != nil {
		return err
	}
	cell, err := excelize.CoordinatesToCellName(1, last+1)
	if err != nil {
		return err
	}
	return s.wb.f.SetSheetRow(s.name, cell, toRow(values))
}

func (s *excelSheet) ApplyStyle(r Range, style CellStyle) error {
	if r.Empty() {
		return nil
	}
	id, err := s.wb.styleID(style)
	if err != nil {
		return fmt.Errorf("创建样式失败: %w", err)
	}
	tl, err := excelize.CoordinatesToCellName(r.Col, r.Row)
	if err != nil {
		return err
	}
	br, err := excelize.CoordinatesToCellName(r.Col+r.NumCols-1, r.Row+r.NumRows-1)
	if err != nil {
		return err
	}
	return s.wb.f.SetCellStyle(s.name, tl, br, id)
}

func (s *excelSheet) FreezeRows(n int) error {
	if n <= 0 {
		return s.wb.f.SetPanes(s.name, &excelize.Panes{})
	}
	topLeft, err := excelize.CoordinatesToCellName(1, n+1)
	if err != nil {
		return err
	}
	return s.wb.f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      n,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
		Selection: []excelize.Selection{
			{SQRef: topLeft, ActiveCell: topLeft, Pane: "bottomLeft"},
		},
	})
}

// AutoResizeColumn 按列内最宽内容的显示宽度设置列宽（中日韩字符按双宽计算）
func (s *excelSheet) AutoResizeColumn(col int) error {
	rows, err := s.rows()
	if err != nil {
		return err
	}
	width := 0
	for _, r := range rows {
		if col-1 < len(r) {
			if w := runewidth.StringWidth(r[col-1]); w > width {
				width = w
			}
		}
	}
	width += 2
	if width < minColWidth {
		width = minColWidth
	}
	if width > maxColWidth {
		width = maxColWidth
	}

	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	return s.wb.f.SetColWidth(s.name, name, name, float64(width))
}

// Sort 对区域内的行做稳定排序，仅移动值
func (s *excelSheet) Sort(r Range, keys ...SortKey) error {
	if r.Empty() || len(keys) == 0 {
		return nil
	}
	values, err := s.Values(r)
	if err != nil {
		return err
	}

	sort.SliceStable(values, func(i, j int) bool {
		for _, k := range keys {
			c := k.Column - r.Col
			if c < 0 || c >= r.NumCols {
				continue
			}
			a, b := values[i][c], values[j][c]
			if a == b {
				continue
			}
			if k.Ascending {
				return a < b
			}
			return a > b
		}
		return false
	})

	for i, row := range values {
		cell, err := excelize.CoordinatesToCellName(r.Col, r.Row+i)
		if err != nil {
			return err
		}
		if err := s.wb.f.SetSheetRow(s.name, cell, toRow(row)); err != nil {
			return err
		}
	}
	return nil
}

// ── 辅助函数 ──

func toRow(values []string) *[]interface{} {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return &row
}

func trimRight(row []string) []string {
	n := len(row)
	for n > 0 && row[n-1] == "" {
		n--
	}
	return row[:n]
}
