package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/ha-Ezer/wecc/internal/model"
	"github.com/ha-Ezer/wecc/internal/repository"
	pkgerrors "github.com/ha-Ezer/wecc/pkg/errors"
	"github.com/ha-Ezer/wecc/pkg/spreadsheet"
)

// ── Mock SubmissionRepository ──

type mockSubmissionRepo struct {
	openErr   error
	count     int
	countErr  error
	appendErr error
	appended  []*model.Submission
	saves     int
	closed    int
}

func (m *mockSubmissionRepo) Open(_ context.Context) (repository.SubmissionSheet, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return &mockSubmissionSheet{repo: m, sheet: newMemorySheet(model.SheetHeader)}, nil
}

type mockSubmissionSheet struct {
	repo  *mockSubmissionRepo
	sheet *memorySheet
}

func (s *mockSubmissionSheet) RowCount() (int, error) { return s.repo.count, s.repo.countErr }

func (s *mockSubmissionSheet) Append(sub *model.Submission) error {
	if s.repo.appendErr != nil {
		return s.repo.appendErr
	}
	s.repo.appended = append(s.repo.appended, sub)
	return s.sheet.AppendRow(sub.Row())
}

func (s *mockSubmissionSheet) Sheet() spreadsheet.Sheet { return s.sheet }

func (s *mockSubmissionSheet) Save() error {
	s.repo.saves++
	return nil
}

func (s *mockSubmissionSheet) Close() error {
	s.repo.closed++
	return nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	created []*model.OperatorNotification
	err     error
}

func (m *mockNotificationRepo) Create(_ context.Context, n *model.OperatorNotification) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, n)
	return nil
}

// ── Recording NotifyService ──

type sentNotification struct {
	errType pkgerrors.ErrorType
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(_ context.Context, errType pkgerrors.ErrorType, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{errType: errType, message: message})
}

func (r *recordingNotifier) types() []pkgerrors.ErrorType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]pkgerrors.ErrorType, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.errType)
	}
	return out
}

// ── Stub FormatService ──

type stubFormatter struct {
	calls int
	err   error
	panic bool
}

func (f *stubFormatter) Format(_ spreadsheet.Sheet) error {
	f.calls++
	if f.panic {
		panic("formatter exploded")
	}
	return f.err
}

// ── 内存工作表（记录样式调用） ──

type styleCall struct {
	rng   spreadsheet.Range
	style spreadsheet.CellStyle
}

type memorySheet struct {
	rows     [][]string
	styles   []styleCall
	frozen   int
	resized  map[int]bool
	failSort bool
}

func newMemorySheet(header []string) *memorySheet {
	s := &memorySheet{resized: make(map[int]bool)}
	if header != nil {
		s.rows = append(s.rows, append([]string(nil), header...))
	}
	return s
}

func (s *memorySheet) Name() string { return "Contacts" }

func (s *memorySheet) LastRow() (int, error) { return len(s.rows), nil }

func (s *memorySheet) LastColumn() (int, error) {
	last := 0
	for _, r := range s.rows {
		if len(r) > last {
			last = len(r)
		}
	}
	return last, nil
}

func (s *memorySheet) Values(r spreadsheet.Range) ([][]string, error) {
	out := make([][]string, r.NumRows)
	for i := range out {
		out[i] = make([]string, r.NumCols)
		for j := range out[i] {
			ri, ci := r.Row-1+i, r.Col-1+j
			if ri < len(s.rows) && ci < len(s.rows[ri]) {
				out[i][j] = s.rows[ri][ci]
			}
		}
	}
	return out, nil
}

func (s *memorySheet) AppendRow(values []string) error {
	s.rows = append(s.rows, append([]string(nil), values...))
	return nil
}

func (s *memorySheet) ApplyStyle(r spreadsheet.Range, style spreadsheet.CellStyle) error {
	s.styles = append(s.styles, styleCall{rng: r, style: style})
	return nil
}

func (s *memorySheet) FreezeRows(n int) error {
	s.frozen = n
	return nil
}

func (s *memorySheet) AutoResizeColumn(col int) error {
	s.resized[col] = true
	return nil
}

func (s *memorySheet) Sort(r spreadsheet.Range, keys ...spreadsheet.SortKey) error {
	if s.failSort {
		return errors.New("sort not permitted")
	}
	block := s.rows[r.Row-1 : r.Row-1+r.NumRows]
	sort.SliceStable(block, func(i, j int) bool {
		for _, k := range keys {
			a, b := block[i][k.Column-1], block[j][k.Column-1]
			if a != b {
				if k.Ascending {
					return a < b
				}
				return a > b
			}
		}
		return false
	})
	return nil
}

func (s *memorySheet) column(col int) []string {
	var out []string
	for _, r := range s.rows[1:] {
		out = append(out, r[col-1])
	}
	return out
}
