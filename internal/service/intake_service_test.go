package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ha-Ezer/wecc/config"
	"github.com/ha-Ezer/wecc/internal/dto"
	"github.com/ha-Ezer/wecc/internal/repository"
	pkgerrors "github.com/ha-Ezer/wecc/pkg/errors"
	"github.com/ha-Ezer/wecc/pkg/spreadsheet"
)

// ── 测试辅助 ──

var fixedNow = time.Date(2024, 5, 1, 8, 15, 30, 0, time.UTC)

func testIntakeConfig() config.IntakeConfig {
	return config.IntakeConfig{
		SheetID:        "contacts",
		SheetName:      "Contacts",
		SheetURL:       "https://example.org/sheets/contacts",
		OperatorEmail:  "ops@example.org",
		MaxRows:        1000,
		WarnRatio:      0.9,
		Timezone:       "Africa/Accra",
		HeaderFontSize: 12,
		Palette: config.PaletteConfig{
			HeaderBackground: "#4A86E8",
			HeaderText:       "#FFFFFF",
			EvenRow:          "#F3F6FC",
			OddRow:           "#FFFFFF",
			Border:           "#D0D7E5",
		},
	}
}

func setupTestIntakeService(subRepo repository.SubmissionRepository, formatter FormatService) (*intakeService, *recordingNotifier) {
	notifier := &recordingNotifier{}
	repo := &repository.Repository{Submission: subRepo}
	svc := NewIntakeService(testIntakeConfig(), repo, formatter, notifier, zap.NewNop()).(*intakeService)
	svc.now = func() time.Time { return fixedNow }
	return svc, notifier
}

func validRequest() *dto.IntakeRequest {
	return &dto.IntakeRequest{
		Params: url.Values{"name": {"Jane Doe"}, "phone": {"0551234567"}, "location": {"Accra"}},
	}
}

// newExcelWorkbook 直接用 excelize 生成含 n 行数据的工作簿
func newExcelWorkbook(t *testing.T, n int) (*spreadsheet.ExcelStore, string) {
	t.Helper()
	dir := t.TempDir()

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Contacts"); err != nil {
		t.Fatalf("重命名失败: %v", err)
	}
	header := []interface{}{"Name", "Phone", "Location", "Date", "Time"}
	_ = f.SetSheetRow("Contacts", "A1", &header)

	faker := gofakeit.New(42)
	for i := 0; i < n; i++ {
		row := []interface{}{faker.Name(), faker.Phone(), faker.City(), "2024-01-01", fmt.Sprintf("%02d:%02d:00", i/60%24, i%60)}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow("Contacts", cell, &row)
	}
	path := filepath.Join(dir, "contacts.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("保存工作簿失败: %v", err)
	}
	return spreadsheet.NewExcelStore(dir), path
}

// ── Submit: 端到端（真实 excelize 存储） ──

func TestIntakeService_Submit_RoundTrip(t *testing.T) {
	store, _ := newExcelWorkbook(t, 0)
	cfg := testIntakeConfig()
	svc, notifier := setupTestIntakeService(
		repository.NewSubmissionRepo(store, cfg.SheetID, cfg.SheetName),
		NewFormatService(cfg, zap.NewNop()),
	)

	res, err := svc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	if !res.Success || res.Message != SuccessMessage {
		t.Errorf("响应不符合预期: %+v", res)
	}
	if res.Timestamp != "2024-05-01 08:15:30" {
		t.Errorf("时间戳应按 Africa/Accra 生成，实际: %s", res.Timestamp)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("成功提交不应发送通知，实际: %v", notifier.types())
	}

	wb, err := store.Open(context.Background(), "contacts")
	if err != nil {
		t.Fatalf("重新打开失败: %v", err)
	}
	defer wb.Close()
	sh, _ := wb.Sheet("Contacts")
	got, _ := sh.Values(spreadsheet.Range{Row: 2, Col: 1, NumRows: 1, NumCols: 5})
	want := []string{"Jane Doe", "0551234567", "Accra", "2024-05-01", "08:15:30"}
	if !reflect.DeepEqual(got[0], want) {
		t.Errorf("期望行 %v，实际 %v", want, got[0])
	}
}

func TestIntakeService_Submit_EncodingsStoreIdenticalRows(t *testing.T) {
	requests := map[string]*dto.IntakeRequest{
		"named": validRequest(),
		"json":  {Body: []byte(`{"name":" Jane Doe ","phone":"0551234567","location":"Accra"}`)},
		"form":  {Body: []byte("name=Jane+Doe&phone=0551234567&location=Accra")},
	}

	var rows [][]string
	for name, req := range requests {
		repo := &mockSubmissionRepo{}
		svc, _ := setupTestIntakeService(repo, &stubFormatter{})

		if _, err := svc.Submit(context.Background(), req); err != nil {
			t.Fatalf("%s: Submit 应成功: %v", name, err)
		}
		if len(repo.appended) != 1 {
			t.Fatalf("%s: 期望追加 1 行，实际 %d", name, len(repo.appended))
		}
		rows = append(rows, repo.appended[0].Row())
	}
	for i := 1; i < len(rows); i++ {
		if !reflect.DeepEqual(rows[0], rows[i]) {
			t.Errorf("不同编码应得到相同行: %v vs %v", rows[0], rows[i])
		}
	}
}

// ── Submit: 校验与解析 ──

func TestIntakeService_Submit_ValidationError(t *testing.T) {
	for _, missing := range []string{"name", "phone", "location"} {
		t.Run(missing, func(t *testing.T) {
			repo := &mockSubmissionRepo{}
			svc, notifier := setupTestIntakeService(repo, &stubFormatter{})

			req := validRequest()
			req.Params.Set(missing, "")

			_, err := svc.Submit(context.Background(), req)
			if pkgerrors.TypeOf(err) != pkgerrors.ValidationError {
				t.Fatalf("期望 ValidationError，实际: %v", err)
			}
			if len(repo.appended) != 0 {
				t.Error("校验失败不应追加")
			}
			if len(notifier.sent) != 0 {
				t.Errorf("校验失败不应通知，实际: %v", notifier.types())
			}
		})
	}
}

func TestIntakeService_Submit_ParseErrorNotifiesOnce(t *testing.T) {
	repo := &mockSubmissionRepo{}
	svc, notifier := setupTestIntakeService(repo, &stubFormatter{})

	_, err := svc.Submit(context.Background(), &dto.IntakeRequest{Body: []byte(`{"name": "A", "phone":}`)})
	if pkgerrors.TypeOf(err) != pkgerrors.DataParseError {
		t.Fatalf("期望 DataParseError，实际: %v", err)
	}
	if len(repo.appended) != 0 {
		t.Error("解析失败不应追加")
	}
	if got := notifier.types(); !reflect.DeepEqual(got, []pkgerrors.ErrorType{pkgerrors.DataParseError}) {
		t.Errorf("期望一次 DataParseError 通知，实际: %v", got)
	}
}

// ── Submit: 容量边界 ──

func TestIntakeService_Submit_RowCountBoundaries(t *testing.T) {
	cases := []struct {
		count       int
		wantErr     pkgerrors.ErrorType
		wantNotify  []pkgerrors.ErrorType
		wantAppends int
	}{
		{count: 899, wantNotify: nil, wantAppends: 1},
		{count: 900, wantNotify: []pkgerrors.ErrorType{pkgerrors.RowLimitReached}, wantAppends: 1},
		{count: 1000, wantErr: pkgerrors.RowLimitReached, wantNotify: []pkgerrors.ErrorType{pkgerrors.RowLimitReached}, wantAppends: 0},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("rows=%d", tc.count), func(t *testing.T) {
			repo := &mockSubmissionRepo{count: tc.count}
			svc, notifier := setupTestIntakeService(repo, &stubFormatter{})

			_, err := svc.Submit(context.Background(), validRequest())
			if tc.wantErr == "" && err != nil {
				t.Fatalf("期望成功，实际: %v", err)
			}
			if tc.wantErr != "" && pkgerrors.TypeOf(err) != tc.wantErr {
				t.Fatalf("期望 %s，实际: %v", tc.wantErr, err)
			}
			if len(repo.appended) != tc.wantAppends {
				t.Errorf("期望追加 %d 行，实际 %d", tc.wantAppends, len(repo.appended))
			}
			if got := notifier.types(); len(got) != len(tc.wantNotify) || (len(got) > 0 && !reflect.DeepEqual(got, tc.wantNotify)) {
				t.Errorf("期望通知 %v，实际 %v", tc.wantNotify, got)
			}
		})
	}
}

func TestIntakeService_Submit_RowLimitOnRealWorkbook(t *testing.T) {
	store, _ := newExcelWorkbook(t, 1000)
	cfg := testIntakeConfig()
	svc, notifier := setupTestIntakeService(
		repository.NewSubmissionRepo(store, cfg.SheetID, cfg.SheetName),
		&stubFormatter{},
	)

	_, err := svc.Submit(context.Background(), validRequest())
	if pkgerrors.TypeOf(err) != pkgerrors.RowLimitReached {
		t.Fatalf("期望 RowLimitReached，实际: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("期望 1 次通知，实际 %d", len(notifier.sent))
	}

	wb, _ := store.Open(context.Background(), "contacts")
	defer wb.Close()
	sh, _ := wb.Sheet("Contacts")
	if last, _ := sh.LastRow(); last != 1001 {
		t.Errorf("不应追加新行，LastRow=%d", last)
	}
}

// ── Submit: 存储故障 ──

func TestIntakeService_Submit_SheetUnavailable(t *testing.T) {
	repo := &mockSubmissionRepo{openErr: spreadsheet.ErrUnavailable}
	svc, notifier := setupTestIntakeService(repo, &stubFormatter{})

	_, err := svc.Submit(context.Background(), validRequest())
	if pkgerrors.TypeOf(err) != pkgerrors.SheetUnavailable {
		t.Fatalf("期望 SheetUnavailable，实际: %v", err)
	}
	if !errors.Is(err, spreadsheet.ErrUnavailable) {
		t.Error("应保留底层错误")
	}
	if got := notifier.types(); !reflect.DeepEqual(got, []pkgerrors.ErrorType{pkgerrors.SheetUnavailable}) {
		t.Errorf("期望一次 SheetUnavailable 通知，实际: %v", got)
	}
}

func TestIntakeService_Submit_AppendFailure(t *testing.T) {
	repo := &mockSubmissionRepo{appendErr: spreadsheet.ErrWriteDenied}
	formatter := &stubFormatter{}
	svc, notifier := setupTestIntakeService(repo, formatter)

	_, err := svc.Submit(context.Background(), validRequest())
	if pkgerrors.TypeOf(err) != pkgerrors.PermissionDenied {
		t.Fatalf("期望 PermissionDenied，实际: %v", err)
	}
	if got := notifier.types(); !reflect.DeepEqual(got, []pkgerrors.ErrorType{pkgerrors.PermissionDenied}) {
		t.Errorf("期望一次 PermissionDenied 通知，实际: %v", got)
	}
	if formatter.calls != 0 {
		t.Error("追加失败后不应格式化")
	}
	if repo.closed != 1 {
		t.Errorf("工作簿应被关闭，closed=%d", repo.closed)
	}
}

func TestIntakeService_Submit_AppendFailureLeavesNoRow(t *testing.T) {
	store, path := newExcelWorkbook(t, 3)
	cfg := testIntakeConfig()
	svc, _ := setupTestIntakeService(
		repository.NewSubmissionRepo(readOnlyStore{store}, cfg.SheetID, cfg.SheetName),
		&stubFormatter{},
	)

	_, err := svc.Submit(context.Background(), validRequest())
	if pkgerrors.TypeOf(err) != pkgerrors.PermissionDenied {
		t.Fatalf("期望 PermissionDenied，实际: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("打开失败: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("Contacts")
	if len(rows) != 4 {
		t.Errorf("不应留下部分写入，期望 4 行，实际 %d", len(rows))
	}
}

// ── Submit: 格式化失败不影响结果 ──

func TestIntakeService_Submit_FormatFailureSwallowed(t *testing.T) {
	for name, formatter := range map[string]*stubFormatter{
		"error": {err: errors.New("style quota exceeded")},
		"panic": {panic: true},
	} {
		t.Run(name, func(t *testing.T) {
			repo := &mockSubmissionRepo{}
			svc, notifier := setupTestIntakeService(repo, formatter)

			res, err := svc.Submit(context.Background(), validRequest())
			if err != nil {
				t.Fatalf("格式化失败不应影响提交结果: %v", err)
			}
			if !res.Success {
				t.Error("期望成功")
			}
			if len(notifier.sent) != 0 {
				t.Errorf("格式化失败不应通知，实际: %v", notifier.types())
			}
			if repo.saves != 0 {
				t.Error("格式化失败时不应保存格式")
			}
		})
	}
}

// ── Health ──

func TestIntakeService_Health(t *testing.T) {
	svc, notifier := setupTestIntakeService(&mockSubmissionRepo{count: 950}, &stubFormatter{})

	h := svc.Health(context.Background())
	if !h.IsHealthy || h.RowCount == nil || *h.RowCount != 950 {
		t.Errorf("期望健康且 rowCount=950，实际: %+v", h)
	}
	if len(notifier.sent) != 0 {
		t.Error("健康检查接口不应发送通知")
	}

	svc, _ = setupTestIntakeService(&mockSubmissionRepo{openErr: spreadsheet.ErrUnavailable}, &stubFormatter{})
	h = svc.Health(context.Background())
	if h.IsHealthy || h.ErrorType != string(pkgerrors.SheetUnavailable) {
		t.Errorf("期望 SheetUnavailable，实际: %+v", h)
	}

	svc, _ = setupTestIntakeService(&mockSubmissionRepo{countErr: errors.New("corrupt")}, &stubFormatter{})
	h = svc.Health(context.Background())
	if h.IsHealthy || h.ErrorType != string(pkgerrors.SheetUnavailable) {
		t.Errorf("读取失败应为 SheetUnavailable，实际: %+v", h)
	}
}

// ── 只读存储：保存总是失败 ──

type readOnlyStore struct{ inner spreadsheet.Store }

func (s readOnlyStore) Open(ctx context.Context, id string) (spreadsheet.Workbook, error) {
	wb, err := s.inner.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	return readOnlyWorkbook{wb}, nil
}

type readOnlyWorkbook struct{ spreadsheet.Workbook }

func (readOnlyWorkbook) Save() error { return spreadsheet.ErrWriteDenied }

// ── Submit: 超长字段 ──

func TestIntakeService_Submit_OversizedFieldRejected(t *testing.T) {
	store, path := newExcelWorkbook(t, 0)
	cfg := testIntakeConfig()
	svc, notifier := setupTestIntakeService(
		repository.NewSubmissionRepo(store, cfg.SheetID, cfg.SheetName),
		&stubFormatter{},
	)

	req := &dto.IntakeRequest{Params: url.Values{
		"name":     {strings.Repeat("a", 40000)},
		"phone":    {"0551234567"},
		"location": {"Accra"},
	}}
	res, err := svc.Submit(context.Background(), req)
	if res != nil || pkgerrors.TypeOf(err) != pkgerrors.ValidationError {
		t.Fatalf("超长字段应返回 ValidationError，实际 res=%v err=%v", res, err)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("校验失败不应通知，实际: %v", notifier.types())
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("打开失败: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("Contacts")
	if len(rows) != 1 {
		t.Errorf("不应写入被截断的行，期望只有表头，实际 %d 行", len(rows))
	}
}

// ── Submit: 通知在工作簿释放后发送 ──

// storeProbingNotifier 收到通知时尝试打开同一工作簿，记录是否能拿到
type storeProbingNotifier struct {
	recordingNotifier
	store    spreadsheet.Store
	sheetID  string
	acquired []bool
}

func (n *storeProbingNotifier) Notify(ctx context.Context, errType pkgerrors.ErrorType, message string) {
	n.recordingNotifier.Notify(ctx, errType, message)

	openCtx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	wb, err := n.store.Open(openCtx, n.sheetID)
	if err == nil {
		wb.Close()
	}
	n.acquired = append(n.acquired, err == nil)
}

func TestIntakeService_Submit_NotifiesAfterWorkbookReleased(t *testing.T) {
	cases := map[string]struct {
		rows     int
		readOnly bool
		want     []pkgerrors.ErrorType
	}{
		"接近容量上限": {rows: 900, want: []pkgerrors.ErrorType{pkgerrors.RowLimitReached}},
		"追加失败":   {rows: 3, readOnly: true, want: []pkgerrors.ErrorType{pkgerrors.PermissionDenied}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			excelStore, _ := newExcelWorkbook(t, tc.rows)
			cfg := testIntakeConfig()

			var store spreadsheet.Store = excelStore
			if tc.readOnly {
				store = readOnlyStore{excelStore}
			}
			notifier := &storeProbingNotifier{store: excelStore, sheetID: cfg.SheetID}
			repo := &repository.Repository{Submission: repository.NewSubmissionRepo(store, cfg.SheetID, cfg.SheetName)}
			svc := NewIntakeService(cfg, repo, &stubFormatter{}, notifier, zap.NewNop())

			_, _ = svc.Submit(context.Background(), validRequest())

			if got := notifier.types(); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("期望通知 %v，实际 %v", tc.want, got)
			}
			for i, ok := range notifier.acquired {
				if !ok {
					t.Errorf("第 %d 条通知发送时工作簿仍被占用", i+1)
				}
			}
		})
	}
}
