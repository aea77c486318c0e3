package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/jsonlines/internal/config"
	"github.com/JonMunkholm/jsonlines/internal/jsonlines"
)

func testTransferConfig() config.TransferConfig {
	return config.TransferConfig{
		BufferSize:    16,
		OnError:       "stop",
		MaxConcurrent: 2,
		MaxWaitTime:   50 * time.Millisecond,
		Timeout:       time.Minute,
	}
}

func itemsDB() *fakeDB {
	return &fakeDB{columns: []fakeColumn{
		{"id", pgtype.Int4OID, -1},
		{"name", pgtype.TextOID, -1},
	}}
}

func newTestService(t *testing.T, db DBTX) *Service {
	t.Helper()
	s, err := NewService(db, testTransferConfig())
	if err != nil {
		t.Fatalf("NewService error = %v", err)
	}
	return s
}

func TestNewService_InvalidOnError(t *testing.T) {
	cfg := testTransferConfig()
	cfg.OnError = "sometimes"
	if _, err := NewService(nil, cfg); err == nil {
		t.Fatal("expected error for invalid default on_error")
	}
}

func TestImport(t *testing.T) {
	db := itemsDB()
	s := newTestService(t, db)

	input := "\xEF\xBB\xBF" + `{"id": 1, "name": "foo"}` + "\n" + `{"id": 2}` + "\n"
	res, err := s.Import(context.Background(), "items", strings.NewReader(input), TransferOptions{})
	if err != nil {
		t.Fatalf("Import error = %v", err)
	}

	if res.Rows != 2 || res.Skipped != 0 {
		t.Errorf("rows=%d skipped=%d, want 2 and 0", res.Rows, res.Skipped)
	}
	if res.BytesRead != int64(len(input)-3) {
		t.Errorf("BytesRead = %d, want %d", res.BytesRead, len(input)-3)
	}
	if res.Direction != DirectionImport || res.Table != "items" || res.ID == "" {
		t.Errorf("unexpected result header: %+v", res)
	}
	if strings.Join(db.copyCols, ",") != "id,name" {
		t.Errorf("copy columns = %v", db.copyCols)
	}

	want := [][]any{
		{pgtype.Int4{Int32: 1, Valid: true}, pgtype.Text{String: "foo", Valid: true}},
		{pgtype.Int4{Int32: 2, Valid: true}, nil},
	}
	if len(db.copied) != len(want) {
		t.Fatalf("copied %d rows, want %d", len(db.copied), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if db.copied[i][j] != want[i][j] {
				t.Errorf("row %d col %d = %#v, want %#v", i, j, db.copied[i][j], want[i][j])
			}
		}
	}

	if n := len(s.ActiveTransfers()); n != 0 {
		t.Errorf("ActiveTransfers() = %d after completion, want 0", n)
	}
	if st := s.LimiterStatus(); st.Active != 0 || st.Available != 2 {
		t.Errorf("limiter not released: %+v", st)
	}
}

func TestImport_ColumnSubset(t *testing.T) {
	db := itemsDB()
	s := newTestService(t, db)

	_, err := s.Import(context.Background(), "items", strings.NewReader(`{"name":"x","id":9}`+"\n"),
		TransferOptions{Columns: []string{"name"}})
	if err != nil {
		t.Fatalf("Import error = %v", err)
	}
	if strings.Join(db.copyCols, ",") != "name" {
		t.Errorf("copy columns = %v, want [name]", db.copyCols)
	}
	if len(db.copied) != 1 || len(db.copied[0]) != 1 {
		t.Fatalf("unexpected copied rows: %v", db.copied)
	}
}

func TestImport_StopOnConversionFailure(t *testing.T) {
	db := itemsDB()
	s := newTestService(t, db)

	input := `{"id": 1}` + "\n" + `{"id": "abc"}` + "\n" + `{"id": 3}` + "\n"
	res, err := s.Import(context.Background(), "items", strings.NewReader(input), TransferOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, jsonlines.ErrConversion) {
		t.Errorf("error should wrap ErrConversion: %v", err)
	}

	var rerr *jsonlines.RecordError
	if !errors.As(err, &rerr) || rerr.Line != 2 || rerr.Column != "id" {
		t.Errorf("want record error at line 2 column id, got %v", err)
	}
	if res.Error == "" || res.Rows != 0 {
		t.Errorf("failed result: %+v", res)
	}
	if len(db.copied) != 0 {
		t.Errorf("nothing should be committed, got %d rows", len(db.copied))
	}
}

func TestImport_IgnoreSkipsBadRows(t *testing.T) {
	db := itemsDB()
	s := newTestService(t, db)

	input := `{"id": 1}` + "\n" + `not json` + "\n" + `{"id": "abc"}` + "\n" + `{"id": 4}` + "\n"
	res, err := s.Import(context.Background(), "items", strings.NewReader(input), TransferOptions{OnError: "ignore"})
	if err != nil {
		t.Fatalf("Import error = %v", err)
	}
	if res.Rows != 2 || res.Skipped != 2 {
		t.Errorf("rows=%d skipped=%d, want 2 and 2", res.Rows, res.Skipped)
	}
	if len(res.Diagnostics) != 2 {
		t.Fatalf("diagnostics = %d, want 2", len(res.Diagnostics))
	}
	if d := res.Diagnostics[0]; d.Line != 2 || d.Data != "not json" {
		t.Errorf("first diagnostic = %+v", d)
	}
	if d := res.Diagnostics[1]; d.Line != 3 || d.Column != "id" {
		t.Errorf("second diagnostic = %+v", d)
	}
}

func TestImport_DroppedTrailingFragment(t *testing.T) {
	db := itemsDB()
	s := newTestService(t, db)

	res, err := s.Import(context.Background(), "items", strings.NewReader(`{"id": 1}`+"\n"+`{"id": 2}`), TransferOptions{})
	if err != nil {
		t.Fatalf("Import error = %v", err)
	}
	if res.Rows != 1 || res.Dropped != int64(len(`{"id": 2}`)) {
		t.Errorf("rows=%d dropped=%d", res.Rows, res.Dropped)
	}
}

func TestImport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		opts    TransferOptions
		db      *fakeDB
		wantErr error
	}{
		{name: "invalid table name", table: "a.b.c", db: itemsDB()},
		{name: "unknown column", table: "items", opts: TransferOptions{Columns: []string{"zzz"}}, db: itemsDB(), wantErr: ErrInvalidColumns},
		{name: "invalid on_error", table: "items", opts: TransferOptions{OnError: "skip"}, db: itemsDB()},
		{name: "copy failure", table: "items", db: &fakeDB{columns: itemsDB().columns, copyErr: errors.New("duplicate key value")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, tt.db)
			res, err := s.Import(context.Background(), tt.table, strings.NewReader(`{"id":1}`+"\n"), tt.opts)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
			if res == nil || res.Error == "" {
				t.Errorf("result should carry the error: %+v", res)
			}
			if st := s.LimiterStatus(); st.Active != 0 {
				t.Errorf("limiter slot leaked: %+v", st)
			}
		})
	}
}

func TestImport_LimiterFull(t *testing.T) {
	cfg := testTransferConfig()
	cfg.MaxConcurrent = 1
	s, _ := NewService(itemsDB(), cfg)

	if err := s.limiter.Acquire(context.Background(), DirectionExport); err != nil {
		t.Fatalf("Acquire on an idle limiter: %v", err)
	}
	defer s.limiter.Release(DirectionExport)

	_, err := s.Import(context.Background(), "items", strings.NewReader(""), TransferOptions{})
	if !errors.Is(err, ErrTooManyTransfers) {
		t.Errorf("got %v, want ErrTooManyTransfers", err)
	}
}

func TestImport_TransferIDFromContext(t *testing.T) {
	s := newTestService(t, itemsDB())
	ctx := ContextWithTransferID(context.Background(), "req-123")

	res, err := s.Import(ctx, "items", strings.NewReader(""), TransferOptions{})
	if err != nil {
		t.Fatalf("Import error = %v", err)
	}
	if res.ID != "req-123" {
		t.Errorf("ID = %q, want req-123", res.ID)
	}
}

func TestImportRows_Offline(t *testing.T) {
	s := newTestService(t, nil)

	m := pgtype.NewMap()
	schema, err := ParseSchemaSpec("id:int4,name:varchar(3)", m)
	if err != nil {
		t.Fatalf("ParseSchemaSpec error = %v", err)
	}
	if err := BindInputs(schema, m); err != nil {
		t.Fatalf("BindInputs error = %v", err)
	}

	input := `{"id":1,"name":"abc"}` + "\n" + `{"id":2,"name":"toolong"}` + "\n" + `{"id":3}` + "\n"
	var ids []int32
	res, err := s.ImportRows(context.Background(), strings.NewReader(input), schema, TransferOptions{OnError: "ignore"},
		func(values []any) error {
			ids = append(ids, values[0].(pgtype.Int4).Int32)
			return nil
		})
	if err != nil {
		t.Fatalf("ImportRows error = %v", err)
	}
	if res.Rows != 2 || res.Skipped != 1 {
		t.Errorf("rows=%d skipped=%d, want 2 and 1", res.Rows, res.Skipped)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("ids = %v, want [1 3]", ids)
	}
}

func TestImportRows_CallbackError(t *testing.T) {
	s := newTestService(t, nil)
	schema := jsonlines.Schema{{Name: "id", TypeOID: pgtype.Int4OID}}
	_ = BindInputs(schema, pgtype.NewMap())

	stop := errors.New("stop here")
	res, err := s.ImportRows(context.Background(), strings.NewReader("{}\n{}\n"), schema, TransferOptions{},
		func([]any) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("got %v, want callback error", err)
	}
	if res.Rows != 1 {
		t.Errorf("Rows = %d, want 1", res.Rows)
	}
}

func TestImportRows_Cancelled(t *testing.T) {
	old := ContextCheckInterval
	ContextCheckInterval = 1
	defer func() { ContextCheckInterval = old }()

	s := newTestService(t, nil)
	schema := jsonlines.Schema{{Name: "id", TypeOID: pgtype.Int4OID}}
	_ = BindInputs(schema, pgtype.NewMap())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := strings.Repeat(`{"id":1}`+"\n", 10)
	res, err := s.ImportRows(ctx, strings.NewReader(input), schema, TransferOptions{},
		func([]any) error {
			cancel()
			return nil
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if res.Rows != 1 {
		t.Errorf("Rows = %d, want 1", res.Rows)
	}
}

func TestExport(t *testing.T) {
	db := itemsDB()
	db.exportRows = [][][]byte{
		{[]byte("1"), []byte("foo")},
		{[]byte("2"), nil},
	}
	s := newTestService(t, db)

	var out bytes.Buffer
	res, err := s.Export(context.Background(), "items", &out, TransferOptions{})
	if err != nil {
		t.Fatalf("Export error = %v", err)
	}

	want := `{"id":1,"name":"foo"}` + "\n" + `{"id":2,"name":null}` + "\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}
	if res.Rows != 2 || res.BytesOut != int64(len(want)) {
		t.Errorf("rows=%d bytes=%d", res.Rows, res.BytesOut)
	}
	if q := db.lastQuery(); q != `SELECT "id", "name" FROM "items"` {
		t.Errorf("query = %q", q)
	}
}

func TestExport_QueryError(t *testing.T) {
	db := itemsDB()
	db.exportRows = [][][]byte{{[]byte("1"), []byte("a")}}
	db.exportErr = errors.New("connection reset")
	s := newTestService(t, db)

	var out bytes.Buffer
	_, err := s.Export(context.Background(), "items", &out, TransferOptions{Columns: []string{"name"}})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("got %v, want row error", err)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := itemsDB()
	src.exportRows = [][][]byte{
		{[]byte("7"), []byte("tab\there")},
		{[]byte("8"), []byte(`quote"d`)},
	}
	s := newTestService(t, src)

	var buf bytes.Buffer
	if _, err := s.Export(context.Background(), "items", &buf, TransferOptions{}); err != nil {
		t.Fatalf("Export error = %v", err)
	}

	dst := itemsDB()
	s2 := newTestService(t, dst)
	if _, err := s2.Import(context.Background(), "items", &buf, TransferOptions{}); err != nil {
		t.Fatalf("Import error = %v", err)
	}
	if len(dst.copied) != 2 {
		t.Fatalf("copied %d rows, want 2", len(dst.copied))
	}
	if got := dst.copied[0][1].(pgtype.Text).String; got != "tab\there" {
		t.Errorf("name = %q", got)
	}
	if got := dst.copied[1][1].(pgtype.Text).String; got != `quote"d` {
		t.Errorf("name = %q", got)
	}
}
