package backup

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/cashflow-planner/internal/domain"
	"github.com/dvloznov/cashflow-planner/internal/ledger"
	"github.com/dvloznov/cashflow-planner/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

type fakeStorage struct {
	UploadFunc func(ctx context.Context, uri string, data []byte) error
	FetchFunc  func(ctx context.Context, uri string) ([]byte, error)
}

func (f *fakeStorage) Upload(ctx context.Context, uri string, data []byte) error {
	return f.UploadFunc(ctx, uri, data)
}

func (f *fakeStorage) Fetch(ctx context.Context, uri string) ([]byte, error) {
	return f.FetchFunc(ctx, uri)
}

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	clock := testutil.NewSteppingClock(now, time.Millisecond)
	return ledger.New(ledger.State{ViewDate: civil.Date{Year: 2024, Month: time.March, Day: 10}}, clock, zerolog.Nop())
}

func seed(t *testing.T, l *ledger.Ledger) {
	t.Helper()
	_, err := l.AddTransaction(ledger.TransactionInput{
		Date:        civil.Date{Year: 2024, Month: time.March, Day: 1},
		Description: "Salary",
		Amount:      decimal.NewFromInt(3000),
		Type:        domain.Income,
	})
	require.NoError(t, err)
	_, err = l.AddPlan(ledger.PlanInput{
		Description: "Rent",
		Amount:      decimal.NewFromInt(1200),
		Type:        domain.Expense,
		Frequency:   domain.Monthly,
		StartDate:   civil.Date{Year: 2024, Month: time.March, Day: 5},
	})
	require.NoError(t, err)
	require.NoError(t, l.SetCycleStartDay(25))
}

func TestNewDocument_Shape(t *testing.T) {
	doc := NewDocument(domain.Dataset{CycleStartDay: 3}, now)

	data, err := doc.Encode()
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"transactions", "plans", "cycleStartDay", "deletedIds", "exportDate", "version"} {
		assert.Contains(t, fields, key)
	}
	assert.JSONEq(t, `[]`, string(fields["transactions"]))
	assert.JSONEq(t, `{}`, string(fields["deletedIds"]))
	assert.JSONEq(t, `"2024-03-10T12:00:00Z"`, string(fields["exportDate"]))
}

func TestDecode_LegacyDocument(t *testing.T) {
	data := []byte(`{
		"transactions": [{"id":"t1","name":"Groceries","date":"2024-02-30","amount":"-45.20","type":"expense"}],
		"plans": [{"id":"p1","name":"","description":"","amount":10,"type":"bonus","frequency":"monthly","startDate":"2024-01-01"}],
		"cycleStartDay": 12,
		"exportDate": "2024-02-01T08:00:00.000Z",
		"version": "0.9"
	}`)

	ds, err := Decode(data, civil.Date{Year: 2024, Month: time.March, Day: 10}, zerolog.Nop())
	require.NoError(t, err)

	require.Len(t, ds.Transactions, 1)
	assert.Equal(t, "Groceries", ds.Transactions[0].Description)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 10}, ds.Transactions[0].Date)
	assert.Equal(t, "45.2", ds.Transactions[0].Amount.String())

	require.Len(t, ds.Plans, 1)
	assert.Equal(t, domain.DefaultLabel, ds.Plans[0].Description)
	assert.Equal(t, domain.Expense, ds.Plans[0].Type)

	assert.Equal(t, 12, ds.CycleStartDay)
	assert.Empty(t, ds.DeletedIDs)
	assert.Equal(t, domain.StampOf(time.Date(2024, time.February, 1, 8, 0, 0, 0, time.UTC)), ds.LastModified)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`not json`), civil.Date{Year: 2024, Month: time.March, Day: 10}, zerolog.Nop())
	assert.Error(t, err)
}

func TestService_ExportImportFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "backup.json")

	src := newLedger(t)
	seed(t, src)
	exported, err := NewService(src, NewFiles(nil), testutil.NewClock(now), zerolog.Nop()).Export(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, Version, exported.Version)
	assert.Len(t, exported.Transactions, 1)
	assert.Len(t, exported.Plans, 1)

	dst := newLedger(t)
	svc := NewService(dst, NewFiles(nil), testutil.NewClock(now), zerolog.Nop())
	merged, err := svc.Import(ctx, path)
	require.NoError(t, err)

	assert.Len(t, merged.Transactions, 1)
	assert.Len(t, merged.Plans, 1)
	assert.Equal(t, 25, dst.State().Dataset.CycleStartDay)
	assert.Equal(t, src.Transactions()[0].ID, dst.Transactions()[0].ID)
}

func TestService_ImportKeepsLocalRecords(t *testing.T) {
	dst := newLedger(t)
	local, err := dst.AddTransaction(ledger.TransactionInput{
		Date:        civil.Date{Year: 2024, Month: time.March, Day: 2},
		Description: "Coffee",
		Amount:      decimal.NewFromInt(4),
		Type:        domain.Expense,
	})
	require.NoError(t, err)

	svc := NewService(dst, NewFiles(nil), testutil.NewClock(now), zerolog.Nop())
	_, err = svc.ImportBytes([]byte(`{"transactions":[{"id":"old","description":"Book","date":"2024-01-05","amount":"12","type":"expense","isPaid":true,"lastModified":5}],"version":"1.0"}`))
	require.NoError(t, err)

	var ids []string
	for _, tx := range dst.Transactions() {
		ids = append(ids, tx.ID)
	}
	assert.ElementsMatch(t, []string{local.ID, "old"}, ids)
}

func TestFiles_GCSLocations(t *testing.T) {
	ctx := context.Background()
	var uploaded []byte
	storage := &fakeStorage{
		UploadFunc: func(ctx context.Context, uri string, data []byte) error {
			assert.Equal(t, "gs://backups/march.json", uri)
			uploaded = data
			return nil
		},
		FetchFunc: func(ctx context.Context, uri string) ([]byte, error) {
			if uri != "gs://backups/march.json" {
				return nil, errors.New("object not found")
			}
			return uploaded, nil
		},
	}
	files := NewFiles(storage)

	require.NoError(t, files.Write(ctx, "gs://backups/march.json", []byte(`{}`)))
	data, err := files.Read(ctx, "gs://backups/march.json")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	_, err = files.Read(ctx, "gs://backups/april.json")
	assert.Error(t, err)

	_, err = NewFiles(nil).Read(ctx, "gs://backups/march.json")
	assert.Error(t, err)
}
