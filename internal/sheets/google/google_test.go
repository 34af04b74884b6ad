package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finplan/internal/core"
	"finplan/internal/storage"
)

type appendCall struct {
	path  string
	query string
	rows  [][]any
}

type fakeSheets struct {
	mu    sync.Mutex
	calls []appendCall
	fail  bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.fail {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}
	var body struct {
		Values [][]any `json:"values"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.calls = append(f.calls, appendCall{path: r.URL.Path, query: r.URL.RawQuery, rows: body.Values})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'2024 Records'!A7:H7","updatedRows":1}}`))
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{
		SpreadsheetID: "sheet-123",
		SheetName:     "Records",
		Endpoint:      srv.URL + "/",
		HTTPClient:    srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func testEntry() storage.Entry {
	return storage.Entry{
		ID:            "6f1c0d9e-0000-4000-8000-000000000001",
		Kind:          storage.KindExpense,
		Amount:        decimal.RequireFromString("45.50"),
		Ref:           "Groceries",
		PaymentMethod: "Cash",
		Date:          core.NewDate(2024, 3, 1),
		Description:   "weekly shop",
		SubmittedAt:   time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC),
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "sheet-123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing service account credentials")
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), Config{
		SpreadsheetID:   "sheet-123",
		CredentialsFile: t.TempDir() + "/absent.json",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read service account file")
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "missing GOOGLE_SPREADSHEET_ID", err.Error())
}

func TestClient_Append(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	ref, err := c.Append(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Equal(t, "'2024 Records'!A7:H7", ref)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.True(t, strings.HasPrefix(call.path, "/v4/spreadsheets/sheet-123/values/"), call.path)
	assert.True(t, strings.HasSuffix(call.path, ":append"), call.path)
	assert.Contains(t, call.path, "2024 Records")
	assert.Contains(t, call.query, "valueInputOption=USER_ENTERED")
	assert.Contains(t, call.query, "insertDataOption=INSERT_ROWS")

	require.Len(t, call.rows, 1)
	assert.Equal(t, []any{
		"2024-03-01",
		"expense",
		"Groceries",
		"Cash",
		45.5,
		"weekly shop",
		"6f1c0d9e-0000-4000-8000-000000000001",
		"2024-03-01T18:30:00Z",
	}, call.rows[0])
}

func TestClient_AppendIncomeLeavesPaymentMethodBlank(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	e := testEntry()
	e.Kind = storage.KindIncome
	e.Ref = "Freelance"
	e.PaymentMethod = ""

	_, err := c.Append(context.Background(), e)
	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	row := fake.calls[0].rows[0]
	assert.Equal(t, "income", row[1])
	assert.Equal(t, "Freelance", row[2])
	assert.Equal(t, "", row[3])
}

func TestClient_AppendErrors(t *testing.T) {
	t.Run("server failure", func(t *testing.T) {
		c := newTestClient(t, &fakeSheets{fail: true})
		_, err := c.Append(context.Background(), testEntry())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "append to sheet 2024 Records")
	})

	t.Run("missing journal id", func(t *testing.T) {
		c := newTestClient(t, &fakeSheets{})
		e := testEntry()
		e.ID = ""
		_, err := c.Append(context.Background(), e)
		require.Error(t, err)
	})

	t.Run("uninitialized service", func(t *testing.T) {
		c := &Client{spreadsheetID: "sheet-123"}
		_, err := c.Append(context.Background(), testEntry())
		require.Error(t, err)
	})
}

func TestClient_SheetNameFallsBackToSubmissionYear(t *testing.T) {
	c := &Client{sheetBase: "Records"}
	e := testEntry()
	e.Date = core.Date{}
	e.SubmittedAt = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025 Records", c.sheetName(e))
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base     string
		year     int
		expected string
	}{
		{"Records", 2025, "2025 Records"},
		{"Dashboard", 2024, "2024 Dashboard"},
		{"", 2025, ""},
		{"  Records  ", 2025, "2025 Records"},
		{"2025 Already Prefixed", 2025, "2025 Already Prefixed"},
		{"2024 Old Year", 2025, "2024 Old Year"},
		{"123 Not A Year", 2025, "2025 123 Not A Year"},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			assert.Equal(t, tt.expected, yearPrefixedName(tt.base, tt.year))
		})
	}
}
