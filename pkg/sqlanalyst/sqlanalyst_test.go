package sqlanalyst

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagus/enterprise-agents/pkg/interfaces"
	"github.com/tagus/enterprise-agents/pkg/logging"
	"github.com/tagus/enterprise-agents/pkg/retry"
)

func TestMessages(t *testing.T) {
	turn, _ := json.Marshal(Turn{Text: "Total sales by region", SQL: "SELECT region, SUM(amount) FROM sales GROUP BY 1"})
	history := []interfaces.Message{
		{Role: interfaces.MessageRoleAssistant, Content: "Hello!"},
		{Role: interfaces.MessageRoleUser, Content: "sales by region"},
		{Role: interfaces.MessageRoleAssistant, Content: string(turn)},
	}

	msgs := Messages(history, "only 2024")
	require.Len(t, msgs, 3)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "analyst", msgs[1].Role)
	assert.Equal(t, []Content{
		{Type: "text", Text: "Total sales by region"},
		{Type: "sql", Statement: "SELECT region, SUM(amount) FROM sales GROUP BY 1"},
	}, msgs[1].Content)
	assert.Equal(t, Message{Role: "user", Content: []Content{{Type: "text", Text: "only 2024"}}}, msgs[2])
}

func TestWarehouseQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT day, region, amount FROM sales").
		WillReturnRows(sqlmock.NewRows([]string{"day", "region", "amount"}).
			AddRow(day, "North", []byte("120.50")).
			AddRow(day.Add(24*time.Hour), "South", []byte("99.00")).
			AddRow(day.Add(48*time.Hour), "East", []byte("1.00")))

	w := NewWarehouse(db, WithRowLimit(2), WithWarehouseLogger(logging.NewNoop()))
	out, err := w.Query(context.Background(), "SELECT day, region, amount FROM sales")
	require.NoError(t, err)
	assert.Equal(t,
		`[{"day":"2024-03-01","region":"North","amount":"120.50"},{"day":"2024-03-02","region":"South","amount":"99.00"}]`,
		out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWarehouseQueryEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"a"}))
	out, err := NewWarehouse(db).Query(context.Background(), "SELECT a FROM t")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)
}

func TestDriverFor(t *testing.T) {
	tests := []struct {
		dsn    string
		driver string
		source string
	}{
		{"postgres://u:p@host/db?sslmode=disable", "postgres", "postgres://u:p@host/db?sslmode=disable"},
		{"mysql://u:p@tcp(host:3306)/db", "mysql", "u:p@tcp(host:3306)/db?parseTime=true"},
		{"mysql://u:p@tcp(host:3306)/db?tls=true", "mysql", "u:p@tcp(host:3306)/db?tls=true&parseTime=true"},
	}
	for _, tt := range tests {
		driver, source, err := driverFor(tt.dsn)
		require.NoError(t, err)
		assert.Equal(t, tt.driver, driver)
		assert.Equal(t, tt.source, source)
	}

	_, _, err := driverFor("sqlite://file.db")
	assert.Error(t, err)
}

type fakeQuerier struct {
	rows  string
	err   error
	calls int
}

func (f *fakeQuerier) Query(context.Context, string) (string, error) {
	f.calls++
	return f.rows, f.err
}

func analystServer(t *testing.T, content []Content, status int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req analystRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "@db.schema.stage/model.yaml", req.SemanticModelFile)

		w.Header().Set("X-Request-Id", "req-1")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte("bad request"))
			return
		}
		_ = json.NewEncoder(w).Encode(analystResponse{Message: Message{Role: "analyst", Content: content}})
	}))
}

func TestAnalystRun(t *testing.T) {
	ctx := context.Background()

	t.Run("executes generated sql", func(t *testing.T) {
		server := analystServer(t, []Content{
			{Type: "text", Text: "Sales per region"},
			{Type: "sql", Statement: "SELECT region, total FROM sales"},
		}, http.StatusOK)
		defer server.Close()

		wh := &fakeQuerier{rows: `[{"region":"North","total":1}]`}
		a := New(server.URL, "secret", "@db.schema.stage/model.yaml", wh, WithLogger(logging.NewNoop()))
		res, err := a.Run(ctx, nil, "sales per region")
		require.NoError(t, err)
		assert.Equal(t, &Result{
			RequestID:  "req-1",
			HumanQuery: "Sales per region",
			SQL:        "SELECT region, total FROM sales",
			SQLResult:  `[{"region":"North","total":1}]`,
		}, res)
	})

	t.Run("no sql in reply", func(t *testing.T) {
		server := analystServer(t, []Content{{Type: "text", Text: "Please clarify"}}, http.StatusOK)
		defer server.Close()

		wh := &fakeQuerier{}
		a := New(server.URL, "secret", "@db.schema.stage/model.yaml", wh, WithLogger(logging.NewNoop()))
		res, err := a.Run(ctx, nil, "hmm")
		require.NoError(t, err)
		assert.Equal(t, UninterpretedQuery, res.HumanQuery)
		assert.Equal(t, PlaceholderSQL, res.SQL)
		assert.Equal(t, EmptyResult, res.SQLResult)
		assert.Zero(t, wh.calls)
	})

	t.Run("service error", func(t *testing.T) {
		server := analystServer(t, nil, http.StatusBadRequest)
		defer server.Close()

		a := New(server.URL, "secret", "@db.schema.stage/model.yaml", &fakeQuerier{}, WithLogger(logging.NewNoop()))
		_, err := a.Run(ctx, nil, "q")
		assert.ErrorContains(t, err, "status 400")
	})

	t.Run("warehouse error", func(t *testing.T) {
		server := analystServer(t, []Content{{Type: "sql", Statement: "SELECT 1"}}, http.StatusOK)
		defer server.Close()

		wh := &fakeQuerier{err: errors.New("warehouse down")}
		a := New(server.URL, "secret", "@db.schema.stage/model.yaml", wh,
			WithLogger(logging.NewNoop()),
			WithRetryPolicy(retry.FixedPolicy(2, time.Millisecond)))
		_, err := a.Run(ctx, nil, "q")
		assert.ErrorContains(t, err, "warehouse down")
		assert.Equal(t, 2, wh.calls)
	})
}
