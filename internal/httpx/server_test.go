package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-bookstore-ledger/internal/auth"
	"github.com/ariefcatur/go-bookstore-ledger/internal/bookstore"
	"github.com/ariefcatur/go-bookstore-ledger/internal/commerce"
	"github.com/ariefcatur/go-bookstore-ledger/internal/logger"
	"github.com/ariefcatur/go-bookstore-ledger/internal/memstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type client struct {
	t *testing.T
	h http.Handler
}

func newClient(t *testing.T) *client {
	t.Helper()
	opts := commerce.DefaultOptions()
	opts.ReserveCapitalOnCreate = false
	opts.BcryptCost = bcrypt.MinCost
	svc := commerce.New(memstore.New(), nil, nil, opts)
	svc.Log = logger.Discard()
	return &client{t: t, h: NewRouter(svc, auth.NewTokenManager(testSecret, time.Hour), logger.Discard())}
}

func (c *client) do(method, path, token string, body any, hdr ...string) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decodeBody[map[string]any](t, rec)["message"].(string)
}

func (c *client) register(body registerReq) authResp {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/auth/register", "", body)
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[authResp](c.t, rec)
}

func (c *client) owner() authResp { return c.ownerAs("olive@example.com") }

func (c *client) ownerAs(email string) authResp {
	return c.register(registerReq{
		Name: "Olive", Email: email, Password: "secret1",
		Role: string(bookstore.RoleOwner), StoreName: "Paper Cuts", Location: "Jakarta",
	})
}

func (c *client) user(email string) authResp {
	return c.register(registerReq{Name: "Uma", Email: email, Password: "secret1"})
}

func (c *client) createBook(token string, price string, copies int) bookstore.Book {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/books", token, map[string]any{
		"title": "Go in Practice", "author": "A. Gopher", "publishYear": 2020, "description": "Field notes",
		"copies": copies, "price": price, "genre": []string{"Science"},
	})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeBody[struct {
		Data bookstore.Book `json:"data"`
	}](c.t, rec)
	return resp.Data
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(decimal.RequireFromString(want)), "want %s, got %s", want, got)
}

func TestPurchaseFlow(t *testing.T) {
	c := newClient(t)
	own := c.owner()
	require.NotNil(t, own.Store)
	assert.NotEmpty(t, own.Token)

	rec := c.do(http.MethodPost, "/owner/stores/"+own.Store.ID+"/deposit", own.Token, map[string]any{"amount": "1000"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Deposit successful", message(t, rec))
	book := c.createBook(own.Token, "50", 10)

	usr := c.user("uma@example.com")
	rec = c.do(http.MethodPost, "/users/me/deposit", usr.Token, map[string]any{"amount": 200})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/books/"+book.ID+"/buy", usr.Token, buyReq{Quantity: intPtr(3)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[commerce.BuyResult](t, rec)
	require.NotNil(t, res.Order)
	assert.Equal(t, 3, res.Order.Quantity)
	assertMoney(t, "1015", res.StoreBalance)

	rec = c.do(http.MethodGet, "/users/me", usr.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assertMoney(t, "50", decodeBody[bookstore.User](t, rec).Balance)

	rec = c.do(http.MethodGet, "/books/"+book.ID, usr.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, decodeBody[bookstore.Book](t, rec).Copies)

	rec = c.do(http.MethodGet, "/users/me/orders", usr.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]bookstore.Order](t, rec), 1)

	rec = c.do(http.MethodGet, "/users/me/transactions", usr.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	utx := decodeBody[txList](t, rec)
	assert.Equal(t, 2, utx.TotalTransactions)
	assert.Len(t, utx.Transactions, 2)
	assert.Nil(t, utx.StoreBalance)
	assert.NotContains(t, rec.Body.String(), "storeBalance")

	rec = c.do(http.MethodGet, "/owner/stores/"+own.Store.ID+"/transactions", own.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stx := decodeBody[txList](t, rec)
	assert.Equal(t, 2, stx.TotalTransactions)
	assert.Len(t, stx.Transactions, 2)
	require.NotNil(t, stx.StoreBalance)
	assertMoney(t, "1015", *stx.StoreBalance)

	rec = c.do(http.MethodGet, "/owner/stores/"+own.Store.ID+"/ledger/verify", own.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["ok"])

	rec = c.do(http.MethodGet, "/books?storeId="+own.Store.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[struct {
		Count int              `json:"count"`
		Data  []bookstore.Book `json:"data"`
	}](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Len(t, list.Data, 1)

	rec = c.do(http.MethodPost, "/users/me/withdraw", usr.Token, map[string]any{"amount": "10"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Withdrawal successful", message(t, rec))
}

func TestBuyWithoutQuantityBuysOneCopy(t *testing.T) {
	c := newClient(t)
	own := c.owner()
	book := c.createBook(own.Token, "10", 5)
	usr := c.user("uma@example.com")
	c.do(http.MethodPost, "/users/me/deposit", usr.Token, map[string]any{"amount": "100"})

	for _, body := range []any{`{}`, nil} {
		rec := c.do(http.MethodPost, "/books/"+book.ID+"/buy", usr.Token, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, 1, decodeBody[commerce.BuyResult](t, rec).Order.Quantity)
	}

	rec := c.do(http.MethodGet, "/books/"+book.ID, usr.Token, nil)
	assert.Equal(t, 3, decodeBody[bookstore.Book](t, rec).Copies)
}

func TestCreateBookRequiresEveryField(t *testing.T) {
	c := newClient(t)
	own := c.owner()

	full := map[string]any{
		"title": "Go in Practice", "author": "A. Gopher", "publishYear": 2020, "description": "Field notes",
		"copies": 1, "price": "10",
	}
	for _, field := range []string{"price", "copies", "publishYear", "description"} {
		t.Run(field, func(t *testing.T) {
			body := map[string]any{}
			for k, v := range full {
				if k != field {
					body[k] = v
				}
			}
			rec := c.do(http.MethodPost, "/books", own.Token, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			resp := decodeBody[map[string]any](t, rec)
			assert.Equal(t, "Missing required fields", resp["message"])
			assert.Equal(t, field, resp["field"])
		})
	}

	rec := c.do(http.MethodGet, "/books", "", nil)
	assert.Equal(t, float64(0), decodeBody[map[string]any](t, rec)["count"])
}

func TestBuyReplaysIdempotencyKey(t *testing.T) {
	c := newClient(t)
	own := c.owner()
	book := c.createBook(own.Token, "10", 5)
	usr := c.user("uma@example.com")
	c.do(http.MethodPost, "/users/me/deposit", usr.Token, map[string]any{"amount": "100"})

	first := c.do(http.MethodPost, "/books/"+book.ID+"/buy", usr.Token, buyReq{Quantity: intPtr(2)}, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	again := c.do(http.MethodPost, "/books/"+book.ID+"/buy", usr.Token, buyReq{Quantity: intPtr(2)}, "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusOK, again.Code, again.Body.String())

	a, b := decodeBody[commerce.BuyResult](t, first), decodeBody[commerce.BuyResult](t, again)
	assert.Equal(t, a.Order.ID, b.Order.ID)
	assert.True(t, b.Replayed)

	other := c.do(http.MethodPost, "/books/"+book.ID+"/buy", usr.Token, buyReq{Quantity: intPtr(1)}, "Idempotency-Key", "k-1")
	assert.Equal(t, http.StatusConflict, other.Code)
	assert.Equal(t, "Idempotency key already used for a different purchase", message(t, other))

	rec := c.do(http.MethodGet, "/users/me", usr.Token, nil)
	assertMoney(t, "80", decodeBody[bookstore.User](t, rec).Balance)
}

func TestErrorStatuses(t *testing.T) {
	c := newClient(t)
	own := c.owner()
	book := c.createBook(own.Token, "10", 1)
	usr := c.user("uma@example.com")
	rival := c.ownerAs("rival@example.com")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		code   int
		msg    string
	}{
		{"anonymous buy", http.MethodPost, "/books/" + book.ID + "/buy", "", buyReq{Quantity: intPtr(1)}, http.StatusUnauthorized, "Authentication required"},
		{"garbage token", http.MethodGet, "/users/me", "not-a-token", nil, http.StatusUnauthorized, "Invalid or expired token"},
		{"user creates book", http.MethodPost, "/books", usr.Token, map[string]any{"title": "T", "author": "A", "publishYear": 2020, "copies": 1, "price": "1"}, http.StatusForbidden, "Owner access required"},
		{"owner buys", http.MethodPost, "/books/" + book.ID + "/buy", own.Token, buyReq{Quantity: intPtr(1)}, http.StatusForbidden, "User access required"},
		{"unknown book", http.MethodGet, "/books/nope", usr.Token, nil, http.StatusNotFound, "Book not found"},
		{"too many copies", http.MethodPost, "/books/" + book.ID + "/buy", usr.Token, buyReq{Quantity: intPtr(2)}, http.StatusBadRequest, "Not enough copies available"},
		{"no funds", http.MethodPost, "/books/" + book.ID + "/buy", usr.Token, buyReq{Quantity: intPtr(1)}, http.StatusBadRequest, "Insufficient user balance"},
		{"bad quantity", http.MethodPost, "/books/" + book.ID + "/buy", usr.Token, buyReq{Quantity: intPtr(0)}, http.StatusBadRequest, "Invalid quantity"},
		{"withdraw too much", http.MethodPost, "/users/me/withdraw", usr.Token, map[string]any{"amount": "5"}, http.StatusBadRequest, "Insufficient balance"},
		{"foreign store", http.MethodPost, "/owner/stores/" + rival.Store.ID + "/deposit", own.Token, map[string]any{"amount": "5"}, http.StatusForbidden, "Not your store"},
		{"empty stock body", http.MethodPut, "/books/" + book.ID + "/stock", own.Token, map[string]any{}, http.StatusBadRequest, "Invalid copies value"},
		{"empty patch", http.MethodPut, "/books/" + book.ID, own.Token, map[string]any{}, http.StatusBadRequest, "Nothing to update"},
		{"unknown store", http.MethodPost, "/owner/stores/nope/deposit", own.Token, map[string]any{"amount": "5"}, http.StatusNotFound, "Store not found"},
		{"wrong password", http.MethodPost, "/auth/login", "", loginReq{Email: "uma@example.com", Password: "nope123"}, http.StatusUnauthorized, "Invalid credentials"},
		{"duplicate email", http.MethodPost, "/auth/register", "", registerReq{Name: "U", Email: "UMA@example.com", Password: "secret1"}, http.StatusConflict, "User already exists"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
			assert.Equal(t, tc.msg, message(t, rec))
		})
	}
}

func TestMalformedRequests(t *testing.T) {
	c := newClient(t)
	usr := c.user("uma@example.com")

	rec := c.do(http.MethodPost, "/users/me/deposit", usr.Token, `{"amount": "5", "extra": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "body", decodeBody[map[string]any](t, rec)["field"])

	rec = c.do(http.MethodPost, "/users/me/deposit", usr.Token, `{"amount": "5"} {}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(http.MethodPost, "/users/me/deposit", usr.Token, map[string]any{"amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid deposit amount", message(t, rec))

	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	out := httptest.NewRecorder()
	c.h.ServeHTTP(out, req)
	assert.Equal(t, http.StatusUnauthorized, out.Code)
	assert.Equal(t, "Invalid authorization header", message(t, out))
}

func TestOwnerBookLifecycle(t *testing.T) {
	c := newClient(t)
	own := c.owner()
	c.do(http.MethodPost, "/owner/stores/"+own.Store.ID+"/deposit", own.Token, map[string]any{"amount": "100"})
	book := c.createBook(own.Token, "20", 5)

	rec := c.do(http.MethodPut, "/books/"+book.ID, own.Token, map[string]any{"title": "Go in Action"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Book updated", message(t, rec))

	rec = c.do(http.MethodPut, "/books/"+book.ID+"/stock", own.Token, stockReq{Copies: intPtr(8)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	upd := decodeBody[bookResp](t, rec)
	assert.Equal(t, 8, upd.Data.Copies)
	assert.Equal(t, "Stock updated", upd.Message)

	rec = c.do(http.MethodGet, "/stores/me", own.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, own.Store.ID, decodeBody[bookstore.Store](t, rec).ID)

	rec = c.do(http.MethodDelete, "/books/"+book.ID, own.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Book deleted", message(t, rec))

	rec = c.do(http.MethodGet, "/books/"+book.ID, own.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	c := newClient(t)
	c.user("uma@example.com")

	rec := c.do(http.MethodPost, "/auth/login", "", loginReq{Email: " Uma@Example.com ", Password: "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeBody[authResp](t, rec)
	require.NotEmpty(t, resp.Token)

	rec = c.do(http.MethodGet, "/users/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "uma@example.com", decodeBody[bookstore.User](t, rec).Email)
}

func TestHealthz(t *testing.T) {
	c := newClient(t)
	rec := c.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func intPtr(n int) *int { return &n }
