package sales

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 0, nil)
}

func writeEnvelope(w http.ResponseWriter, code int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	raw, _ := json.Marshal(data)
	_ = json.NewEncoder(w).Encode(envelope{Success: code < 300, Message: msg, Data: raw})
}

func TestClient_Plans(t *testing.T) {
	var gotPath, gotCache, gotBust string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCache = r.Header.Get("Cache-Control")
		gotBust = r.URL.Query().Get("_t")
		writeEnvelope(w, http.StatusOK, []Plan{
			{ID: 1, Name: "Mensal", Price: 15, Limit: 1, Validate: 30},
			{ID: 2, Name: "Duplo", Price: 25, Limit: 2, Validate: 30, Protocols: []string{"ssh", "v2ray"}},
		}, "")
	})

	plans, err := c.Plans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Duplo", plans[1].Name)
	assert.Equal(t, []string{"ssh", "v2ray"}, plans[1].Protocols)
	assert.Equal(t, pathPlans, gotPath)
	assert.Equal(t, "no-cache, no-store, must-revalidate", gotCache)
	assert.NotEmpty(t, gotBust)
}

func TestClient_PlansEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, nil, "")
	})
	plans, err := c.Plans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plans)
	assert.NotNil(t, plans)
}

func TestClient_ErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"success":false,"message":"plan disabled"}`, "plan disabled"},
		{"error", `{"success":false,"error":"bad request"}`, "bad request"},
		{"none", `{}`, "HTTP 400: Bad Request"},
		{"not json", `oops`, "HTTP 400: Bad Request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Plans(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, http.StatusBadRequest, se.Code)
		})
	}
}

func TestClient_CreatePurchase(t *testing.T) {
	var got PurchaseRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, pathPurchase, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"data":{"invoice_id":"inv-1","payment_id":987,"qr_code":"000201","amount":15}}`))
	})

	p, err := c.CreatePurchase(context.Background(), PurchaseRequest{
		PlanID:        3,
		CustomerEmail: "joao@example.com",
		CustomerName:  "Joao",
	})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", p.InvoiceID)
	assert.Equal(t, ID("987"), p.PaymentID)
	assert.Equal(t, 3, got.PlanID)
	assert.Equal(t, "joao@example.com", got.CustomerEmail)
}

func TestClient_CreatePurchaseIncomplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"invoice_id":"inv-1"}}`))
	})
	_, err := c.CreatePurchase(context.Background(), PurchaseRequest{PlanID: 1, CustomerEmail: "a@b.co"})
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestClient_CreatePurchaseNoData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	_, err := c.CreatePurchase(context.Background(), PurchaseRequest{PlanID: 1, CustomerEmail: "a@b.co"})
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClient_CreatePurchaseRejectsEmail(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	_, err := c.CreatePurchase(context.Background(), PurchaseRequest{PlanID: 1, CustomerEmail: "nope"})
	assert.ErrorIs(t, err, ErrEmailTooShort)
	assert.False(t, called)
}

func TestClient_PaymentStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathStatus+"inv-9", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"invoice_id":"inv-9","payment_id":"p-1","status":"pending"}}`))
	})
	s, err := c.PaymentStatus(context.Background(), "inv-9")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, ID("p-1"), s.PaymentID)
}

func TestClient_PaymentStatusMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":null}`))
	})
	_, err := c.PaymentStatus(context.Background(), "inv-9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Credentials(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathCredentials+"42", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{
			"payment_id":42,"invoice_id":"inv","status":"completed","amount":15,
			"plan":{"name":"Mensal","price":15,"validate_days":30},
			"ssh_credentials":{"username":"u1","password":"p1","limit":1,"expiration_date":"2026-11-18"}}}`))
	})
	cr, err := c.Credentials(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, cr.SSHLogin())
	assert.Equal(t, "u1", cr.SSHLogin().Username)
	assert.Nil(t, cr.V2RayLogin())
	assert.True(t, cr.HasLogin())
	assert.Equal(t, 30, cr.Plan.ValidateDays)
}

func TestCredentials_Legacy(t *testing.T) {
	var cr Credentials
	require.NoError(t, json.Unmarshal([]byte(`{"status":"completed","v2ray":{"uuid":"abc"}}`), &cr))
	require.NotNil(t, cr.V2RayLogin())
	assert.Equal(t, "abc", cr.V2RayLogin().UUID)
	assert.True(t, cr.HasLogin())
}

func TestClient_CheckUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, pathCheckUser) {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path != pathCheckUser+"maria" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"username":"maria","limit_connections":2,"count_connections":1,"expiration_date":"2026-12-01","expiration_days":43}`))
	})

	info, err := c.CheckUser(context.Background(), " maria ")
	require.NoError(t, err)
	assert.Equal(t, 2, info.LimitConnections)
	assert.Equal(t, 43, info.ExpirationDays)

	_, err = c.CheckUser(context.Background(), "joao")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)

	_, err = c.CheckUser(context.Background(), "")
	assert.Error(t, err)
}

func TestClient_NoCacheBust(t *testing.T) {
	var raw string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw = r.URL.RawQuery
		writeEnvelope(w, http.StatusOK, []Plan{}, "")
	})
	c.CacheBust = false
	_, err := c.Plans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestID_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`"abc"`, "abc"},
		{`123`, "123"},
		{`null`, ""},
	}
	for _, tt := range tests {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
		assert.Equal(t, tt.want, id)
	}

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
}
