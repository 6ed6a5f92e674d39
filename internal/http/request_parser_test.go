package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestBodyParser(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		contentType string
		key         string
		want        string
		wantErr     bool
	}{
		{name: "json string", body: `{"description":"  lunch "}`, key: "description", want: "lunch"},
		{name: "json number", body: `{"amount":12.5}`, key: "amount", want: "12.5"},
		{name: "json missing key", body: `{"amount":1}`, key: "description", want: ""},
		{name: "form", body: "amount=3%2C50&type=expense", contentType: "application/x-www-form-urlencoded", key: "amount", want: "3,50"},
		{name: "control characters stripped", body: `{"description":"a\u0000b"}`, key: "description", want: "ab"},
		{name: "empty body", body: "", key: "amount", want: ""},
		{name: "malformed json", body: `{"amount":`, key: "amount", wantErr: true},
		{name: "json content type with array", body: `[1,2]`, contentType: "application/json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			p := NewRequestBodyParser(req)
			err := p.Parse()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Get(tt.key))
		})
	}
}

func TestGetRawKeepsSpaces(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password":" pass word "}`))
	p := NewRequestBodyParser(req)
	require.NoError(t, p.Parse())
	assert.Equal(t, " pass word ", p.GetRaw("password"))
}

func TestParseBodyTooLarge(t *testing.T) {
	body := `{"description":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	assert.Nil(t, parseBody(rec, req), "oversized body")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"":            "",
		"Bearer":      "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, bearerToken(req), header)
	}
}
