package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"creditledger/internal/core"
)

func TestJSONResponseBuilder(t *testing.T) {
	tests := []struct {
		name       string
		build      *JSONResponseBuilder
		wantStatus int
		wantBody   string
		wantHeader map[string]string
	}{
		{
			name:       "body defaults to 200",
			build:      NewJSONResponse().Body(map[string]string{"status": "ok"}),
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "no content writes nothing",
			build:      NewJSONResponse().Status(http.StatusNoContent),
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "validation envelope",
			build:      ValidationErrorResponse([]core.FieldError{{Field: "amount", Message: "Amount is required"}}),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"message":"Validation error","errors":[{"field":"amount","message":"Amount is required"}]}`,
		},
		{
			name:       "plain error omits errors",
			build:      NotFoundError("Credit not found"),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"message":"Credit not found"}`,
		},
		{
			name:       "method not allowed lists methods",
			build:      MethodNotAllowedError(http.MethodGet, http.MethodPost),
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `{"message":"Method not allowed"}`,
			wantHeader: map[string]string{"Allow": "GET, POST"},
		},
		{
			name:       "internal error hides detail",
			build:      InternalServerError(),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"message":"Internal server error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.build.Write(rec)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %s, want %s", got, tt.wantBody)
			}
			for k, v := range tt.wantHeader {
				if got := rec.Header().Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
		})
	}
}

func TestParseMonth(t *testing.T) {
	tests := []struct {
		year, month string
		want        MonthParams
		wantErr     bool
	}{
		{"2025", "6", MonthParams{Year: 2025, Month: 6}, false},
		{"2025", "06", MonthParams{Year: 2025, Month: 6}, false},
		{"2025", "0", MonthParams{}, true},
		{"2025", "13", MonthParams{}, true},
		{"20x5", "6", MonthParams{}, true},
		{"", "6", MonthParams{}, true},
	}
	for _, tt := range tests {
		got, err := ParseMonth(tt.year, tt.month)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMonth(%q, %q) err = %v", tt.year, tt.month, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMonth(%q, %q) = %+v", tt.year, tt.month, got)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  abc": "abc",
		"Basic abc":   "",
		"Bearer ":     "",
		"":            "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if got := bearerToken(req); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
