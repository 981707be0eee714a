package marketplace

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveRejectsMalformedCompanyID(t *testing.T) {
	h := NewHandler(slog.Default(), NewResolver(nil, nil, nil, 0), nil)

	for _, raw := range []string{"abc", "", "-3", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/resolve?company_id="+raw+"&channel=SHOPEE&external_sku=EXT-1", nil)
		rr := httptest.NewRecorder()

		h.handleResolve(rr, req)

		require.Equal(t, http.StatusBadRequest, rr.Code, "company_id=%q", raw)
		require.True(t, strings.Contains(rr.Body.String(), "company_id"), "company_id=%q: %s", raw, rr.Body.String())
	}
}
