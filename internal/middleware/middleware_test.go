package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashToken_DeterministicHex(t *testing.T) {
	a := HashToken("secret-token")
	b := HashToken("secret-token")
	require.Equal(t, a, b)
	require.Len(t, a, 64)
	require.NotEqual(t, a, HashToken("other-token"))
}

func TestBearerToken_FromHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/users/me", nil)
	r.Header.Set("Authorization", "Bearer tok123")
	require.Equal(t, "tok123", BearerToken(r))
}

func TestBearerToken_FromQueryParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=tok456", nil)
	require.Equal(t, "tok456", BearerToken(r))
}

func TestBearerToken_HeaderWinsOverQuery(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=fromquery", nil)
	r.Header.Set("Authorization", "Bearer fromheader")
	require.Equal(t, "fromheader", BearerToken(r))
}

func TestBearerToken_Missing(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/users/me", nil)
	require.Empty(t, BearerToken(r))
}

func TestMaskToken(t *testing.T) {
	require.Equal(t, "abcd***", MaskToken("abcdef123456"))
	require.Equal(t, "****", MaskToken("ab"))
	require.Equal(t, "****", MaskToken(""))
}
