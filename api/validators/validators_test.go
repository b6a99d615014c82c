package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/foodapp-backend/pkg/errors"
)

type sampleBody struct {
	MealID   string `json:"meal_id" validate:"required,uuid"`
	Quantity *int   `json:"quantity" validate:"omitempty,min=1"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"meal_id":"nope","quantity":0}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	require.Error(t, err)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be a valid UUID", details["meal_id"])
	require.Equal(t, "must be at least 1", details["quantity"])
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"meal_id":"9b2f8a7e-2c1d-4c55-9c1a-2d4b1f5e6a70","price":"1"}`))
	var body sampleBody
	require.True(t, pkgerrors.Is(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var body sampleBody
	require.True(t, pkgerrors.Is(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, v)
}

func TestParseQueryString(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?search=%20rice%20", nil)
	v, err := ParseQueryString(req, "search", 10)
	require.NoError(t, err)
	require.Equal(t, "rice", v)

	req = httptest.NewRequest(http.MethodGet, "/?search="+strings.Repeat("a", 11), nil)
	_, err = ParseQueryString(req, "search", 10)
	require.Error(t, err)
}

func TestParsePathUUID(t *testing.T) {
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("orderId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	id, err := ParsePathUUID(withParam("9b2f8a7e-2c1d-4c55-9c1a-2d4b1f5e6a70"), "orderId")
	require.NoError(t, err)
	require.Equal(t, "9b2f8a7e-2c1d-4c55-9c1a-2d4b1f5e6a70", id.String())

	_, err = ParsePathUUID(withParam("abc"), "orderId")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = ParsePathUUID(withParam(""), "orderId")
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"meal_id":"9b2f8a7e-2c1d-4c55-9c1a-2d4b1f5e6a70"}{"meal_id":"x"}`))
	var body sampleBody
	require.True(t, pkgerrors.Is(DecodeJSONBody(req, &body), pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsTypeMismatchField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"meal_id":"9b2f8a7e-2c1d-4c55-9c1a-2d4b1f5e6a70","quantity":"two"}`))
	var body sampleBody
	typed := pkgerrors.As(DecodeJSONBody(req, &body))
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be int", details["quantity"])
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	payload := `{"meal_id":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	var body sampleBody
	typed := pkgerrors.As(DecodeJSONBody(req, &body))
	require.NotNil(t, typed)
	require.Equal(t, "request body too large", typed.Message())
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "abc", SanitizeString("  abcdef ", 3))
	require.Equal(t, "abcdef", SanitizeString("abcdef", 0))
	require.Equal(t, "no onions\nextra pepper", SanitizeString("no onions\nextra\x00 pepper", 0))
	require.Equal(t, "épic", SanitizeString("épicé", 4))
}
