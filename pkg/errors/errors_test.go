package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestTaxonomy(t *testing.T) {
	tests := map[Code]Metadata{
		CodeValidation:   {http.StatusBadRequest, false, "validation failed", true},
		CodeUnauthorized: {http.StatusUnauthorized, false, "authentication required", false},
		CodeForbidden:    {http.StatusForbidden, false, "access denied", false},
		CodeNotFound:     {http.StatusNotFound, false, "resource not found", false},
		CodeConflict:     {http.StatusConflict, true, "conflict detected, retry the request", false},
		CodeEmptyCart:    {http.StatusBadRequest, false, "cart is empty", false},
		CodeInvalidState: {http.StatusUnprocessableEntity, false, "status transition not allowed", true},
		CodeIdempotency:  {http.StatusConflict, false, "idempotency key reused", true},
		CodeRateLimit:    {http.StatusTooManyRequests, false, "rate limit exceeded", false},
		CodeInternal:     {http.StatusInternalServerError, true, "internal server error", false},
		CodeDependency:   {http.StatusServiceUnavailable, true, "dependency unavailable", true},
	}
	for code, want := range tests {
		require.Equal(t, want, MetadataFor(code), code)
	}
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestErrorFormattingAndCause(t *testing.T) {
	plain := Newf(CodeValidation, "missing %s", "meal_id")
	require.Equal(t, "VALIDATION_ERROR: missing meal_id", plain.Error())
	require.Nil(t, plain.Details())
	require.Equal(t, map[string]string{"meal_id": "required"}, plain.WithDetails(map[string]string{"meal_id": "required"}).Details())

	cause := stdErrors.New("deadlock")
	wrapped := Wrapf(CodeConflict, cause, "checkout attempt %d", 3)
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "CONFLICT: checkout attempt 3: deadlock", wrapped.Error())
	require.Equal(t, "checkout attempt 3", wrapped.Message())

	require.Nil(t, Wrap(CodeInternal, nil, "x").Unwrap())

	var nilErr *Error
	require.Equal(t, CodeInternal, nilErr.Code())
	require.Empty(t, nilErr.Error())
	require.Nil(t, nilErr.WithDetails("ignored"))
}

func TestClassification(t *testing.T) {
	err := fmt.Errorf("checkout: %w", New(CodeEmptyCart, "cart has no items"))
	require.True(t, Is(err, CodeEmptyCart))
	require.False(t, Is(err, CodeNotFound))
	require.Equal(t, CodeEmptyCart, CodeOf(err))
	require.Equal(t, http.StatusBadRequest, HTTPStatus(err))
	require.False(t, Retryable(err))

	plain := stdErrors.New("plain")
	require.Nil(t, As(plain))
	require.Nil(t, As(nil))
	require.False(t, Is(plain, CodeInternal))
	require.Equal(t, CodeInternal, CodeOf(plain))
	require.Equal(t, http.StatusInternalServerError, HTTPStatus(plain))
	require.True(t, Retryable(Wrap(CodeDependency, plain, "redis")))
}

func TestDumpReadsPostgresDrivers(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access", TableName: "orders"}
	dump := Dump(Wrap(CodeConflict, pgxErr, "checkout"))
	require.Equal(t, CodeConflict, dump.Code)
	require.True(t, dump.Retryable)
	require.Equal(t, "40001", dump.PGCode)
	require.Equal(t, "orders", dump.PGTable)
	require.Len(t, dump.Chain, 2)

	pqErr := &pq.Error{Code: "23503", Constraint: "cart_items_meal_id_fkey"}
	require.Equal(t, "23503", SQLState(fmt.Errorf("insert: %w", pqErr)))
	require.Equal(t, "cart_items_meal_id_fkey", Dump(pqErr).PGConstraint)

	require.Empty(t, SQLState(stdErrors.New("plain")))
	require.Equal(t, ErrorDump{}, Dump(nil))
}
