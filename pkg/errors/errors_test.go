package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	cases := map[Code]struct {
		status    int
		retryable bool
		details   bool
	}{
		CodeValidation:    {status: http.StatusBadRequest, details: true},
		CodeUnauthorized:  {status: http.StatusUnauthorized},
		CodeNotFound:      {status: http.StatusNotFound},
		CodeEmptyCart:     {status: http.StatusNotFound},
		CodeConflict:      {status: http.StatusBadRequest},
		CodeStateConflict: {status: http.StatusBadRequest, details: true},
		CodeIdempotency:   {status: http.StatusConflict, details: true},
		CodeRateLimit:     {status: http.StatusTooManyRequests},
		CodeUpload:        {status: http.StatusBadGateway, retryable: true},
		CodeInternal:      {status: http.StatusInternalServerError, retryable: true},
		CodeDependency:    {status: http.StatusServiceUnavailable, retryable: true, details: true},
	}

	for code, want := range cases {
		t.Run(string(code), func(t *testing.T) {
			meta := MetadataFor(code)
			assert.Equal(t, want.status, meta.HTTPStatus)
			assert.Equal(t, want.retryable, meta.Retryable)
			assert.Equal(t, want.details, meta.DetailsAllowed)
			assert.NotEmpty(t, meta.PublicMessage)
		})
	}

	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestConstructorsAndChain(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing foo", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, map[string]any{"field": "foo"}, base.WithDetails(map[string]any{"field": "foo"}).Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "CONFLICT: ctx: boom", wrapped.Error())
	assert.Nil(t, Wrap(CodeConflict, nil, "ctx").Unwrap())

	outer := fmt.Errorf("outer: %w", New(CodeNotFound, "Cart not found"))
	require.NotNil(t, As(outer))
	assert.Equal(t, "Cart not found", As(outer).Message())
	assert.True(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(stdErrors.New("plain"), CodeNotFound))

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Empty(t, nilErr.Error())
}

func TestDumpCapturesPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_checkout_id", TableName: "orders", Message: "duplicate key value"}
	dump := Dump(Wrap(CodeInternal, pgErr, "insert order"))

	assert.Equal(t, CodeInternal, dump.Code)
	assert.Equal(t, http.StatusInternalServerError, dump.HTTPStatus)
	assert.Equal(t, "23505", dump.PGCode)
	assert.Equal(t, "ux_orders_checkout_id", dump.PGConstraint)
	assert.Len(t, dump.Chain, 2)
	assert.Equal(t, "orders", dump.Fields()["pg_table"])

	pqDump := Dump(fmt.Errorf("create user: %w", &pq.Error{Code: "23505", Constraint: "ux_users_email", Table: "users"}))
	assert.Equal(t, "ux_users_email", pqDump.PGConstraint)
	assert.Empty(t, pqDump.Code)

	plain := Dump(stdErrors.New("timeout")).Fields()
	assert.NotContains(t, plain, "pg_code")
	assert.Equal(t, ErrorDump{}, Dump(nil))
}
