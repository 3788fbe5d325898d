package words

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wordmesh/wordmesh-backend/internal/platform/apperr"
)

func TestMapSenseWriteErrorPrimaryConflict(t *testing.T) {
	err := mapSenseWriteError(&pgconn.PgError{
		Code:           pgUniqueViolation,
		ConstraintName: "uq_user_sense_primary",
	})
	if !apperr.IsKind(err, apperr.KindPrimaryConflict) {
		t.Fatalf("kind = %s, want %s", apperr.KindOf(err), apperr.KindPrimaryConflict)
	}
	if apperr.StatusOf(err) != http.StatusConflict {
		t.Fatalf("status = %d, want %d", apperr.StatusOf(err), http.StatusConflict)
	}
}

func TestMapSenseWriteErrorDuplicateText(t *testing.T) {
	err := mapSenseWriteError(&pgconn.PgError{
		Code:           pgUniqueViolation,
		ConstraintName: "uq_user_sense_text",
	})
	if !apperr.IsKind(err, apperr.KindSenseDuplicate) {
		t.Fatalf("kind = %s, want %s", apperr.KindOf(err), apperr.KindSenseDuplicate)
	}
}

func TestMapSenseWriteErrorWrapped(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           pgUniqueViolation,
		ConstraintName: "uq_user_sense_primary",
	}
	err := mapSenseWriteError(wrapErr{pgErr})
	if !apperr.IsKind(err, apperr.KindPrimaryConflict) {
		t.Fatalf("kind = %s, want %s", apperr.KindOf(err), apperr.KindPrimaryConflict)
	}
}

func TestMapSenseWriteErrorPassesThroughOthers(t *testing.T) {
	plain := errors.New("connection reset")
	if got := mapSenseWriteError(plain); !errors.Is(got, plain) {
		t.Fatalf("plain error mapped to %v, want unchanged", got)
	}

	serialization := &pgconn.PgError{Code: "40001"}
	if got := mapSenseWriteError(serialization); got != error(serialization) {
		t.Fatalf("non-unique pg error mapped to %v, want unchanged", got)
	}
}

type wrapErr struct{ err error }

func (w wrapErr) Error() string { return "write user_sense: " + w.err.Error() }
func (w wrapErr) Unwrap() error { return w.err }
