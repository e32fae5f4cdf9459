package errors

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestDumpErrorCapturesPgxDetail(t *testing.T) {
	cause := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "uq_payment_transactions_stripe_object_id",
		TableName:      "payment_transactions",
		Detail:         "Key (stripe_object_id)=(pi_1) already exists.",
		Message:        "duplicate key value violates unique constraint",
	}
	err := Wrap(CodeInternal, fmt.Errorf("persist: %w", cause), "persist transaction")

	d := DumpError(err)
	if d.Code != CodeInternal {
		t.Fatalf("expected internal code, got %s", d.Code)
	}
	if d.PGCode != "23505" || d.PGConstraint != "uq_payment_transactions_stripe_object_id" {
		t.Fatalf("pgx detail not captured: %+v", d)
	}
	if len(d.Chain) < 3 {
		t.Fatalf("expected full wrap chain, got %v", d.Chain)
	}
}

func TestDumpErrorCapturesPqDetail(t *testing.T) {
	cause := &pq.Error{
		Code:       "23503",
		Constraint: "fk_listing",
		Table:      "payment_transactions",
	}
	d := DumpError(fmt.Errorf("persist: %w", cause))
	if d.PGCode != "23503" || d.PGConstraint != "fk_listing" || d.PGTable != "payment_transactions" {
		t.Fatalf("pq detail not captured: %+v", d)
	}
}

func TestDumpErrorNil(t *testing.T) {
	if d := DumpError(nil); d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatalf("nil error must produce an empty dump, got %+v", d)
	}
}
