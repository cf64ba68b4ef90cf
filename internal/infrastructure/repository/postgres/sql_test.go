package postgres

import (
	"database/sql"
	"testing"
	"time"
)

func TestNullTimeRoundTrip(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if got := timePtrToNullTime(nil); got.Valid {
			t.Fatalf("expected invalid NullTime for nil input")
		}
		if got := nullTimeToTimePtr(sql.NullTime{}); got != nil {
			t.Fatalf("expected nil pointer for invalid NullTime")
		}
	})

	t.Run("normalizes to UTC", func(t *testing.T) {
		loc := time.FixedZone("WIB", 7*3600)
		in := time.Date(2025, 10, 4, 22, 0, 0, 0, loc)
		out := nullTimeToTimePtr(timePtrToNullTime(&in))
		if out == nil || !out.Equal(in) {
			t.Fatalf("round trip changed the instant: %v -> %v", in, out)
		}
		if out.Location() != time.UTC {
			t.Fatalf("expected UTC, got %v", out.Location())
		}
	})
}

func TestNullInt64RoundTrip(t *testing.T) {
	if got := intPtrToNullInt64(nil); got.Valid {
		t.Fatalf("expected invalid NullInt64 for nil input")
	}
	if got := nullInt64ToIntPtr(sql.NullInt64{}); got != nil {
		t.Fatalf("expected nil pointer for invalid NullInt64")
	}

	rank := 120543
	out := nullInt64ToIntPtr(intPtrToNullInt64(&rank))
	if out == nil || *out != rank {
		t.Fatalf("round trip changed the value: %d -> %v", rank, out)
	}
}

func TestNullBoolRoundTrip(t *testing.T) {
	if got := nullBoolToBoolPtr(sql.NullBool{}); got != nil {
		t.Fatalf("expected nil pointer for invalid NullBool")
	}

	success := true
	out := nullBoolToBoolPtr(boolPtrToNullBool(&success))
	if out == nil || !*out {
		t.Fatalf("round trip changed the value")
	}
}
