package store

import (
	"testing"
	"time"
)

func TestRebindPostgresPlaceholders(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	got := s.rebind("UPDATE t SET a = ?, b = ? WHERE id = ? AND status IN (?, ?)")
	want := "UPDATE t SET a = $1, b = $2 WHERE id = $3 AND status IN ($4, $5)"
	if got != want {
		t.Fatalf("rebind mismatch:\n got %s\nwant %s", got, want)
	}

	lite := &Store{driver: DriverSQLite}
	if q := lite.rebind("SELECT ?"); q != "SELECT ?" {
		t.Fatalf("sqlite query should be unchanged, got %q", q)
	}
}

func TestTimeLayoutSortsLexically(t *testing.T) {
	a := formatTime(mustParse(t, "2026-01-01T00:00:00.1Z"))
	b := formatTime(mustParse(t, "2026-01-01T00:00:00.12Z"))
	if !(a < b) {
		t.Fatalf("expected %q < %q", a, b)
	}
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}
