package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/finquery/finquery/internal/config"
	"github.com/finquery/finquery/internal/db"
)

var testTables = []string{
	"response_cache",
	"route_cache",
	"tool_cache",
	"feature_store",
	"price_history",
	"fundamentals",
}

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "finquery",
		Password: "finquery_pass",
		DBName:   "finquery_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	for _, table := range testTables {
		if _, err := conn.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// Embedding pads a direction prefix out to the schema's vector width.
func Embedding(prefix ...float32) []float32 {
	out := make([]float32, 768)
	copy(out, prefix)
	return out
}
