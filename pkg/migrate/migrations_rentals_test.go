package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRentalsMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_rentals.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no rentals migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS rentals",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_rentals_order_id ON rentals (order_id)",
		"FOREIGN KEY (rental_id) REFERENCES rentals(id) ON DELETE CASCADE",
		"CHECK (status IN ('active', 'ended'))",
		"CHECK (final_amount_cents >= 0)",
		"DROP TABLE IF EXISTS rentals",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationCoversStatuses(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	for _, status := range []string{"'pending'", "'paid'", "'failed'", "'canceled'", "'refunded'", "'shipped'", "'completed'"} {
		if !strings.Contains(content, status) {
			t.Errorf("orders status check missing %s", status)
		}
	}
}
