package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abubuhammad/georgy-marketplace-backend/pkg/migrate"
)

func TestMigrationsDirectoryIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations dir: %v", err)
	}
}

func TestPaymentsMigrationEnforcesSplitInvariant(t *testing.T) {
	content := readMigration(t, "*_create_orders_and_payments.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS payments",
		"CHECK (platform_cut_cents + seller_net_cents = amount_cents)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_payments_reference",
		"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
		"CHECK (platform_percentage + seller_percentage = 1)",
		"DROP TABLE IF EXISTS payments",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRefundsMigrationEnforcesOneActiveRefundPerOrder(t *testing.T) {
	content := readMigration(t, "*_create_shipments_and_refunds.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_refunds_active_order ON refunds(order_id) WHERE status <> 'rejected'",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_shipments_order ON shipments(order_id)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationHasDedupeConstraint(t *testing.T) {
	content := readMigration(t, "*_create_payouts_ledger_outbox.sql")

	checks := []string{
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_outbox_events_event_aggregate",
		"ALTER TABLE payments ADD CONSTRAINT fk_payments_payout",
		"CREATE TABLE IF NOT EXISTS ledger_entries",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
