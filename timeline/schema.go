package timeline

import (
	"database/sql"
	"fmt"
)

// Schema contains the claim timeline table. One row per claim; the row is
// seeded when the initial demand letter is confirmed sent (day 0).
const Schema = `
CREATE TABLE IF NOT EXISTS claim_timelines (
    claim_id VARCHAR(36) PRIMARY KEY,
    status ENUM('active', 'paid', 'cancelled', 'complete') NOT NULL DEFAULT 'active',
    initial_sent_at DATETIME NOT NULL,
    stage1_sent_at DATETIME NULL,
    stage2_sent_at DATETIME NULL,
    stage3_sent_at DATETIME NULL,
    emails_sent INT NOT NULL DEFAULT 1,
    last_email_at DATETIME NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    INDEX idx_status (status),
    INDEX idx_initial_sent_at (initial_sent_at)
);
`

// InitializeSchema creates the claim_timelines table if missing.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create claim_timelines table: %w", err)
	}
	return nil
}
