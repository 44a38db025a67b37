package claims

import (
	"database/sql"
	"fmt"
)

// Incidents are immutable after insert except for the claim_id
// backreference set at claim creation.
const incidentsTable = `
CREATE TABLE IF NOT EXISTS incidents (
    id VARCHAR(36) PRIMARY KEY,
    kind ENUM('delay', 'missed_stop', 'no_arrival') NOT NULL,
    line_number VARCHAR(16) NOT NULL,
    station_name VARCHAR(256) NOT NULL,
    operator_id VARCHAR(64) NOT NULL,
    scheduled_at DATETIME NOT NULL,
    observed_at DATETIME NULL,
    delay_minutes INT NOT NULL DEFAULT 0,
    damage_type VARCHAR(32) NOT NULL DEFAULT 'none',
    damage_amount DECIMAL(10,2) NOT NULL DEFAULT 0,
    damage_description TEXT,
    reporter_name VARCHAR(256) NOT NULL,
    reporter_email VARCHAR(256) NOT NULL,
    reporter_location VARCHAR(256),
    gps_accuracy DOUBLE NULL,
    presence_verdict VARCHAR(64) NULL,
    receipt_count INT NOT NULL DEFAULT 0,
    claim_id VARCHAR(36) NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    INDEX idx_operator (operator_id),
    INDEX idx_claim (claim_id)
)`

// The claim amount is locked at creation time; admin actions and the
// escalation scheduler only ever touch status.
const claimsTable = `
CREATE TABLE IF NOT EXISTS claims (
    id VARCHAR(36) PRIMARY KEY,
    operator_id VARCHAR(64) NOT NULL,
    amount DECIMAL(10,2) NOT NULL,
    status ENUM('submitted', 'under_review', 'approved', 'rejected', 'paid', 'in_court') NOT NULL DEFAULT 'submitted',
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    INDEX idx_operator (operator_id),
    INDEX idx_status (status)
)`

// InitializeSchema creates the incident and claim tables if missing.
func InitializeSchema(db *sql.DB) error {
	for _, stmt := range []string{incidentsTable, claimsTable} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create claims schema: %w", err)
		}
	}
	return nil
}
