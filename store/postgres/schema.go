package postgres

// Table is the default accounts table name.
const Table = "authcore_accounts"

// Schema creates the accounts table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS authcore_accounts (
	id                      TEXT PRIMARY KEY,
	email                   TEXT NOT NULL UNIQUE,
	name                    TEXT NOT NULL DEFAULT '',
	role                    TEXT NOT NULL,
	password_hash           TEXT NOT NULL,
	password_history        TEXT[] NOT NULL DEFAULT '{}',
	status                  TEXT NOT NULL,
	status_reason           TEXT NOT NULL DEFAULT '',
	status_at               TIMESTAMPTZ,
	failed_attempts         INTEGER NOT NULL DEFAULT 0,
	verification_token      TEXT NOT NULL DEFAULT '',
	verification_expiry     TIMESTAMPTZ,
	two_factor              TEXT NOT NULL DEFAULT 'disabled',
	totp_secret             TEXT NOT NULL DEFAULT '',
	totp_qr_url             TEXT NOT NULL DEFAULT '',
	backup_codes            TEXT[] NOT NULL DEFAULT '{}',
	last_login_at           TIMESTAMPTZ,
	last_login_ip           TEXT NOT NULL DEFAULT '',
	last_password_change_at TIMESTAMPTZ,
	created_at              TIMESTAMPTZ NOT NULL,
	updated_at              TIMESTAMPTZ NOT NULL,
	version                 BIGINT NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS authcore_accounts_status_idx ON authcore_accounts (status);
`
