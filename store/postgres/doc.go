// Package postgres is an account.Repository on PostgreSQL through pgx.
//
// Update is a compare-and-swap on the version column and ConsumeBackupCode is a
// single conditional UPDATE, so both are safe across processes sharing one database.
// Apply Schema (or call Accounts.Migrate) before first use.
package postgres
