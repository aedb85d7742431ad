// Package jwt issues short-lived access tokens for authenticated sessions and
// verifies them with pinned algorithms, optional key IDs and a bounded clock leeway.
package jwt
