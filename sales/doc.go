// Package sales is a client for the SSH T PROJECT sales and account API:
// plans, purchases, payment confirmation and account lookups.
package sales
