// Package github fetches public profile, repository and language data from the
// GitHub REST API and condenses it into cached portfolio statistics.
//
// Every network call goes through a retry wrapper. Rate limiting (HTTP 429,
// secondary limits, exhausted primary quota) and timeouts are retried with
// Retry-After or exponential backoff up to a fixed ceiling. Anything else is
// terminal. Fetch methods never return errors: a false ok value means the data
// is unavailable, which callers must not confuse with "does not exist".
package github
