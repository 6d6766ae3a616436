// Package middleware holds the gin middleware shared by the API: CORS from
// configuration and token-bucket rate limiting keyed per client.
package middleware
