// Package dedupe provides a TTL cache used to drop redelivered webhook events.
package dedupe
