// Package ingestion turns raw text into stored context blocks.
//
// The Pipeline embeds text in chunks on a worker pool, normalizes the
// vectors to unit length and stores the blocks under content-derived IDs so
// that re-ingesting the same text is idempotent.
package ingestion
