// Package reembed re-encodes stored context blocks with a new or updated
// embedding model.
//
// Blocks are paged out of storage in ID order, embedded in batches with
// exponential-backoff retries, normalized to unit length and written back.
// Classification scores are cleared on every re-embedded block.
package reembed
