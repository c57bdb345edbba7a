// Package search answers text queries against stored context blocks.
//
// A Searcher embeds the query text, pulls a candidate pool from storage by
// cosine similarity and hands it to the retrieval-classification pipeline,
// which narrows the pool with gated attention and scores each survivor as
// relevant, superfluous or noise.
package search
