// Package pairs turns a stream of dialogues into labeled context/response
// pairs for training response-selection models.
//
// For every context window of a dialogue the [Builder] emits NumNegative
// negative pairs, whose responses are drawn from a bounded [Pool] of
// utterances seen in recent dialogues, followed by one positive pair holding
// the true next utterance.
//
// # Protocol
//
// The Builder moves through three states:
//
//   - Warmup: the pool is below capacity. The dialogue seeds the pool from
//     its tail and is deferred; no pairs are produced.
//   - Steady: the pool is at capacity and pairs are produced normally.
//   - Flush: the pass counter reached TotalDialogues. The current dialogue
//     and every deferred dialogue are replayed through the protocol so that
//     dialogues consumed during warmup still contribute pairs once per pass.
//
// The pool only receives lag-one contributions: a leading slice of each
// dialogue is carried over and inserted at the start of the next call.
// Accepted negatives are consumed, so the pool drains while sampling and is
// refilled by the carry-over.
//
// All randomness comes from a PRNG seeded through [Config.Seed]; two
// Builders with the same configuration fed the same dialogues produce the
// same pair sequence.
//
// A Builder is not safe for concurrent use. Run one Builder per shard if
// shards must be processed in parallel.
package pairs
