// Package fuzzy ranks recorded commands against a user query.
//
// A match falls into one of four tiers, highest first:
//
//  1. Exact substring (case-sensitive). Earlier and longer matches score higher.
//  2. Case-insensitive prefix of the text or of any word in it.
//  3. All-digit query equal to the candidate's decoded short code or to a
//     number embedded in the text.
//  4. Ordered subsequence with smart case, scored like skim/fzf: bonuses for
//     consecutive characters and word boundaries, penalties for gaps.
//
// Every score in a higher tier is greater than every score in a lower one.
// The package is pure and safe for concurrent use.
package fuzzy
