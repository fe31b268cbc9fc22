// Package similarity scores how alike two short chat messages are.
//
// The score blends a word-level Jaccard index with a character-trigram overlap:
//
//	score = 0.6*jaccard(words) + 0.4*trigram(chars)
//
// Inputs are compared as given. Callers lower-case both sides before scoring;
// punctuation and diacritics are deliberately left in place because the
// learned-response thresholds (0.65, 0.70, 0.75) were tuned against this exact
// formula.
//
// The trigram overlap counts every trigram of the first argument that appears
// anywhere in the second argument's trigram list, without consuming matches.
// With repeated trigrams this makes Score(a, b) and Score(b, a) differ slightly.
// Tests pin that behavior down rather than assuming symmetry.
package similarity
