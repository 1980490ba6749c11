// Package scoring turns retrieval evidence and structured facts into
// comparable scores.
//
// The package has three layers:
//
//   - Normalization: raw lexical ranks are divided by the batch maximum,
//     cosine distances in [0, 2] become similarities in [0, 1].
//   - Blending: Weights.Blend combines the lexical and vector signals of a
//     chunk or a candidate with the same weights (0.4 / 0.6 by default).
//   - Final scoring: Scorer.Score produces the 0-100 user-facing score,
//     either from the hybrid formula or, when no retrieval signal exists at
//     all, from the rule-based fallback.
//
// Weights are fixed policy. They are injected at construction so they can
// be tested in isolation but are never read from user input.
//
// EvaluateFacts is the single fact computation shared by the scorer and the
// explanation generator, so a reason shown to the user always matches a
// point counted in the score.
package scoring
