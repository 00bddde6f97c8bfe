// Package similarity implements a cheap byte-level comparison between a
// student's registered ID-card photo and a freshly captured scan.
//
// This is a weak heuristic, not a security control: there is no perceptual
// hashing or pixel comparison. The verdict only ever feeds a UI hint and
// must never gate a log write.
package similarity

import "bytes"

// Verdict is the tri-state outcome of comparing two image payloads.
type Verdict int

const (
	Inconclusive Verdict = iota
	Match
	Mismatch
)

func (v Verdict) String() string {
	switch v {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "inconclusive"
	}
}

// Bool maps the verdict to the optional image_match field on a log entry:
// Match -> true, Mismatch -> false, Inconclusive -> nil.
func (v Verdict) Bool() *bool {
	switch v {
	case Match:
		t := true
		return &t
	case Mismatch:
		f := false
		return &f
	default:
		return nil
	}
}

const (
	// sizeTolerance is the fraction of the larger payload by which sizes may
	// differ before the pair is declared a mismatch outright.
	sizeTolerance = 0.05
	// windowMax caps the trailing-window comparison length in bytes.
	windowMax = 500
	// windowMin is the smallest trailing window considered meaningful.
	windowMin = 50
)

// Compare estimates whether two image payloads depict the same card.
//
// Either payload absent yields Inconclusive. Byte-identical payloads match.
// Otherwise payloads whose sizes differ by more than 5% of the larger are a
// Mismatch, and payloads of similar size are compared over a trailing byte
// window (the lesser of 500 bytes or 10% of each payload); a window under
// 50 bytes is too small to mean anything, so the result is Inconclusive.
func Compare(reference, candidate []byte) Verdict {
	if len(reference) == 0 || len(candidate) == 0 {
		return Inconclusive
	}
	if bytes.Equal(reference, candidate) {
		return Match
	}

	larger := len(reference)
	if len(candidate) > larger {
		larger = len(candidate)
	}
	diff := len(reference) - len(candidate)
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) > sizeTolerance*float64(larger) {
		return Mismatch
	}

	window := windowMax
	if w := len(reference) / 10; w < window {
		window = w
	}
	if w := len(candidate) / 10; w < window {
		window = w
	}
	if window < windowMin {
		return Inconclusive
	}

	if bytes.Equal(reference[len(reference)-window:], candidate[len(candidate)-window:]) {
		return Match
	}
	return Mismatch
}
