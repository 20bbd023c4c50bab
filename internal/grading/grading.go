// Package grading scores a participant's answers against the examiner's key.
// Everything here is pure: no clocks, no I/O, no shared state.
package grading

import (
	"math"
	"strings"
	"unicode"

	"github.com/stemsi/exstem-room/internal/model"
)

// Rules configures question counts and weights for the three parts.
type Rules struct {
	Part1Count  int
	Part2Count  int
	Part3Count  int
	Part1Weight float64
	// Part2Weights maps the number of matching statements (0-4) to points.
	// Counts missing from the table score zero.
	Part2Weights map[int]float64
	Part3Weight  float64
}

// DefaultRules is the scoring scheme of the chemistry paper: 18 single-choice,
// 4 true/false blocks and 6 short answers, for a maximum of 10 points.
var DefaultRules = Rules{
	Part1Count:   18,
	Part2Count:   4,
	Part3Count:   6,
	Part1Weight:  0.25,
	Part2Weights: map[int]float64{1: 0.1, 2: 0.25, 3: 0.5, 4: 1.0},
	Part3Weight:  0.25,
}

// Max returns the highest reachable score under r.
func (r Rules) Max() float64 {
	best := 0.0
	for _, w := range r.Part2Weights {
		best = math.Max(best, w)
	}
	return round2(float64(r.Part1Count)*r.Part1Weight +
		float64(r.Part2Count)*best +
		float64(r.Part3Count)*r.Part3Weight)
}

// Score grades answers against key. Unanswered questions and questions with
// no key entry contribute nothing. The total is rounded to 2 decimals.
func Score(answers model.AnswerSet, key model.AnswerKey, rules Rules) float64 {
	total := 0.0

	for q := 1; q <= rules.Part1Count; q++ {
		if choiceCorrect(answers.Part1, key.Part1, q) {
			total += rules.Part1Weight
		}
	}

	for q := 1; q <= rules.Part2Count; q++ {
		block, ok := answers.Part2[q]
		if !ok {
			continue
		}
		want, ok := key.Part2[q]
		if !ok {
			continue
		}
		total += rules.Part2Weights[matchCount(block, want)]
	}

	for q := 1; q <= rules.Part3Count; q++ {
		if textCorrect(answers.Part3, key.Part3, q) {
			total += rules.Part3Weight
		}
	}

	return round2(total)
}

// Normalize prepares free text for comparison: case is folded and all
// whitespace is removed, so "  CH3 COOH " equals "ch3cooh".
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func choiceCorrect(answers, key map[int]string, q int) bool {
	want, ok := key[q]
	if !ok || want == "" {
		return false
	}
	got, ok := answers[q]
	return ok && got == want
}

func matchCount(block model.TrueFalseBlock, want model.TrueFalseKey) int {
	n := 0
	for _, sub := range model.SubQuestions {
		if block.Get(sub).Matches(want.Get(sub)) {
			n++
		}
	}
	return n
}

func textCorrect(answers map[int]string, key map[int]model.TextKey, q int) bool {
	got, ok := answers[q]
	if !ok || got == "" {
		return false
	}
	accepted, ok := key[q]
	if !ok || len(accepted) == 0 {
		return false
	}
	normalized := Normalize(got)
	for _, form := range accepted {
		if form != "" && Normalize(form) == normalized {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
