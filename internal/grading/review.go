package grading

import "github.com/stemsi/exstem-room/internal/model"

// BlockReview is the per-statement outcome of one true/false block.
type BlockReview struct {
	Statements map[model.SubQuestion]bool `json:"statements"`
	Matches    int                        `json:"matches"`
	Points     float64                    `json:"points"`
}

// Review is the correctness detail shown once the examiner opens review.
// It is computed against whatever key is passed in, so it may disagree with a
// stored score that was graded against an older key.
type Review struct {
	Part1 map[int]bool        `json:"part1"`
	Part2 map[int]BlockReview `json:"part2"`
	Part3 map[int]bool        `json:"part3"`
	Score float64             `json:"score"`
	Max   float64             `json:"max"`
}

// Detail builds the Review for answers against key.
func Detail(answers model.AnswerSet, key model.AnswerKey, rules Rules) Review {
	rv := Review{
		Part1: make(map[int]bool, rules.Part1Count),
		Part2: make(map[int]BlockReview, rules.Part2Count),
		Part3: make(map[int]bool, rules.Part3Count),
		Score: Score(answers, key, rules),
		Max:   rules.Max(),
	}

	for q := 1; q <= rules.Part1Count; q++ {
		rv.Part1[q] = choiceCorrect(answers.Part1, key.Part1, q)
	}

	for q := 1; q <= rules.Part2Count; q++ {
		block, answered := answers.Part2[q]
		want, ok := key.Part2[q]
		ok = ok && answered
		br := BlockReview{Statements: make(map[model.SubQuestion]bool, len(model.SubQuestions))}
		for _, sub := range model.SubQuestions {
			br.Statements[sub] = ok && block.Get(sub).Matches(want.Get(sub))
		}
		if ok {
			br.Matches = matchCount(block, want)
			br.Points = rules.Part2Weights[br.Matches]
		}
		rv.Part2[q] = br
	}

	for q := 1; q <= rules.Part3Count; q++ {
		rv.Part3[q] = textCorrect(answers.Part3, key.Part3, q)
	}

	return rv
}
