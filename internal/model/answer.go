package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Choice is a three-valued true/false answer. The zero value is Unanswered,
// which never matches a key entry.
type Choice uint8

const (
	Unanswered Choice = iota
	ChoiceTrue
	ChoiceFalse
)

// ChoiceOf wraps a plain boolean answer.
func ChoiceOf(v bool) Choice {
	if v {
		return ChoiceTrue
	}
	return ChoiceFalse
}

// Answered reports whether the participant picked a value.
func (c Choice) Answered() bool { return c == ChoiceTrue || c == ChoiceFalse }

// Matches reports whether c is answered and equal to want.
func (c Choice) Matches(want bool) bool {
	return c.Answered() && (c == ChoiceTrue) == want
}

func (c Choice) String() string {
	switch c {
	case ChoiceTrue:
		return "true"
	case ChoiceFalse:
		return "false"
	default:
		return "unanswered"
	}
}

// MarshalJSON encodes Unanswered as null.
func (c Choice) MarshalJSON() ([]byte, error) {
	switch c {
	case ChoiceTrue:
		return []byte("true"), nil
	case ChoiceFalse:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts true, false or null.
func (c *Choice) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true":
		*c = ChoiceTrue
	case "false":
		*c = ChoiceFalse
	case "null":
		*c = Unanswered
	default:
		return fmt.Errorf("invalid true/false answer %s", data)
	}
	return nil
}

// SubQuestion names one statement of a four-way true/false block.
type SubQuestion string

const (
	SubA SubQuestion = "a"
	SubB SubQuestion = "b"
	SubC SubQuestion = "c"
	SubD SubQuestion = "d"
)

// SubQuestions lists the statements of a block in display order.
var SubQuestions = [4]SubQuestion{SubA, SubB, SubC, SubD}

// ParseSubQuestion validates a statement label.
func ParseSubQuestion(raw string) (SubQuestion, error) {
	s := SubQuestion(strings.ToLower(strings.TrimSpace(raw)))
	switch s {
	case SubA, SubB, SubC, SubD:
		return s, nil
	}
	return "", fmt.Errorf("unknown sub-question %q", raw)
}

// TrueFalseBlock is a participant's answer to one part II question.
type TrueFalseBlock struct {
	A Choice `json:"a"`
	B Choice `json:"b"`
	C Choice `json:"c"`
	D Choice `json:"d"`
}

// Get returns the answer to one statement.
func (b TrueFalseBlock) Get(sub SubQuestion) Choice {
	switch sub {
	case SubA:
		return b.A
	case SubB:
		return b.B
	case SubC:
		return b.C
	case SubD:
		return b.D
	}
	return Unanswered
}

// With returns a copy of b with one statement answered.
func (b TrueFalseBlock) With(sub SubQuestion, c Choice) TrueFalseBlock {
	switch sub {
	case SubA:
		b.A = c
	case SubB:
		b.B = c
	case SubC:
		b.C = c
	case SubD:
		b.D = c
	}
	return b
}

// AnswerSet holds one participant's answers. Unanswered questions are absent.
type AnswerSet struct {
	Part1 map[int]string         `json:"part1"`
	Part2 map[int]TrueFalseBlock `json:"part2"`
	Part3 map[int]string         `json:"part3"`
}

// NewAnswerSet returns an empty answer set with initialized maps.
func NewAnswerSet() AnswerSet {
	return AnswerSet{
		Part1: map[int]string{},
		Part2: map[int]TrueFalseBlock{},
		Part3: map[int]string{},
	}
}

// Clone returns a deep copy.
func (a AnswerSet) Clone() AnswerSet {
	out := NewAnswerSet()
	for q, v := range a.Part1 {
		out.Part1[q] = v
	}
	for q, v := range a.Part2 {
		out.Part2[q] = v
	}
	for q, v := range a.Part3 {
		out.Part3[q] = v
	}
	return out
}

// Answered counts the questions with at least one answer.
func (a AnswerSet) Answered() int {
	n := len(a.Part1)
	for _, b := range a.Part2 {
		if b.A.Answered() || b.B.Answered() || b.C.Answered() || b.D.Answered() {
			n++
		}
	}
	for _, v := range a.Part3 {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// MarshalJSON always emits the three part maps, never null.
func (a AnswerSet) MarshalJSON() ([]byte, error) {
	type plain AnswerSet
	out := plain(a)
	if out.Part1 == nil {
		out.Part1 = map[int]string{}
	}
	if out.Part2 == nil {
		out.Part2 = map[int]TrueFalseBlock{}
	}
	if out.Part3 == nil {
		out.Part3 = map[int]string{}
	}
	return json.Marshal(out)
}
