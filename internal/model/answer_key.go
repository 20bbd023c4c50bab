package model

import (
	"encoding/json"
	"errors"
	"strings"
)

// TrueFalseKey is the canonical answer to one part II block.
type TrueFalseKey struct {
	A bool `json:"a"`
	B bool `json:"b"`
	C bool `json:"c"`
	D bool `json:"d"`
}

// Get returns the key for one statement.
func (k TrueFalseKey) Get(sub SubQuestion) bool {
	switch sub {
	case SubA:
		return k.A
	case SubB:
		return k.B
	case SubC:
		return k.C
	case SubD:
		return k.D
	}
	return false
}

// With returns a copy of k with one statement changed.
func (k TrueFalseKey) With(sub SubQuestion, v bool) TrueFalseKey {
	switch sub {
	case SubA:
		k.A = v
	case SubB:
		k.B = v
	case SubC:
		k.C = v
	case SubD:
		k.D = v
	}
	return k
}

// TextKey lists the accepted forms of a free-text answer. On the wire a single
// form is a plain string and several forms are an array.
type TextKey []string

// ParseTextKey splits an editor value on ';' into alternative accepted forms.
func ParseTextKey(raw string) TextKey {
	if !strings.Contains(raw, ";") {
		return TextKey{strings.TrimSpace(raw)}
	}
	parts := strings.Split(raw, ";")
	out := make(TextKey, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// MarshalJSON emits a string for one form and an array otherwise.
func (k TextKey) MarshalJSON() ([]byte, error) {
	if len(k) == 1 {
		return json.Marshal(k[0])
	}
	return json.Marshal([]string(k))
}

// UnmarshalJSON accepts either a string or an array of strings.
func (k *TextKey) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*k = TextKey{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return errors.New("text key must be a string or an array of strings")
	}
	*k = TextKey(many)
	return nil
}

// AnswerKey is the examiner-managed grading key for all three parts.
type AnswerKey struct {
	Part1 map[int]string       `json:"part1"`
	Part2 map[int]TrueFalseKey `json:"part2"`
	Part3 map[int]TextKey      `json:"part3"`
}

// IsZero reports whether no part has been initialized.
func (k AnswerKey) IsZero() bool {
	return k.Part1 == nil && k.Part2 == nil && k.Part3 == nil
}

func (k *AnswerKey) ensureMaps() {
	if k.Part1 == nil {
		k.Part1 = map[int]string{}
	}
	if k.Part2 == nil {
		k.Part2 = map[int]TrueFalseKey{}
	}
	if k.Part3 == nil {
		k.Part3 = map[int]TextKey{}
	}
}

// Clone returns a deep copy.
func (k AnswerKey) Clone() AnswerKey {
	out := AnswerKey{
		Part1: make(map[int]string, len(k.Part1)),
		Part2: make(map[int]TrueFalseKey, len(k.Part2)),
		Part3: make(map[int]TextKey, len(k.Part3)),
	}
	for q, v := range k.Part1 {
		out.Part1[q] = v
	}
	for q, v := range k.Part2 {
		out.Part2[q] = v
	}
	for q, v := range k.Part3 {
		out.Part3[q] = append(TextKey(nil), v...)
	}
	return out
}

// DefaultAnswerKey is the template key a new room starts with.
func DefaultAnswerKey() AnswerKey {
	return AnswerKey{
		Part1: map[int]string{
			1: "A", 2: "B", 3: "C", 4: "D", 5: "A", 6: "B",
			7: "C", 8: "D", 9: "A", 10: "B", 11: "C", 12: "D",
			13: "A", 14: "B", 15: "C", 16: "D", 17: "A", 18: "B",
		},
		Part2: map[int]TrueFalseKey{
			1: {A: true, B: false, C: true, D: false},
			2: {A: false, B: true, C: false, D: true},
			3: {A: true, B: true, C: false, D: false},
			4: {A: false, B: false, C: true, D: true},
		},
		Part3: map[int]TextKey{
			1: {"12.5"},
			2: {"4"},
			3: {"CH3COOH"},
			4: {"5.6"},
			5: {"2"},
			6: {"88"},
		},
	}
}
