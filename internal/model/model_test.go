package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestChoiceJSON(t *testing.T) {
	block := TrueFalseBlock{A: ChoiceTrue, B: ChoiceFalse}
	raw, err := json.Marshal(block)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"a":true,"b":false,"c":null,"d":null}` {
		t.Fatalf("unexpected encoding %s", raw)
	}

	var back TrueFalseBlock
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != block {
		t.Fatalf("expected %+v, got %+v", block, back)
	}

	var c Choice
	if err := json.Unmarshal([]byte(`"yes"`), &c); err == nil {
		t.Fatal("expected error for non-boolean choice")
	}
}

func TestChoiceMatches(t *testing.T) {
	if Unanswered.Matches(false) || Unanswered.Matches(true) {
		t.Fatal("unanswered must never match")
	}
	if !ChoiceFalse.Matches(false) || ChoiceFalse.Matches(true) {
		t.Fatal("false should only match false")
	}
}

func TestTextKeyJSON(t *testing.T) {
	tests := []struct {
		in   string
		want TextKey
		out  string
	}{
		{`"12.5"`, TextKey{"12.5"}, `"12.5"`},
		{`["12.5","12,5"]`, TextKey{"12.5", "12,5"}, `["12.5","12,5"]`},
	}

	for _, tt := range tests {
		var k TextKey
		if err := json.Unmarshal([]byte(tt.in), &k); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if strings.Join(k, "|") != strings.Join(tt.want, "|") {
			t.Errorf("%s: expected %v, got %v", tt.in, tt.want, k)
		}
		raw, _ := json.Marshal(k)
		if string(raw) != tt.out {
			t.Errorf("%s: re-encoded as %s", tt.in, raw)
		}
	}

	var k TextKey
	if err := json.Unmarshal([]byte(`42`), &k); err == nil {
		t.Fatal("expected error for numeric key")
	}
}

func TestParseTextKey(t *testing.T) {
	k := ParseTextKey(" 12.5 ; 12,5;25/2")
	if len(k) != 3 || k[0] != "12.5" || k[1] != "12,5" || k[2] != "25/2" {
		t.Fatalf("unexpected split %q", k)
	}
	if k := ParseTextKey("88"); len(k) != 1 || k[0] != "88" {
		t.Fatalf("unexpected single form %q", k)
	}
}

func sampleState() SessionState {
	s := NewSessionState(45)
	answers := NewAnswerSet()
	answers.Part1[1] = "A"
	s.Submissions = append(s.Submissions, Submission{
		ID:          "s1",
		Name:        "Nguyễn Văn A",
		Answers:     answers,
		Score:       0.25,
		SubmittedAt: time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC),
	})
	return s
}

func TestProjectionStripsSubmissions(t *testing.T) {
	s := sampleState()
	p := s.Projection()

	if len(p.Submissions) != 0 {
		t.Fatalf("projection leaked %d submissions", len(p.Submissions))
	}
	raw, _ := json.Marshal(p)
	if strings.Contains(string(raw), "Nguyễn") {
		t.Fatal("projection JSON contains a participant name")
	}
	if !strings.Contains(string(raw), `"submissions":[]`) {
		t.Fatalf("submissions should encode as empty array: %s", raw)
	}
	if p.Status != s.Status || p.Duration != s.Duration || p.EnforceFullscreen != s.EnforceFullscreen {
		t.Fatal("projection should keep room settings")
	}

	p.AnswerKey.Part1[1] = "D"
	if s.AnswerKey.Part1[1] != "A" {
		t.Fatal("projection shares the answer key map")
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := sampleState()
	c := s.Clone()

	c.Submissions[0].Answers.Part1[1] = "B"
	c.AnswerKey.Part3[1][0] = "99"

	if s.Submissions[0].Answers.Part1[1] != "A" {
		t.Fatal("clone shares submission answers")
	}
	if s.AnswerKey.Part3[1][0] != "12.5" {
		t.Fatal("clone shares text key slices")
	}
}

func TestNormalizeFillsDefaults(t *testing.T) {
	var s SessionState
	s.Normalize(45)

	if s.Status != SessionStatusActive || s.Duration != 45 {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if s.Submissions == nil || s.AnswerKey.Part1[1] != "A" {
		t.Fatal("expected default key and empty submissions")
	}
}

func TestFindSubmission(t *testing.T) {
	s := sampleState()
	if i := s.FindSubmission("Nguyễn Văn A"); i != 0 {
		t.Fatalf("expected 0, got %d", i)
	}
	if i := s.FindSubmission("nguyễn văn a"); i != -1 {
		t.Fatalf("names are case sensitive, got %d", i)
	}
}

func TestParseSessionStatus(t *testing.T) {
	if _, err := ParseSessionStatus("PAUSED"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	s, err := ParseSessionStatus("FINISHED")
	if err != nil || s.Open() {
		t.Fatalf("FINISHED should parse and be closed, got %v %v", s, err)
	}
}

func TestAnswerSetMarshalNeverNull(t *testing.T) {
	raw, _ := json.Marshal(AnswerSet{})
	if string(raw) != `{"part1":{},"part2":{},"part3":{}}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
}
