package link

import "testing"

func TestPeerID(t *testing.T) {
	if got := PeerID("chem-exam-2025", 4821); got != "chem-exam-2025-4821" {
		t.Fatalf("unexpected peer id %q", got)
	}
}

func TestNewRoomIDRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		id := NewRoomID()
		if id < MinRoomID || id > MaxRoomID {
			t.Fatalf("room id %d out of range", id)
		}
	}
}

func TestParseRoomID(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"4821", 4821, false},
		{" chem-exam-2025-4821 ", 4821, false},
		{"999", 0, true},
		{"10000", 0, true},
		{"other-4821", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseRoomID("chem-exam-2025", tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRoomID(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestPeerURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/peer/chem-exam-2025-4821"},
		{"https://exam.example/", "wss://exam.example/peer/chem-exam-2025-4821"},
		{"ws://host/base", "ws://host/base/peer/chem-exam-2025-4821"},
	}

	for _, tt := range tests {
		got, err := peerURL(tt.base, "chem-exam-2025-4821")
		if err != nil || got != tt.want {
			t.Errorf("peerURL(%q) = %q, %v", tt.base, got, err)
		}
	}
}
