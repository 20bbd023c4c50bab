package link

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	MinRoomID = 1000
	MaxRoomID = 9999
)

// NewRoomID draws a random four-digit room number.
func NewRoomID() int {
	return MinRoomID + rand.IntN(MaxRoomID-MinRoomID+1)
}

// PeerID builds the addressable identifier "<namespace>-<roomId>".
func PeerID(namespace string, roomID int) string {
	return fmt.Sprintf("%s-%d", namespace, roomID)
}

// ParseRoomID accepts either a bare room number or a full peer identifier
// in namespace and returns the room number.
func ParseRoomID(namespace, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, namespace+"-")
	id, err := strconv.Atoi(raw)
	if err != nil || id < MinRoomID || id > MaxRoomID {
		return 0, fmt.Errorf("invalid room id %q", raw)
	}
	return id, nil
}
