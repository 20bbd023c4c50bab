package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// PeerClaimKey returns the Redis key holding the lease on a peer identifier
func (r *CacheKeyStruct) PeerClaimKey(peerID string) string {
	return fmt.Sprintf("peer:%s:owner", peerID)
}

// ParticipantStartKey returns the device store key for a room's start instant
func (r *CacheKeyStruct) ParticipantStartKey(roomID int) string {
	return fmt.Sprintf("exam_start_%d", roomID)
}

var CacheKey = NewCacheKeyStruct()
