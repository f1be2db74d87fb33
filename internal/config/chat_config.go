package config

import "time"

const (
	// Messages
	MaxContentRunes = 5000
	BackfillLimit   = 100

	// Typing indicator
	TypingIdleTimeout = 2 * time.Second

	// WebSocket pumps
	WriteWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	PingPeriod = (PongWait * 9) / 10
	// MaxFrameSize must fit a max-length message of 4-byte runes plus the
	// JSON envelope, or the read pump would kill valid sends.
	MaxFrameSize   = 32 * 1024
	SendBufferSize = 256

	// Presence entries expire if a session dies without untracking.
	PresenceTTL = 30 * time.Second
)
