package cache

import "time"

const (
	ExpiryDefaultInMemory = 30 * time.Minute
	// ExpiryFXRate bounds how long an effective rate lookup is reused
	ExpiryFXRate = 10 * time.Minute

	cleanupInterval = 10 * time.Minute
)
