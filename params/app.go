package params

import (
	"os"
	"path/filepath"
	"time"
)

var (
	CacheLastKnownTTL = 7 * 24 * time.Hour
)

// DefaultBatchSize is the per-device event batch size for stdin processing,
// and the size of the dedupe LRU.
var DefaultBatchSize = 100_000

// DefaultChannelCap buffers the per-device pipeline channels.
var DefaultChannelCap = 8192

var DatadirRoot = func() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tripd")
}()

func DeviceDataDir(deviceID string) string {
	return filepath.Join(DatadirRoot, "devices", deviceID)
}
