package params

type ListenerConfig struct {
	// Network must be "tcp", "tcp4", "tcp6", "unix" or "unixpacket".
	Network string
	Address string
}

type WebDaemonConfig struct {
	ListenerConfig
	DataDir string

	// SegmentCacheSize bounds the LRU of recent segmentation responses.
	SegmentCacheSize int
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	return &WebDaemonConfig{
		ListenerConfig: ListenerConfig{
			Network: "tcp",
			Address: "localhost:3987",
		},
		DataDir:          DatadirRoot,
		SegmentCacheSize: 256,
	}
}
