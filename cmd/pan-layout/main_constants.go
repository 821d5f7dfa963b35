package main

// Default command-line flag values
const (
	defaultSources    = 4
	defaultSampleRate = 48000
)

// Probe parameters
const (
	probeMarginFrames = 64 // Frames rendered past the longest delay
	probeLagGuard     = 2  // Extra lag searched beyond the ear spacing
	bytesPerKilobyte  = 1024.0
)
