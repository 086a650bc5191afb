package docker

import (
	"time"
)

// Config holds the configuration for the tesseract container pool.
type Config struct {
	// Image is a Docker image with the tesseract binary on its PATH.
	Image string
	// Language is the tesseract language pack passed with -l.
	Language string
	// MemoryLimit is the maximum amount of memory a container can use (in bytes).
	MemoryLimit int64
	// CPULimit is the number of CPUs a container can use.
	CPULimit float64
	// Timeout bounds a single recognition.
	Timeout time.Duration
	// PoolSize is the number of pre-warmed containers to maintain.
	PoolSize int
}

// DefaultConfig provides defaults for receipt-sized images.
func DefaultConfig() Config {
	return Config{
		Image:       "jitesoft/tesseract-ocr:latest",
		Language:    "eng",
		MemoryLimit: 256 * 1024 * 1024,
		CPULimit:    1,
		Timeout:     20 * time.Second,
		PoolSize:    2,
	}
}
