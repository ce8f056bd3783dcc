package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Graph constraints
	MaxNodesPerCanvas  int
	MaxInputSlots      int // incoming edges accepted by a generator node
	DefaultCanvasName  string
	MaxImagesPerSource int

	// Content cache
	CacheTTL           time.Duration
	CacheCapacity      int
	CacheEvictionBatch int

	// Output nodes
	MaxVersions int

	// Image analysis
	AnalysisBatchWidth int
	AnalysisTimeout    time.Duration

	// Generation
	MaxQuantity        int
	MaxImageReferences int
	OutputOffsetX      float64
	OutputOffsetY      float64
	// characters a streamed variation is expected to reach, for progress estimates
	ExpectedStreamLength int

	// Autosave
	DebounceWindow     time.Duration
	SavedDisplayWindow time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxNodesPerCanvas:  2000,
		MaxInputSlots:      8,
		DefaultCanvasName:  "Untitled canvas",
		MaxImagesPerSource: 10,

		CacheTTL:           7 * 24 * time.Hour,
		CacheCapacity:      50,
		CacheEvictionBatch: 10,

		MaxVersions: 5,

		AnalysisBatchWidth: 3,
		AnalysisTimeout:    90 * time.Second,

		MaxQuantity:        5,
		MaxImageReferences: 2,
		OutputOffsetX:      400,
		OutputOffsetY:      350,

		ExpectedStreamLength: 1500,

		DebounceWindow:     3 * time.Second,
		SavedDisplayWindow: 2 * time.Second,
	}
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Faster feedback while iterating locally
	config.DebounceWindow = time.Second
	config.MaxQuantity = 10

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}
