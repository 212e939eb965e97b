package memview

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// CacheConfig holds the cache geometry.
type CacheConfig struct {
	// Size in bytes
	Size int
	// Associativity (number of ways)
	Associativity int
	// BlockSize in bytes
	BlockSize int
}

// DefaultCacheConfig returns a geometry large enough to hold both 32-bit
// palettes and a working set of tile data.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Size:          16 * 1024,
		Associativity: 4,
		BlockSize:     64,
	}
}

// Statistics holds cache access statistics.
type Statistics struct {
	Reads     uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// HitRate returns the fraction of reads served from the cache.
func (s Statistics) HitRate() float64 {
	if s.Reads == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Reads)
}

// Cache is a read-only, read-through cache over a View, using an Akita
// cache directory for tag and LRU management. The debugger never writes
// through it; the engine may change memory between refreshes, so the
// cache must be Reset before each render pass.
type Cache struct {
	config CacheConfig

	directory *akitacache.DirectoryImpl

	// indexed by (setID * associativity + wayID)
	dataStore [][]byte

	stats Statistics

	backing *View
}

// NewCache creates a cache over the given view.
func NewCache(config CacheConfig, backing *View) *Cache {
	numSets := config.Size / (config.Associativity * config.BlockSize)
	totalBlocks := numSets * config.Associativity

	dataStore := make([][]byte, totalBlocks)
	for i := range dataStore {
		dataStore[i] = make([]byte, config.BlockSize)
	}

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		dataStore: dataStore,
		backing:   backing,
	}
}

// Config returns the cache configuration.
func (c *Cache) Config() CacheConfig {
	return c.config
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

// Rebind points the cache at a new view and drops every cached block.
func (c *Cache) Rebind(backing *View) {
	c.backing = backing
	c.directory.Reset()
}

// Reset invalidates all blocks without touching the statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
}

// ResetStats clears cache statistics.
func (c *Cache) ResetStats() {
	c.stats = Statistics{}
}

func (c *Cache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Read8 implements Reader.
func (c *Cache) Read8(addr uint32) byte {
	c.stats.Reads++

	blockSize := uint64(c.config.BlockSize)
	blockAddr := (uint64(addr) / blockSize) * blockSize
	offset := uint64(addr) - blockAddr

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.stats.Hits++
		c.directory.Visit(block)
		return c.dataStore[c.blockIndex(block)][offset]
	}

	c.stats.Misses++
	return c.fill(blockAddr)[offset]
}

func (c *Cache) fill(blockAddr uint64) []byte {
	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		return c.backing.Read(blockAddr, c.config.BlockSize)
	}

	if victim.IsValid {
		c.stats.Evictions++
	}

	data := c.dataStore[c.blockIndex(victim)]
	copy(data, c.backing.Read(blockAddr, c.config.BlockSize))

	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false
	c.directory.Visit(victim)

	return data
}
