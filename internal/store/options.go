package store

import (
	"encoding/xml"
	"math"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/andy-yx-chen/leveldb-win/internal/logger"
)

// EngineOptions holds the tuning knobs recognized from leveldb.xml (§3, §6).
// create_if_missing is not a field here: Badger always creates a missing
// directory on Open, so the option has no knob to carry — it is implicitly
// always true, as the spec requires. MaxOpenFiles is carried here for
// parity with leveldb.xml's schema but, like create_if_missing, has no
// corresponding Badger knob: Badger keeps its SSTables mmap'd rather than
// holding a bounded pool of open file descriptors, so the value is parsed
// and retained on EngineOptions (visible to callers that inspect it) but
// never applied to badger.Options — see badgerOptions below.
type EngineOptions struct {
	CacheSize       int64 // bytes; >=0 enables a shared block cache
	WriteBufferSize int64 // bytes; >0 overrides the engine default
	MaxOpenFiles    int   // >0; parsed for schema parity, not applied to Badger
	BloomBits       int   // >=0 enables a bloom filter with that bits-per-key

	hasCacheSize bool
	hasBloomBits bool
}

// xmlConfig mirrors the <leveldb> element's recognized scalar children.
// Fields use pointers so a missing element is distinguishable from an
// explicit zero, matching the original's sentinel-default parsing
// (cache_size/bloom_bits default to -1 meaning "absent", not 0).
type xmlConfig struct {
	XMLName         xml.Name `xml:"leveldb"`
	CacheSize       *int64   `xml:"cache_size"`
	WriteBufferSize *int64   `xml:"write_buffer_size"`
	MaxOpenFiles    *int     `xml:"max_open_files"`
	BloomBits       *int     `xml:"bloom_bits"`
}

// LoadEngineOptions reads path (the leveldb.xml tuning file) and returns the
// recognized options. A missing file or any parse failure is non-fatal: the
// zero EngineOptions is returned instead, under which badgerOptions sets none
// of the knobs and Badger's own defaults stay in effect. The block cache and
// the bloom filter are therefore not disabled in that case.
func LoadEngineOptions(path string) EngineOptions {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("engine config not found, using defaults", "path", path, "error", err)
		return EngineOptions{}
	}

	var cfg xmlConfig
	if err := xml.Unmarshal(data, &cfg); err != nil {
		logger.Warn("engine config malformed, using defaults", "path", path, "error", err)
		return EngineOptions{}
	}

	opts := EngineOptions{}
	if cfg.CacheSize != nil && *cfg.CacheSize >= 0 {
		opts.CacheSize = *cfg.CacheSize
		opts.hasCacheSize = true
	}
	if cfg.WriteBufferSize != nil && *cfg.WriteBufferSize > 0 {
		opts.WriteBufferSize = *cfg.WriteBufferSize
	}
	if cfg.MaxOpenFiles != nil && *cfg.MaxOpenFiles > 0 {
		opts.MaxOpenFiles = *cfg.MaxOpenFiles
	}
	if cfg.BloomBits != nil && *cfg.BloomBits >= 0 {
		opts.BloomBits = *cfg.BloomBits
		opts.hasBloomBits = true
	}
	return opts
}

// badgerOptions translates EngineOptions into badger.Options for a store
// rooted at dir. create_if_missing has no corresponding field: Badger always
// creates the directory. MaxOpenFiles has no corresponding Badger option
// either (see the EngineOptions doc comment) and is intentionally not
// applied here.
func (o EngineOptions) badgerOptions(dir string) badgerdb.Options {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)

	if o.hasCacheSize {
		opts = opts.WithBlockCacheSize(o.CacheSize)
	}
	if o.WriteBufferSize > 0 {
		opts = opts.WithMemTableSize(o.WriteBufferSize)
	}
	if o.hasBloomBits && o.BloomBits > 0 {
		opts = opts.WithBloomFalsePositive(bitsPerKeyToFalsePositive(o.BloomBits))
	} else if o.hasBloomBits {
		opts = opts.WithBloomFalsePositive(0) // bloom_bits == 0 disables the filter
	}

	return opts
}

// bitsPerKeyToFalsePositive approximates LevelDB's bits-per-key bloom filter
// knob as Badger's false-positive-rate knob, using the standard
// bits-per-key ~= -log2(falsePositiveRate) * 1.44 relation solved for the
// rate.
func bitsPerKeyToFalsePositive(bitsPerKey int) float64 {
	rate := math.Pow(2, -float64(bitsPerKey)/1.44)
	if rate <= 0 {
		rate = 0.01
	}
	return rate
}
