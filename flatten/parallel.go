package flatten

import (
	"runtime"
	"sync"
)

// ParallelConfig configures how Flatten spreads rows across goroutines.
type ParallelConfig struct {
	// NumWorkers is the number of worker goroutines. 0 means runtime.GOMAXPROCS(0).
	NumWorkers int

	// GrainSize is the minimum number of rows per worker. Images with fewer
	// than GrainSize*NumWorkers rows are composited on the calling goroutine.
	GrainSize int
}

// DefaultParallelConfig returns the default parallel configuration.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		NumWorkers: 0,
		GrainSize:  16,
	}
}

var (
	parallelConfig   = DefaultParallelConfig()
	parallelConfigMu sync.RWMutex
)

// SetParallelConfig sets the package-wide parallel configuration.
func SetParallelConfig(config ParallelConfig) {
	parallelConfigMu.Lock()
	defer parallelConfigMu.Unlock()
	parallelConfig = config
}

// GetParallelConfig returns the current parallel configuration.
func GetParallelConfig() ParallelConfig {
	parallelConfigMu.RLock()
	defer parallelConfigMu.RUnlock()
	return parallelConfig
}

func effectiveWorkers(config ParallelConfig) int {
	if config.NumWorkers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return config.NumWorkers
}

// parallelRange calls fn on disjoint [lo, hi) ranges covering [0, n) and
// returns once every call has finished.
func parallelRange(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	config := GetParallelConfig()
	numWorkers := effectiveWorkers(config)
	grain := config.GrainSize
	if grain < 1 {
		grain = 1
	}

	if numWorkers == 1 || n <= grain*numWorkers {
		if n < 2*grain || numWorkers == 1 {
			fn(0, n)
			return
		}
		numWorkers = n / grain
	}

	var wg sync.WaitGroup
	chunk := (n + numWorkers - 1) / numWorkers
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
