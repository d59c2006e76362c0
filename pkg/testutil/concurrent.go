package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "trialgate/pkg/domain-errors"
)

// ConcurrentResult tallies outcomes of concurrent test operations by domain code.
type ConcurrentResult struct {
	Successes int32
	ByCode    map[dErrors.Code]int32
}

// Count returns how many calls failed with code.
func (r *ConcurrentResult) Count(code dErrors.Code) int32 {
	return r.ByCode[code]
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	total := r.Successes
	for _, n := range r.ByCode {
		total += n
	}
	return total
}

// RunConcurrent starts n goroutines behind a shared barrier so they race as
// closely as possible, then buckets each result by its domain error code.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes atomic.Int32
		start     = make(chan struct{})
		byCode    = make(map[dErrors.Code]int32)
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			if err == nil {
				successes.Add(1)
				return
			}
			mu.Lock()
			byCode[dErrors.CodeOf(err)]++
			mu.Unlock()
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{Successes: successes.Load(), ByCode: byCode}
}
