package monitoring

import (
	"sync"
	"time"
)

// A ProgressBar tracks how far a long-running batch of work has gone, such
// as the steps of a scenario.
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// StartStep marks one more item as in progress.
func (b *ProgressBar) StartStep() {
	b.Lock()
	defer b.Unlock()

	b.InProgress++
}

// FinishStep moves one in-progress item to finished.
func (b *ProgressBar) FinishStep() {
	b.Lock()
	defer b.Unlock()

	if b.InProgress > 0 {
		b.InProgress--
	}

	b.Finished++
}

// Done tells if every item is finished.
func (b *ProgressBar) Done() bool {
	b.Lock()
	defer b.Unlock()

	return b.Finished >= b.Total
}
