package orchestrator

import "sync"

// ProgressCounter counts finished chapters. It is the only state shared
// between chapter tasks.
type ProgressCounter struct {
	mu       sync.Mutex
	done     int
	total    int
	onChange func(done, total, percent int)
}

func NewProgressCounter(total int, onChange func(done, total, percent int)) *ProgressCounter {
	return &ProgressCounter{total: total, onChange: onChange}
}

// Increment records one finished chapter. The callback runs under the lock,
// so observers see done values strictly in order.
func (p *ProgressCounter) Increment() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done < p.total {
		p.done++
	}
	if p.onChange != nil {
		p.onChange(p.done, p.total, p.percentLocked())
	}
	return p.done
}

func (p *ProgressCounter) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

func (p *ProgressCounter) Percent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.percentLocked()
}

func (p *ProgressCounter) percentLocked() int {
	if p.total == 0 {
		return 100
	}
	return p.done * 100 / p.total
}
