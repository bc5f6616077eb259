package geotiler

import "sync/atomic"

// Progress counts finished units of work against an announced total. It is
// safe for concurrent use. The optional OnAdvance callback is invoked after
// every change, possibly concurrently.
type Progress struct {
	done, total atomic.Int64
	OnAdvance   func(done, total int64)
}

// AddTotal grows (or shrinks, when n<0) the announced total.
func (p *Progress) AddTotal(n int) {
	if p == nil {
		return
	}
	t := p.total.Add(int64(n))
	p.notify(p.done.Load(), t)
}

// Advance records one finished unit, whatever its outcome.
func (p *Progress) Advance() {
	if p == nil {
		return
	}
	d := p.done.Add(1)
	p.notify(d, p.total.Load())
}

func (p *Progress) Done() int64 {
	if p == nil {
		return 0
	}
	return p.done.Load()
}

func (p *Progress) Total() int64 {
	if p == nil {
		return 0
	}
	return p.total.Load()
}

func (p *Progress) notify(done, total int64) {
	if p.OnAdvance != nil {
		p.OnAdvance(done, total)
	}
}
