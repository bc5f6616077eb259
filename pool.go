package geotiler

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc/pool"
	"github.com/tbonfort/gobs"
)

// A unitPool runs units of work on a bounded number of goroutines. Units
// record their own outcome, they do not return errors.
type unitPool interface {
	Go(func())
	Wait()
}

// cpuPool is used for raster decode/encode work. It is never shared with the
// I/O pool so both stages can be sized independently.
type cpuPool struct {
	batch *gobs.Batch
}

func newCPUPool(workers int) unitPool {
	return &cpuPool{batch: gobs.NewPool(defaultWorkers(workers)).Batch()}
}

func (p *cpuPool) Go(f func()) {
	p.batch.Submit(func() error {
		f()
		return nil
	})
}

func (p *cpuPool) Wait() {
	_ = p.batch.Wait()
}

// newIOPool returns a pool for previews and file copies.
func newIOPool(workers int) unitPool {
	return pool.New().WithMaxGoroutines(defaultWorkers(workers))
}

func defaultWorkers(n int) int {
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

// submit queues f on p unless ctx is done. Queued units that have not started
// when ctx is canceled are dropped.
func submit(ctx context.Context, p unitPool, f func()) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	p.Go(func() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		f()
	})
	return true
}
