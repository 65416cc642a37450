package download

import (
	"context"
	"sync"

	"github.com/surge-downloader/coursedl/internal/catalog"
	"github.com/surge-downloader/coursedl/internal/engine/events"
)

// unit is one retrieval task: a video with its subtitles, or the exercise
// bundle of a course.
type unit struct {
	ref      events.ItemRef
	course   catalog.Course
	chapter  catalog.Chapter
	video    catalog.Video
	exercise *catalog.Exercise

	// settle is called exactly once when the unit has finished, failed or not
	settle func(failed bool)
}

// WorkerPool runs units on a fixed number of workers shared by every course.
// Its slots also bound other network work done outside the pool, such as
// catalog fetches, so at most workers operations are in flight at once.
type WorkerPool struct {
	taskChan chan *unit
	handle   func(ctx context.Context, u *unit) error
	slots    chan struct{}
	wg       sync.WaitGroup
}

func NewWorkerPool(ctx context.Context, workers int, handle func(ctx context.Context, u *unit) error) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	pool := &WorkerPool{
		taskChan: make(chan *unit, 100), // buffered so dispatching rarely blocks a course
		handle:   handle,
		slots:    make(chan struct{}, workers),
	}
	pool.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go pool.worker(ctx)
	}
	return pool
}

// Add queues u. It must not be called after Close.
func (p *WorkerPool) Add(u *unit) {
	p.taskChan <- u
}

// Acquire blocks until a slot is free or ctx is done. Every successful
// Acquire must be paired with Release.
func (p *WorkerPool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) Release() {
	<-p.slots
}

// Close stops accepting units and waits for the queue to drain.
func (p *WorkerPool) Close() {
	close(p.taskChan)
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()
	for u := range p.taskChan {
		// A cancelled run still hands the unit over so it fails and settles.
		acquired := p.Acquire(ctx) == nil
		err := p.handle(ctx, u)
		if acquired {
			p.Release()
		}
		u.settle(err != nil)
	}
}
