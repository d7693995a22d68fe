package utils

import (
	"context"
	"sync"

	goutils "go.viam.com/utils"
)

// StoppableWorkers is a group of goroutines sharing a context that is cancelled by Stop.
type StoppableWorkers interface {
	AddWorkers(...func(context.Context))
	Stop()
	Context() context.Context
}

type stoppableWorkersImpl struct {
	mu         sync.Mutex
	cancelCtx  context.Context
	cancelFunc func()
	active     sync.WaitGroup
}

// NewStoppableWorkers runs each function in its own goroutine.
func NewStoppableWorkers(funcs ...func(context.Context)) StoppableWorkers {
	return NewStoppableWorkersWithContext(context.Background(), funcs...)
}

// NewStoppableWorkersWithContext is like NewStoppableWorkers but the workers also stop when parent is done.
func NewStoppableWorkersWithContext(parent context.Context, funcs ...func(context.Context)) StoppableWorkers {
	cancelCtx, cancelFunc := context.WithCancel(parent)
	workers := &stoppableWorkersImpl{cancelCtx: cancelCtx, cancelFunc: cancelFunc}
	workers.AddWorkers(funcs...)
	return workers
}

// AddWorkers starts one goroutine per function. It does nothing once Stop was called.
func (sw *stoppableWorkersImpl) AddWorkers(funcs ...func(context.Context)) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.cancelCtx.Err() != nil {
		return
	}
	sw.active.Add(len(funcs))
	for _, f := range funcs {
		goutils.PanicCapturingGo(func() {
			defer sw.active.Done()
			f(sw.cancelCtx)
		})
	}
}

// Stop cancels the context of the workers and waits for all of them to return.
func (sw *stoppableWorkersImpl) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.cancelFunc()
	sw.active.Wait()
}

func (sw *stoppableWorkersImpl) Context() context.Context {
	return sw.cancelCtx
}
