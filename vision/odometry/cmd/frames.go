package main

import (
	"context"
	"image"

	"go.viam.com/monovo/utils"
)

// prefetchDepth is how many decoded frames may wait for the engine.
const prefetchDepth = 4

type loadedFrame struct {
	id  int
	img *image.Gray
	err error
}

// prefetchFrames decodes frames 0 to frames-1 of dir in the background, in order. The channel is closed after the
// last frame, after the first error, or when ctx is done. Stop the returned workers once done reading.
func prefetchFrames(ctx context.Context, dir string, frames int) (<-chan loadedFrame, utils.StoppableWorkers) {
	out := make(chan loadedFrame, prefetchDepth)
	workers := utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
		defer close(out)
		for id := 0; id < frames; id++ {
			img, err := loadFrame(dir, id)
			select {
			case out <- loadedFrame{id: id, img: img, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	})
	return out, workers
}
