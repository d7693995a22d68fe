package utils

import (
	"image"
	"runtime"
	"sync"

	goutils "go.viam.com/utils"
)

// ParallelFactor is the number of groups work is split into. Tests may lower it.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
	if quarterProcs := ParallelFactor / 4; quarterProcs > 8 {
		ParallelFactor = quarterProcs
	}
}

type (
	// BeforeParallelGroupWorkFunc executes before any work starts with the number of groups.
	BeforeParallelGroupWorkFunc func(numGroups int)
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs when a single group's work is done; helpful for merge stages.
	GroupWorkDoneFunc func()
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// GroupWorkParallel splits [0, totalSize) into ParallelFactor contiguous groups, runs each group in its own
// goroutine and waits for all of them. The last group takes the remainder so every index is visited exactly once.
func GroupWorkParallel(totalSize int, before BeforeParallelGroupWorkFunc, groupWork GroupWorkFunc) {
	numGroups := ParallelFactor
	groupSize := totalSize / numGroups
	if before != nil {
		before(numGroups)
	}

	var wait sync.WaitGroup
	wait.Add(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		from := groupNum * groupSize
		to := from + groupSize
		if groupNum == numGroups-1 {
			to = totalSize
		}
		goutils.PanicCapturingGo(func() {
			defer wait.Done()
			memberWork, groupWorkDone := groupWork(groupNum, to-from, from, to)
			if memberWork != nil {
				for workNum := from; workNum < to; workNum++ {
					memberWork(workNum-from, workNum)
				}
			}
			if groupWorkDone != nil {
				groupWorkDone()
			}
		})
	}
	wait.Wait()
}

// ParallelForEach calls f for every index in [0, n) spread over ParallelFactor workers.
func ParallelForEach(n int, f func(i int)) {
	GroupWorkParallel(n, nil, func(_, _, _, _ int) (MemberWorkFunc, GroupWorkDoneFunc) {
		return func(_, workNum int) { f(workNum) }, nil
	})
}

// ParallelForEachPixel calls f for every [x, y] position of an image of the given size. Rows are split in bands,
// one goroutine per band.
func ParallelForEachPixel(size image.Point, f func(x, y int)) {
	ParallelForEach(size.Y, func(y int) {
		for x := 0; x < size.X; x++ {
			f(x, y)
		}
	})
}
