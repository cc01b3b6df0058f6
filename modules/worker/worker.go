// Copyright 2025 Nguyen Nhat Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"context"
	"sync"
)

type Worker[Job any] func(context.Context, Job)

// BlockingPool spawns size workers that drain jobs and blocks until the
// channel is closed or the context is cancelled. Capping concurrency
// keeps a large job fan-out from turning into uncontrolled goroutine
// growth.
//
// The caller must ensure the jobs channel eventually closes or the
// context gets cancelled.
func BlockingPool[Job any](ctx context.Context, size int, jobs <-chan Job, worker Worker[Job]) {
	if size <= 0 {
		size = 1
	}
	wg := sync.WaitGroup{}
	for range size {
		wg.Go(func() {
			// wg.Go requires that func does not panic
			defer func() { _ = recover() }()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					worker(ctx, job)
				}
			}
		})
	}

	wg.Wait()
}
