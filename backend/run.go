// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package backend

import "context"

// runTask invokes task, recovering a panic rather than letting it cross the
// worker goroutine boundary. A normal (value, err) return with err != nil is
// wrapped in ErrTaskRaised: user code failed, the worker is fine. A panic is
// treated as the worker itself dying mid-task (ErrWorkerDied) and is
// reported back to the caller via the fatal return, so that a pool can
// retire and replace the goroutine that produced it.
func runTask(ctx context.Context, task Task) (value any, err error, fatal bool) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = &ErrWorkerDied{Reason: r}
			fatal = true
		}
	}()
	v, taskErr := task(ctx)
	if taskErr != nil {
		return nil, &ErrTaskRaised{Inner: taskErr}, false
	}
	return v, nil, false
}
