// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package backend

import (
	"context"
	"time"

	"github.com/parfungo/parfun/future"
)

// localSingleProcess runs every task synchronously on the submitting
// goroutine. It exists for debugging: a stack trace from a failing task
// points straight at user code, with no pool machinery in between.
type localSingleProcess struct {
	closed bool
}

func newLocalSingleProcess(options map[string]any) (Backend, error) {
	return &localSingleProcess{}, nil
}

func (b *localSingleProcess) Session() (Session, error) {
	if b.closed {
		return nil, &ErrBackendUnavailable{Backend: "local_single_process"}
	}
	return &localSingleSession{backend: b}, nil
}

func (b *localSingleProcess) AllowsNestedTasks() bool { return true }

func (b *localSingleProcess) Close() error {
	b.closed = true
	return nil
}

type localSingleSession struct {
	backend *localSingleProcess
	closed  bool
}

func (s *localSingleSession) Submit(task Task) (*future.Future[any], error) {
	if s.closed || s.backend.closed {
		return nil, &ErrBackendUnavailable{Backend: "local_single_process"}
	}
	f := future.New[any]()
	ctx := WithSession(context.Background(), s.backend, s)

	start := time.Now()
	value, err, _ := runTask(ctx, task)
	d := time.Since(start)

	if err != nil {
		f.SetErr(err, d, true)
	} else {
		f.Set(value, d, true)
	}
	return f, nil
}

func (s *localSingleSession) PreloadValue(v any) (any, error) { return v, nil }

func (s *localSingleSession) Close() error {
	s.closed = true
	return nil
}
