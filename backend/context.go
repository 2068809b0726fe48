// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package backend

import "context"

// ambientKey is the context key under which a worker's own backend and
// session are stashed before running a task, so that code running inside
// that task (e.g. a recursive DelayedValue construction) can reach "its"
// session to submit nested work, per spec §9's "ambient per-worker context"
// design note.
type ambientKey struct{}

type ambient struct {
	backend Backend
	session Session
}

// WithSession returns a context carrying backend/session as the ambient
// worker context. Backend implementations call this before invoking a Task.
func WithSession(ctx context.Context, b Backend, s Session) context.Context {
	return context.WithValue(ctx, ambientKey{}, &ambient{backend: b, session: s})
}

// FromContext retrieves the ambient backend/session set by WithSession, if
// any. It returns ok == false outside of a running task (e.g. at the
// top-level, before any backend has executed anything).
func FromContext(ctx context.Context) (b Backend, s Session, ok bool) {
	v, ok := ctx.Value(ambientKey{}).(*ambient)
	if !ok {
		return nil, nil, false
	}
	return v.backend, v.session, true
}
