// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

package engine

import (
	"github.com/parfungo/parfun/backend"
	"github.com/parfungo/parfun/split"
)

// sizeEstimate approximates the wire size of v, in bytes, for the sole
// purpose of deciding whether it crosses the preload threshold. Exact sizing
// of an arbitrary Go value isn't possible without knowing its shape; callers
// for whom this matters can implement Sizer to report an exact count.
type Sizer interface {
	// SizeBytes returns an approximate size in bytes.
	SizeBytes() int
}

func sizeEstimate(v any) (int, bool) {
	switch x := v.(type) {
	case Sizer:
		return x.SizeBytes(), true
	case []byte:
		return len(x), true
	case string:
		return len(x), true
	default:
		return 0, false
	}
}

// preloadCarried replaces any carried argument whose estimated size exceeds
// thresholdBytes with the reference Session.PreloadValue returns for it, so
// it crosses the backend boundary once rather than once per chunk. Local,
// in-process backends make this a no-op; it only pays off once a backend
// must serialize values to remote workers.
func preloadCarried(sess backend.Session, carried split.NamedArguments, thresholdBytes int) (split.NamedArguments, error) {
	threshold := thresholdBytes
	if threshold <= 0 {
		threshold = defaultPreloadThreshold
	}

	out := carried.Clone()
	for i, v := range out.Positional {
		if size, ok := sizeEstimate(v); ok && size > threshold {
			preloaded, err := sess.PreloadValue(v)
			if err != nil {
				return split.NamedArguments{}, err
			}
			out.Positional[i] = preloaded
		}
	}
	for k, v := range out.Keyed {
		if size, ok := sizeEstimate(v); ok && size > threshold {
			preloaded, err := sess.PreloadValue(v)
			if err != nil {
				return split.NamedArguments{}, err
			}
			out.Keyed[k] = preloaded
		}
	}
	return out, nil
}
