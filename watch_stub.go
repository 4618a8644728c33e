//go:build !linux && !darwin

package p4dctl

import (
	"context"
	"errors"
)

// watchPIDFile is not supported on this platform; callers fall back to polling
func watchPIDFile(_ context.Context, _ string) (<-chan struct{}, WatchCleanupFunc, error) {
	return nil, nil, errors.New("watch not supported on this platform")
}
