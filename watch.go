package p4dctl

// WatchCleanupFunc stops a watch and waits for its goroutine to exit
type WatchCleanupFunc func() error
