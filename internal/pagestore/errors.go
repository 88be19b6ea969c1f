package pagestore

import "errors"

// ErrAllocationFailed wraps a failure to grow the backing file or its
// mmap during OpenFile or Commit — truncate/mmap syscall faults a caller
// can't work around by retrying the same write.
var ErrAllocationFailed = errors.New("pagestore: allocation failed")
