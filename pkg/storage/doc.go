// Package storage writes dataset images into a category directory.
//
// Files are named by a zero-padded sequential index (000001.jpg, 000002.png,
// ...). The Manager scans the directory on creation so that it knows the
// highest index in use and the sha256 of every image already stored.
//
// Features:
//   - Atomic file writes using temporary files and rename
//   - Gap-free index assignment under a mutex
//   - Optional quota on the number of files written
//   - Content-hash duplicate detection
//
// Usage:
//
//	manager, err := storage.NewManager("dataset/paper_cup")
//	if err != nil {
//	    return err
//	}
//	manager.StartAfter(0)
//	manager.SetQuota(500)
//
//	file, err := manager.Store(data, ".jpg")
//	switch {
//	case errors.Is(err, storage.ErrDuplicate):
//	    // skip
//	case errors.Is(err, storage.ErrQuotaReached):
//	    // stop
//	}
package storage
