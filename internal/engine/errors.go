package engine

import "fmt"

// PreconditionError is returned when the backup set holds a full image but no
// hash table. The earlier full backup may not have finished, so the run
// refuses to guess and leaves everything as it is.
type PreconditionError struct {
	ImagePath     string
	HashTablePath string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf(
		"full image %s exists but hash table %s does not; remove or move the image before running again",
		e.ImagePath, e.HashTablePath,
	)
}

// IncompleteWriteError is returned when a full backup wrote fewer blocks than
// the device holds. The image is incomplete and no hash table is saved.
type IncompleteWriteError struct {
	ImagePath string
	Written   int64
	Failed    int64
	Expected  int64
}

func (e *IncompleteWriteError) Error() string {
	return fmt.Sprintf("incorrect number of blocks copied to %s: wrote %d of %d (%d failed)",
		e.ImagePath, e.Written, e.Expected, e.Failed)
}
