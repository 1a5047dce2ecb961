package tokens

import (
	"errors"
	"fmt"

	"github.com/arclight-io/scrubber/pkg/repository"
)

// Domain errors for token store operations.
var (
	ErrStoreWrite = errors.New("token record write failed")
	// ErrDuplicate indicates the unique token index rejected a mint. The
	// advisory lock serializes minting, so this only fires if the backstop
	// index catches writes from outside the store.
	ErrDuplicate = errors.New("duplicate token mapping")
)

// mapWriteError wraps a persistence failure in ErrStoreWrite, translating a
// unique-index violation into ErrDuplicate first.
func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStoreWrite, repository.MapError(err, err, ErrDuplicate))
}
