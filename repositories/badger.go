package repositories

import (
	stderrors "errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"talkify/errors"
)

// maxTxnRetries bounds the compare-and-retry loop used for atomic
// read-modify-write operations. Badger detects write conflicts between
// concurrent transactions and returns ErrConflict; retrying re-reads the
// document so no increment is ever lost.
const maxTxnRetries = 8

// update runs fn in a read-write transaction, retrying on conflict.
func update(db *badger.DB, fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = db.Update(fn)
		if !stderrors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// sentinels pass through wrapStorage untouched so callers can match on them.
var sentinels = []error{
	errors.ErrNotFound,
	errors.ErrConversationExists,
	errors.ErrSameParticipant,
	errors.ErrUserAlreadyExists,
	errors.ErrStorageUnavailable,
}

// wrapStorage maps raw storage failures to the ErrStorageUnavailable taxonomy.
func wrapStorage(err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range sentinels {
		if stderrors.Is(err, sentinel) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err)
}
