//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"talkify/domain"
	"talkify/errors"
)

// IUserRepository is the user directory consumed by the delivery core plus
// the registration operations of the auth surface.
type IUserRepository interface {
	CreateUser(user domain.User) (string, error)
	GetUserByID(id string) (domain.User, error)
	GetUserByEmail(email string) (domain.User, error)
	GetUserByUsername(username string) (domain.User, error)
	PreferredLanguage(id string) (string, error)
	UpdatePresence(id string, status domain.Status, lastSeen time.Time) error
	UpdateProfile(id string, changes ProfileUpdate) (domain.User, error)
	ListUsers() ([]domain.User, error)
}

// ProfileUpdate carries the mutable profile fields. A nil field is left
// untouched.
type ProfileUpdate struct {
	PreferredLanguage *string
	ProfilePicture    *string
	Email             *string
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// Key layout:
//
//	user:id:{uuid}        -> user document (JSON)
//	user:email:{email}    -> user id
//	user:name:{username}  -> user id
//
// The email and username entries double as uniqueness guards: a transaction
// that finds either key already present fails the whole registration.
func userKey(id string) []byte       { return []byte("user:id:" + id) }
func emailKey(email string) []byte   { return []byte("user:email:" + email) }
func nameKey(username string) []byte { return []byte("user:name:" + username) }

// CreateUser persists a new user and returns the generated identifier.
// The caller provides an already-hashed password.
func (r *UserRepository) CreateUser(user domain.User) (string, error) {
	user.ID = uuid.NewString()
	if user.Status == "" {
		user.Status = domain.StatusOffline
	}
	if user.PreferredLanguage == "" {
		user.PreferredLanguage = domain.DefaultLanguage
	}
	user.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(user)
	if err != nil {
		return "", err
	}

	err = update(r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(nameKey(user.Username)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if user.Email != "" {
			if _, err := txn.Get(emailKey(user.Email)); err == nil {
				return errors.ErrUserAlreadyExists
			}
			if err := txn.Set(emailKey(user.Email), []byte(user.ID)); err != nil {
				return err
			}
		}
		if err := txn.Set(nameKey(user.Username), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	if err != nil {
		return "", wrapStorage(err)
	}
	return user.ID, nil
}

func (r *UserRepository) GetUserByID(id string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		return readJSON(txn, userKey(id), &user)
	})
	return user, wrapStorage(err)
}

func (r *UserRepository) GetUserByEmail(email string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(id []byte) error {
			return readJSON(txn, userKey(string(id)), &user)
		})
	})
	return user, wrapStorage(err)
}

func (r *UserRepository) GetUserByUsername(username string) (domain.User, error) {
	var user domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nameKey(username))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(id []byte) error {
			return readJSON(txn, userKey(string(id)), &user)
		})
	})
	return user, wrapStorage(err)
}

func (r *UserRepository) PreferredLanguage(id string) (string, error) {
	user, err := r.GetUserByID(id)
	if err != nil {
		return "", err
	}
	return user.TargetLanguage(), nil
}

// UpdatePresence records a connectivity transition on the user document.
func (r *UserRepository) UpdatePresence(id string, status domain.Status, lastSeen time.Time) error {
	err := update(r.db, func(txn *badger.Txn) error {
		var user domain.User
		if err := readJSON(txn, userKey(id), &user); err != nil {
			return err
		}
		user.Status = status
		user.LastSeen = lastSeen
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
	return wrapStorage(err)
}

// UpdateProfile applies the provided fields to the user document. An email
// change rewrites the email index in the same transaction, so the uniqueness
// guard holds under concurrent updates.
func (r *UserRepository) UpdateProfile(id string, changes ProfileUpdate) (domain.User, error) {
	var user domain.User
	err := update(r.db, func(txn *badger.Txn) error {
		if err := readJSON(txn, userKey(id), &user); err != nil {
			return err
		}
		if changes.Email != nil && *changes.Email != user.Email {
			if _, err := txn.Get(emailKey(*changes.Email)); err == nil {
				return errors.ErrUserAlreadyExists
			}
			if user.Email != "" {
				if err := txn.Delete(emailKey(user.Email)); err != nil {
					return err
				}
			}
			if err := txn.Set(emailKey(*changes.Email), []byte(id)); err != nil {
				return err
			}
			user.Email = *changes.Email
		}
		if changes.PreferredLanguage != nil {
			user.PreferredLanguage = *changes.PreferredLanguage
		}
		if changes.ProfilePicture != nil {
			user.ProfilePicture = *changes.ProfilePicture
		}
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
	if err != nil {
		return domain.User{}, wrapStorage(err)
	}
	return user, nil
}

func (r *UserRepository) ListUsers() ([]domain.User, error) {
	var users []domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("user:id:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var user domain.User
				if err := json.Unmarshal(val, &user); err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, wrapStorage(err)
}

// readJSON loads and decodes one document, mapping a missing key to ErrNotFound.
func readJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return errors.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}
