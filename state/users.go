package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/itrek/trekd/params"
	"github.com/itrek/trekd/types/user"
	"github.com/jellydator/ttlcache/v3"
	"go.etcd.io/bbolt"
)

func normalize(s string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(s)))
}

// PutUser inserts or updates a user, keeping the username and email indexes in sync.
// A zero ID gets the next id from the users sequence.
// Taking another user's username or email fails with ErrExists.
func (s *Store) PutUser(rec *user.Record) error {
	return s.DB.Update(func(tx *bbolt.Tx) error {
		users := tx.Bucket(params.BucketUsers)
		if rec.ID == 0 {
			id, err := users.NextSequence()
			if err != nil {
				return err
			}
			rec.ID = id
		}
		old := &user.Record{}
		err := getJSON(tx, params.BucketUsers, itob(rec.ID), old)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		hadOld := err == nil

		for _, ix := range []struct {
			bucket   []byte
			old, new string
			what     string
		}{
			{params.BucketUsernames, old.Username, rec.Username, "username"},
			{params.BucketEmails, old.Email, rec.Email, "email"},
		} {
			b := tx.Bucket(ix.bucket)
			key := normalize(ix.new)
			if len(key) == 0 {
				if ix.what == "username" {
					return fmt.Errorf("empty username")
				}
			} else if owner := b.Get(key); owner != nil && btoi(owner) != rec.ID {
				return fmt.Errorf("%s %q: %w", ix.what, ix.new, ErrExists)
			}
			if hadOld && ix.old != "" && string(normalize(ix.old)) != string(key) {
				if err := b.Delete(normalize(ix.old)); err != nil {
					return err
				}
			}
			if len(key) > 0 {
				if err := b.Put(key, itob(rec.ID)); err != nil {
					return err
				}
			}
		}
		return putJSON(tx, params.BucketUsers, itob(rec.ID), rec)
	})
}

func (s *Store) GetUser(id uint64) (*user.Record, error) {
	rec := &user.Record{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return getJSON(tx, params.BucketUsers, itob(id), rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) userByIndex(bucket []byte, key string) (*user.Record, error) {
	rec := &user.Record{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucket).Get(normalize(key))
		if id == nil {
			return ErrNotFound
		}
		return getJSON(tx, params.BucketUsers, id, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UserByUsername looks up a user by username, case-insensitively.
func (s *Store) UserByUsername(username string) (*user.Record, error) {
	return s.userByIndex(params.BucketUsernames, username)
}

// UserByEmail looks up a user by email, case-insensitively.
func (s *Store) UserByEmail(email string) (*user.Record, error) {
	return s.userByIndex(params.BucketEmails, email)
}

// ListUsers returns all users in id order.
func (s *Store) ListUsers() ([]*user.Record, error) {
	out := []*user.Record{}
	err := s.DB.View(func(tx *bbolt.Tx) error {
		return scanJSON(tx, params.BucketUsers, nil, func(rec *user.Record) error {
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// DeleteUser removes the user, its index entries and its tokens.
// Routes, shares, ratings and comments are left to the caller.
func (s *Store) DeleteUser(id uint64) error {
	var tokens []string
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		rec := &user.Record{}
		if err := getJSON(tx, params.BucketUsers, itob(id), rec); err != nil {
			return err
		}
		if err := tx.Bucket(params.BucketUsernames).Delete(normalize(rec.Username)); err != nil {
			return err
		}
		if rec.Email != "" {
			if err := tx.Bucket(params.BucketEmails).Delete(normalize(rec.Email)); err != nil {
				return err
			}
		}
		var err error
		tokens, err = deleteTokensFor(tx, id)
		if err != nil {
			return err
		}
		return tx.Bucket(params.BucketUsers).Delete(itob(id))
	})
	for _, t := range tokens {
		s.tokens.Delete(t)
	}
	return err
}

// PutToken stores an auth token for a user.
func (s *Store) PutToken(token string, userID uint64) error {
	err := s.DB.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(params.BucketTokens).Put([]byte(token), itob(userID))
	})
	if err == nil {
		s.tokens.Set(token, userID, ttlcache.DefaultTTL)
	}
	return err
}

// TokenUser returns the id of the user owning token.
func (s *Store) TokenUser(token string) (uint64, error) {
	if token == "" {
		return 0, ErrNotFound
	}
	if item := s.tokens.Get(token); item != nil {
		return item.Value(), nil
	}
	var id uint64
	err := s.DB.View(func(tx *bbolt.Tx) error {
		got := tx.Bucket(params.BucketTokens).Get([]byte(token))
		if got == nil {
			return ErrNotFound
		}
		id = btoi(got)
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.tokens.Set(token, id, ttlcache.DefaultTTL)
	return id, nil
}

// UserToken returns any existing token of the user.
func (s *Store) UserToken(userID uint64) (string, error) {
	var token string
	err := s.DB.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(params.BucketTokens).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if btoi(v) == userID {
				token = string(k)
				return nil
			}
		}
		return ErrNotFound
	})
	return token, err
}

func (s *Store) DeleteToken(token string) error {
	s.tokens.Delete(token)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(params.BucketTokens).Delete([]byte(token))
	})
}

func deleteTokensFor(tx *bbolt.Tx, userID uint64) ([]string, error) {
	b := tx.Bucket(params.BucketTokens)
	var keys []string
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		if btoi(v) == userID {
			keys = append(keys, string(k))
		}
	}
	for _, k := range keys {
		if err := b.Delete([]byte(k)); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
