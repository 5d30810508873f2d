/*
Package storage provides the persistent storage layer for a funding round.

The storage uses a key-value database with prefixed namespaces:

  - c/ : contributor address → ContributorStatus (voice credits, registration)
  - r/ : vote option index → RecipientStatus (claim flag, verified tally result)
  - m/ : round metadata (tally hash, finalization flags, alpha, totals)

All artifacts are CBOR-encoded with deterministic options, so a restarted
coordinator reloads exactly the state it persisted.
*/
package storage

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/clrfund/maci-node/log"
)

var (
	// ErrNotFound is returned when a key does not exist in the database.
	ErrNotFound = errors.New("not found")

	contributorPrefix = []byte("c/")
	recipientPrefix   = []byte("r/")
	roundMetaPrefix   = []byte("m/")

	roundMetaKey = []byte("meta")
)

const cacheSize = 1000

// Storage manages the persistent round artifacts.
type Storage struct {
	db    db.Database
	lock  sync.Mutex
	cache *lru.Cache[string, any]
}

// New creates a new Storage instance over the given database.
func New(database db.Database) *Storage {
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:    database,
		cache: cache,
	}
}

// Close closes the underlying database.
func (s *Storage) Close() {
	s.cache.Purge()
	if err := s.db.Close(); err != nil {
		log.Warnw("failed to close storage database", "error", err.Error())
	}
}

// setArtifact encodes and stores an artifact under prefix/key.
func (s *Storage) setArtifact(prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, data); err != nil {
		wTx.Discard()
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(prefix, key))
	return nil
}

// getArtifact fetches and decodes an artifact from prefix/key into out.
// Returns ErrNotFound if the key does not exist.
func (s *Storage) getArtifact(prefix, key []byte, out any) error {
	rd := prefixeddb.NewPrefixedReader(s.db, prefix)
	data, err := rd.Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	return DecodeArtifact(data, out)
}

func cacheKey(prefix, key []byte) string {
	return string(prefix) + string(key)
}

// SetContributor stores the status of a contributor.
func (s *Storage) SetContributor(addr common.Address, status *ContributorStatus) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.setArtifact(contributorPrefix, addr.Bytes(), status)
}

// Contributor returns the status of a contributor, or ErrNotFound.
func (s *Storage) Contributor(addr common.Address) (*ContributorStatus, error) {
	ck := cacheKey(contributorPrefix, addr.Bytes())
	if v, ok := s.cache.Get(ck); ok {
		return v.(*ContributorStatus), nil
	}
	status := &ContributorStatus{}
	if err := s.getArtifact(contributorPrefix, addr.Bytes(), status); err != nil {
		return nil, err
	}
	s.cache.Add(ck, status)
	return status, nil
}

// DeleteContributor removes a contributor record. Only used to roll back a
// partially applied contribution.
func (s *Storage) DeleteContributor(addr common.Address) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), contributorPrefix)
	if err := wTx.Delete(addr.Bytes()); err != nil {
		wTx.Discard()
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	s.cache.Remove(cacheKey(contributorPrefix, addr.Bytes()))
	return nil
}

// SetRecipient stores the status of a vote option recipient.
func (s *Storage) SetRecipient(index uint64, status *RecipientStatus) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.setArtifact(recipientPrefix, recipientKey(index), status)
}

// Recipient returns the status of a vote option recipient, or ErrNotFound.
func (s *Storage) Recipient(index uint64) (*RecipientStatus, error) {
	key := recipientKey(index)
	ck := cacheKey(recipientPrefix, key)
	if v, ok := s.cache.Get(ck); ok {
		return v.(*RecipientStatus), nil
	}
	status := &RecipientStatus{}
	if err := s.getArtifact(recipientPrefix, key, status); err != nil {
		return nil, err
	}
	s.cache.Add(ck, status)
	return status, nil
}

// SetRoundMeta stores the round metadata.
func (s *Storage) SetRoundMeta(meta *RoundMeta) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.setArtifact(roundMetaPrefix, roundMetaKey, meta)
}

// RoundMeta returns the round metadata. A fresh database yields the zero
// value rather than an error.
func (s *Storage) RoundMeta() (*RoundMeta, error) {
	meta := &RoundMeta{}
	err := s.getArtifact(roundMetaPrefix, roundMetaKey, meta)
	if errors.Is(err, ErrNotFound) {
		return &RoundMeta{}, nil
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}
