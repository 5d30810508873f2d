// Package registry implements a simple owner-curated recipient registry.
// Each recipient occupies one vote option slot; additions and removals are
// timestamped so payouts only reach recipients that were registered for the
// whole voting window.
package registry

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"github.com/clrfund/maci-node/log"
	"github.com/clrfund/maci-node/storage"
)

var (
	ErrNotOwner          = fmt.Errorf("caller is not the registry owner")
	ErrRegistryFull      = fmt.Errorf("recipient registry is full")
	ErrAlreadyRegistered = fmt.Errorf("recipient is already registered")
	ErrNotRegistered     = fmt.Errorf("recipient is not registered")
)

var (
	slotPrefix = []byte("rs/")
	metaKey    = []byte("rmeta")
)

// slotRecord is the stored history of one vote option slot. A slot can be
// reassigned after removal; Resolve picks the occupant whose lifetime covers
// the queried window.
type slotRecord struct {
	Entries []slotEntry `cbor:"1,keyasint"`
}

type slotEntry struct {
	Address   common.Address `cbor:"1,keyasint"`
	AddedAt   int64          `cbor:"2,keyasint"`
	RemovedAt int64          `cbor:"3,keyasint,omitempty"`
}

type registryMeta struct {
	Count     uint64   `cbor:"1,keyasint"`
	FreeSlots []uint64 `cbor:"2,keyasint,omitempty"`
}

// Registry is a db-backed recipient set with at most maxRecipients live
// entries, keyed by vote option index.
type Registry struct {
	mu            sync.Mutex
	db            db.Database
	owner         common.Address
	maxRecipients uint64
	byAddress     map[common.Address]uint64

	now func() time.Time
}

// New opens a registry over the given database. maxRecipients should match
// the engine's vote option slot count.
func New(database db.Database, owner common.Address, maxRecipients uint64) (*Registry, error) {
	r := &Registry{
		db:            database,
		owner:         owner,
		maxRecipients: maxRecipients,
		byAddress:     make(map[common.Address]uint64),
		now:           time.Now,
	}
	if err := r.loadIndex(); err != nil {
		return nil, fmt.Errorf("load recipient index: %w", err)
	}
	return r, nil
}

// loadIndex rebuilds the live address index from the stored slot records.
func (r *Registry) loadIndex() error {
	meta, err := r.meta()
	if err != nil {
		return err
	}
	for slot := uint64(0); slot < meta.Count; slot++ {
		rec, err := r.slot(slot)
		if err != nil {
			return err
		}
		if rec == nil || len(rec.Entries) == 0 {
			continue
		}
		last := rec.Entries[len(rec.Entries)-1]
		if last.RemovedAt == 0 {
			r.byAddress[last.Address] = slot
		}
	}
	return nil
}

func (r *Registry) meta() (*registryMeta, error) {
	reader := prefixeddb.NewPrefixedReader(r.db, slotPrefix)
	data, err := reader.Get(metaKey)
	if err != nil {
		if err == db.ErrKeyNotFound {
			return &registryMeta{}, nil
		}
		return nil, err
	}
	meta := &registryMeta{}
	if err := storage.DecodeArtifact(data, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (r *Registry) slot(index uint64) (*slotRecord, error) {
	reader := prefixeddb.NewPrefixedReader(r.db, slotPrefix)
	data, err := reader.Get(slotKey(index))
	if err != nil {
		if err == db.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	rec := &slotRecord{}
	if err := storage.DecodeArtifact(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *Registry) persist(index uint64, rec *slotRecord, meta *registryMeta) error {
	tx := prefixeddb.NewPrefixedWriteTx(r.db.WriteTx(), slotPrefix)
	defer tx.Discard()
	data, err := storage.EncodeArtifact(rec)
	if err != nil {
		return err
	}
	if err := tx.Set(slotKey(index), data); err != nil {
		return err
	}
	if meta != nil {
		metaData, err := storage.EncodeArtifact(meta)
		if err != nil {
			return err
		}
		if err := tx.Set(metaKey, metaData); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Add registers a recipient and returns its vote option index. Removed
// slots are reused before new ones are opened. Owner-only.
func (r *Registry) Add(caller, recipient common.Address) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return 0, ErrNotOwner
	}
	if _, ok := r.byAddress[recipient]; ok {
		return 0, ErrAlreadyRegistered
	}
	meta, err := r.meta()
	if err != nil {
		return 0, err
	}

	var index uint64
	if n := len(meta.FreeSlots); n > 0 {
		index = meta.FreeSlots[n-1]
		meta.FreeSlots = meta.FreeSlots[:n-1]
	} else {
		if meta.Count >= r.maxRecipients {
			return 0, ErrRegistryFull
		}
		index = meta.Count
		meta.Count++
	}

	rec, err := r.slot(index)
	if err != nil {
		return 0, err
	}
	if rec == nil {
		rec = &slotRecord{}
	}
	rec.Entries = append(rec.Entries, slotEntry{
		Address: recipient,
		AddedAt: r.now().Unix(),
	})
	if err := r.persist(index, rec, meta); err != nil {
		return 0, err
	}
	r.byAddress[recipient] = index

	log.Infow("recipient added",
		"recipient", recipient.Hex(),
		"voteOptionIndex", index)
	return index, nil
}

// Remove deregisters a recipient, freeing its slot for reuse. Owner-only.
func (r *Registry) Remove(caller, recipient common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return ErrNotOwner
	}
	index, ok := r.byAddress[recipient]
	if !ok {
		return ErrNotRegistered
	}
	rec, err := r.slot(index)
	if err != nil {
		return err
	}
	if rec == nil || len(rec.Entries) == 0 {
		return ErrNotRegistered
	}
	meta, err := r.meta()
	if err != nil {
		return err
	}
	rec.Entries[len(rec.Entries)-1].RemovedAt = r.now().Unix()
	meta.FreeSlots = append(meta.FreeSlots, index)
	if err := r.persist(index, rec, meta); err != nil {
		return err
	}
	delete(r.byAddress, recipient)

	log.Infow("recipient removed",
		"recipient", recipient.Hex(),
		"voteOptionIndex", index)
	return nil
}

// Resolve returns the address occupying the slot for the whole window
// [windowStart, windowEnd]: registered no later than windowStart and not
// removed before windowEnd. Recipients that joined late or left early get
// no payout.
func (r *Registry) Resolve(index uint64, windowStart, windowEnd time.Time) (common.Address, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := r.slot(index)
	if err != nil || rec == nil {
		return common.Address{}, false
	}
	start := windowStart.Unix()
	end := windowEnd.Unix()
	for i := len(rec.Entries) - 1; i >= 0; i-- {
		e := rec.Entries[i]
		if e.AddedAt > start {
			continue
		}
		if e.RemovedAt != 0 && e.RemovedAt < end {
			continue
		}
		return e.Address, true
	}
	return common.Address{}, false
}

// Count returns the number of slots ever assigned, including freed ones.
func (r *Registry) Count() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, err := r.meta()
	if err != nil {
		return 0, err
	}
	return meta.Count, nil
}

// MaxRecipients returns the slot capacity.
func (r *Registry) MaxRecipients() uint64 {
	return r.maxRecipients
}

func slotKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)
	return key
}
