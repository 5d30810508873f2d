package registry

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	owner = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	proj1 = common.HexToAddress("0x3000000000000000000000000000000000000001")
	proj2 = common.HexToAddress("0x3000000000000000000000000000000000000002")
	proj3 = common.HexToAddress("0x3000000000000000000000000000000000000003")
)

func newTestRegistry(c *qt.C, maxRecipients uint64) *Registry {
	r, err := New(metadb.NewTest(c.TB), owner, maxRecipients)
	c.Assert(err, qt.IsNil)
	return r
}

func TestAddAssignsSequentialSlots(t *testing.T) {
	c := qt.New(t)
	r := newTestRegistry(c, 5)

	for i, p := range []common.Address{proj1, proj2, proj3} {
		index, err := r.Add(owner, p)
		c.Assert(err, qt.IsNil)
		c.Assert(index, qt.Equals, uint64(i))
	}
	count, err := r.Count()
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(3))

	_, err = r.Add(owner, proj1)
	c.Assert(err, qt.ErrorIs, ErrAlreadyRegistered)
	_, err = r.Add(proj1, common.HexToAddress("0x04"))
	c.Assert(err, qt.ErrorIs, ErrNotOwner)
}

func TestRegistryFull(t *testing.T) {
	c := qt.New(t)
	r := newTestRegistry(c, 2)

	_, err := r.Add(owner, proj1)
	c.Assert(err, qt.IsNil)
	_, err = r.Add(owner, proj2)
	c.Assert(err, qt.IsNil)
	_, err = r.Add(owner, proj3)
	c.Assert(err, qt.ErrorIs, ErrRegistryFull)
}

func TestRemoveFreesSlotForReuse(t *testing.T) {
	c := qt.New(t)
	r := newTestRegistry(c, 2)

	_, err := r.Add(owner, proj1)
	c.Assert(err, qt.IsNil)
	index2, err := r.Add(owner, proj2)
	c.Assert(err, qt.IsNil)

	c.Assert(r.Remove(proj1, proj2), qt.ErrorIs, ErrNotOwner)
	c.Assert(r.Remove(owner, proj2), qt.IsNil)
	c.Assert(r.Remove(owner, proj2), qt.ErrorIs, ErrNotRegistered)

	// The freed slot is reassigned.
	index3, err := r.Add(owner, proj3)
	c.Assert(err, qt.IsNil)
	c.Assert(index3, qt.Equals, index2)
}

func TestResolveHonorsWindow(t *testing.T) {
	c := qt.New(t)
	r := newTestRegistry(c, 5)

	base := time.Now()
	r.now = func() time.Time { return base }
	index, err := r.Add(owner, proj1)
	c.Assert(err, qt.IsNil)

	// Registered for the whole window.
	got, ok := r.Resolve(index, base.Add(time.Hour), base.Add(2*time.Hour))
	c.Assert(ok, qt.IsTrue)
	c.Assert(got, qt.Equals, proj1)

	// Joined after the window start.
	_, ok = r.Resolve(index, base.Add(-time.Hour), base.Add(time.Hour))
	c.Assert(ok, qt.IsFalse)

	// Removed before the window end.
	r.now = func() time.Time { return base.Add(90 * time.Minute) }
	c.Assert(r.Remove(owner, proj1), qt.IsNil)
	_, ok = r.Resolve(index, base.Add(time.Hour), base.Add(2*time.Hour))
	c.Assert(ok, qt.IsFalse)

	// Removed after the window end still resolves.
	got, ok = r.Resolve(index, base.Add(time.Hour), base.Add(80*time.Minute))
	c.Assert(ok, qt.IsTrue)
	c.Assert(got, qt.Equals, proj1)

	// Unknown slot.
	_, ok = r.Resolve(99, base, base.Add(time.Hour))
	c.Assert(ok, qt.IsFalse)
}

func TestLoadIndexAfterReopen(t *testing.T) {
	c := qt.New(t)
	database := metadb.NewTest(c.TB)

	r, err := New(database, owner, 5)
	c.Assert(err, qt.IsNil)
	_, err = r.Add(owner, proj1)
	c.Assert(err, qt.IsNil)
	_, err = r.Add(owner, proj2)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Remove(owner, proj1), qt.IsNil)

	// A reopened registry rebuilds the live address index.
	reopened, err := New(database, owner, 5)
	c.Assert(err, qt.IsNil)
	_, err = reopened.Add(owner, proj2)
	c.Assert(err, qt.ErrorIs, ErrAlreadyRegistered)
	index, err := reopened.Add(owner, proj3)
	c.Assert(err, qt.IsNil)
	c.Assert(index, qt.Equals, uint64(0)) // freed slot reused
}
