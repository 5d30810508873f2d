package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"

	"github.com/clrfund/maci-node/maci"
	"github.com/clrfund/maci-node/registry"
	"github.com/clrfund/maci-node/round"
	stg "github.com/clrfund/maci-node/storage"
	"github.com/clrfund/maci-node/token"
	"github.com/clrfund/maci-node/types"
)

var (
	testOwner       = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testCoordinator = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	testVoter       = common.HexToAddress("0x1000000000000000000000000000000000000001")
)

type acceptAll struct{}

func (acceptAll) Verify(*types.Proof, []*big.Int) bool { return true }

// newTestAPI wires an API over a fresh round and engine without starting an
// HTTP listener.
func newTestAPI(c *qt.C, seed string) *API {
	database := metadb.NewTest(c.TB)
	storage := stg.New(database)
	ledger := token.New(database, 18)
	reg, err := registry.New(database, testOwner, 25)
	c.Assert(err, qt.IsNil)

	r, err := round.New(round.Config{
		Owner:       testOwner,
		Coordinator: testCoordinator,
		Address:     common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"),
		Token:       ledger,
		Recipients:  reg,
		Storage:     storage,
	})
	c.Assert(err, qt.IsNil)

	engine, err := maci.New(maci.Params{
		StateTreeDepth:      4,
		MessageTreeDepth:    4,
		VoteOptionTreeDepth: 2,
		MessageBatchSize:    4,
		TallyBatchSize:      4,
		SignUpDuration:      time.Hour,
		VotingDuration:      time.Hour,
		Coordinator:         testCoordinator,
		CoordinatorPubKey:   types.NewPubKey(big.NewInt(1), big.NewInt(2)),
		BatchVerifier:       acceptAll{},
		TallyVerifier:       acceptAll{},
		Gate:                r,
		Credits:             r,
	})
	c.Assert(err, qt.IsNil)
	r.SetEngine(engine)

	a := &API{engine: engine, round: r, storage: storage}
	if seed != "" {
		u, err := CoordinatorSeedToUUID(seed)
		c.Assert(err, qt.IsNil)
		a.coordinatorUUID = u
	}
	a.initRouter()
	return a
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(c, "")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", PingEndpoint, nil)
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusOK)
}

func TestEngineStatusEndpoint(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(c, "")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", EngineEndpoint, nil)
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusOK)

	var status EngineStatus
	c.Assert(json.Unmarshal(rr.Body.Bytes(), &status), qt.IsNil)
	c.Assert(status.NumSignUps, qt.Equals, uint64(0))
	c.Assert(status.NumMessages, qt.Equals, uint64(0))
	c.Assert(status.Sealed, qt.IsFalse)
	c.Assert(status.StateRoot, qt.IsNotNil)
}

func TestRoundStatusEndpoint(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(c, "")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", RoundEndpoint, nil)
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusOK)

	var status RoundStatus
	c.Assert(json.Unmarshal(rr.Body.Bytes(), &status), qt.IsNil)
	c.Assert(status.Finalized, qt.IsFalse)
	c.Assert(status.Cancelled, qt.IsFalse)
	c.Assert(status.VoiceCreditFactor, qt.IsNotNil)
}

func TestPublishMessageEndpoint(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(c, "")

	msg := &types.Message{IV: types.NewInt(1)}
	for i := range msg.Data {
		msg.Data[i] = types.NewInt(i + 2)
	}
	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	body, err := json.Marshal(PublishMessageRequest{
		Caller:    testVoter.Bytes(),
		Message:   msg,
		EncPubKey: &pubKey,
	})
	c.Assert(err, qt.IsNil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", MessagesEndpoint, bytes.NewReader(body))
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusOK)

	var resp PublishMessageResponse
	c.Assert(json.Unmarshal(rr.Body.Bytes(), &resp), qt.IsNil)
	c.Assert(resp.MessageIndex, qt.Equals, uint64(0))
	c.Assert(resp.MessageRoot, qt.IsNotNil)
	c.Assert(a.engine.NumMessages(), qt.Equals, uint64(1))
}

func TestPublishMessageMalformed(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(c, "")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", MessagesEndpoint, bytes.NewReader([]byte("not json")))
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)

	// Bad caller length.
	msg := &types.Message{IV: types.NewInt(1)}
	for i := range msg.Data {
		msg.Data[i] = types.NewInt(i)
	}
	pubKey := types.NewPubKey(big.NewInt(5), big.NewInt(6))
	body, err := json.Marshal(PublishMessageRequest{
		Caller:    []byte{0x01, 0x02},
		Message:   msg,
		EncPubKey: &pubKey,
	})
	c.Assert(err, qt.IsNil)
	rr = httptest.NewRecorder()
	req = httptest.NewRequest("POST", MessagesEndpoint, bytes.NewReader(body))
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusBadRequest)
}

func TestTallyResultNotVerified(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(c, "")

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", TallyEndpoint+"/3", nil)
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusNotFound)
}

func TestPublishTallyHashAuth(t *testing.T) {
	c := qt.New(t)
	a := newTestAPI(c, "test-seed")

	body, err := json.Marshal(PublishTallyHashRequest{TallyHash: "QmHash"})
	c.Assert(err, qt.IsNil)

	// Wrong token.
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/coordinator/00000000-0000-0000-0000-000000000000/tally-hash", bytes.NewReader(body))
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusForbidden)

	// Correct token derived from the seed.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/coordinator/"+a.coordinatorUUID.String()+"/tally-hash", bytes.NewReader(body))
	a.Router().ServeHTTP(rr, req)
	c.Assert(rr.Code, qt.Equals, http.StatusOK)

	hash, err := a.round.TallyHash()
	c.Assert(err, qt.IsNil)
	c.Assert(hash, qt.Equals, "QmHash")
}
