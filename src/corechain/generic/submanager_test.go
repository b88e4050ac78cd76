package generic

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcsign/walletcore/corechain"
	"github.com/arcsign/walletcore/corechain/rpc"
	"github.com/arcsign/walletcore/corechain/storage"
)

type fakeRPCClient struct {
	mu        sync.Mutex
	responses map[string]json.RawMessage
	errs      map[string]error
	calls     []string
}

func newFakeRPCClient() *fakeRPCClient {
	return &fakeRPCClient{responses: map[string]json.RawMessage{}, errs: map[string]error{}}
}

func (f *fakeRPCClient) set(method string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	f.mu.Lock()
	f.responses[method] = raw
	f.mu.Unlock()
}

func (f *fakeRPCClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, method)
	if err, ok := f.errs[method]; ok {
		return nil, err
	}
	return f.responses[method], nil
}

func (f *fakeRPCClient) CallBatch(ctx context.Context, requests []rpc.Request) ([]json.RawMessage, error) {
	return nil, nil
}

func (f *fakeRPCClient) Close() error { return nil }

var _ rpc.Client = (*fakeRPCClient)(nil)

// inMemoryStore is a minimal storage.TransferStateStore fake.
type inMemoryStore struct {
	mu    sync.Mutex
	byKey map[string]*storage.TransferState
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{byKey: map[string]*storage.TransferState{}}
}

func (s *inMemoryStore) Get(hash string) (*storage.TransferState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKey[hash], nil
}

func (s *inMemoryStore) Set(hash string, state *storage.TransferState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[hash] = state
	return nil
}

func (s *inMemoryStore) Delete(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byKey, hash)
	return nil
}

func (s *inMemoryStore) List() ([]*storage.TransferState, error) { return nil, nil }
func (s *inMemoryStore) ListByStatus(status storage.TransferStatus) ([]*storage.TransferState, error) {
	return nil, nil
}
func (s *inMemoryStore) Clean(olderThan time.Duration) (int, error) { return 0, nil }

func testXRPSubWallet() *xrpSubWallet {
	return &xrpSubWallet{address: "rTestAccount1234567890", balance: big.NewInt(0)}
}

func TestSubManagerSyncUpdatesWalletFromAccountInfo(t *testing.T) {
	client := newFakeRPCClient()
	client.set("account_info", map[string]interface{}{
		"account_data": map[string]interface{}{
			"Sequence": 7,
			"Balance":  "4200000",
		},
		"ledger_current_index": 100,
	})
	client.set("fee", map[string]interface{}{
		"drops": map[string]interface{}{"base_fee": "12"},
	})

	w := testXRPSubWallet()
	m := NewSubManager(corechain.ChainType("xrp"), client, w, nil)

	require.NoError(t, m.Sync(context.Background()))

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.EqualValues(t, 7, w.sequence)
	assert.Equal(t, big.NewInt(4200000), w.balance)
	require.NotNil(t, w.defaultFee)
	assert.EqualValues(t, 12, w.defaultFee.PricePerCostFactor.Uint64())
}

func TestSubManagerSyncFallsBackToDefaultFeeOnBadQuote(t *testing.T) {
	client := newFakeRPCClient()
	client.set("account_info", map[string]interface{}{
		"account_data": map[string]interface{}{"Sequence": 1, "Balance": "100"},
	})
	client.set("fee", map[string]interface{}{"drops": map[string]interface{}{"base_fee": "not-a-number"}})

	w := testXRPSubWallet()
	m := NewSubManager(corechain.ChainType("xrp"), client, w, nil)
	require.NoError(t, m.Sync(context.Background()))

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.EqualValues(t, 10, w.defaultFee.PricePerCostFactor.Uint64())
}

func TestSubManagerDiscoverTransfersSkipsKnownAndReportsNew(t *testing.T) {
	client := newFakeRPCClient()
	client.set("account_tx", map[string]interface{}{
		"transactions": []map[string]interface{}{
			{
				"meta": map[string]interface{}{"TransactionResult": "tesSUCCESS"},
				"tx": map[string]interface{}{
					"hash":        "AAAA",
					"Account":     "rSender",
					"Destination": "rReceiver",
					"Amount":      "1000000",
					"Fee":         "10",
					"date":        0,
				},
				"ledger_index": 50,
			},
			{
				"meta": map[string]interface{}{"TransactionResult": "tesSUCCESS"},
				"tx": map[string]interface{}{
					"hash":        "BBBB",
					"Account":     "rSender",
					"Destination": "rReceiver",
					"Amount":      "2000000",
					"Fee":         "10",
					"date":        5,
				},
				"ledger_index": 51,
			},
		},
	})

	store := newInMemoryStore()
	require.NoError(t, store.Set("AAAA", &storage.TransferState{Hash: "AAAA"}))

	w := testXRPSubWallet()
	m := NewSubManager(corechain.ChainType("xrp"), client, w, store)

	var recovered []corechain.TransferRecoveryFields
	m.SetOnTransferRecovered(func(fields corechain.TransferRecoveryFields) {
		recovered = append(recovered, fields)
	})

	require.NoError(t, m.discoverTransfers(context.Background(), 0))

	require.Len(t, recovered, 1)
	assert.Equal(t, "BBBB", recovered[0].Hash)
	assert.Equal(t, "rSender", recovered[0].From)
	assert.Equal(t, "rReceiver", recovered[0].To)
	assert.Equal(t, big.NewInt(2000000), recovered[0].Amount)
	assert.Equal(t, "included", recovered[0].State)

	st, err := store.Get("BBBB")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, storage.TransferStatusConfirmed, st.Status)

	m.mu.Lock()
	last := m.lastLedger
	m.mu.Unlock()
	assert.EqualValues(t, 51, last)
}

func TestSubManagerDiscoverTransfersMarksFailedResultAsErrored(t *testing.T) {
	client := newFakeRPCClient()
	client.set("account_tx", map[string]interface{}{
		"transactions": []map[string]interface{}{
			{
				"meta": map[string]interface{}{"TransactionResult": "tecUNFUNDED_PAYMENT"},
				"tx": map[string]interface{}{
					"hash":        "CCCC",
					"Account":     "rSender",
					"Destination": "rReceiver",
					"Amount":      "100",
					"Fee":         "10",
					"date":        0,
				},
				"ledger_index": 10,
			},
		},
	})

	w := testXRPSubWallet()
	m := NewSubManager(corechain.ChainType("xrp"), client, w, nil)

	var recovered []corechain.TransferRecoveryFields
	m.SetOnTransferRecovered(func(fields corechain.TransferRecoveryFields) {
		recovered = append(recovered, fields)
	})

	require.NoError(t, m.discoverTransfers(context.Background(), 0))
	require.Len(t, recovered, 1)
	assert.Equal(t, "errored", recovered[0].State)
}

func TestSubManagerSubmitSignedRejectsUnsignedTransfer(t *testing.T) {
	client := newFakeRPCClient()
	w := testXRPSubWallet()
	m := NewSubManager(corechain.ChainType("xrp"), client, w, nil)

	err := m.SubmitSigned(context.Background(), w, &xrpTransfer{})
	require.Error(t, err)
}

func TestSubManagerStopIsIdempotent(t *testing.T) {
	m := NewSubManager(corechain.ChainType("xrp"), newFakeRPCClient(), testXRPSubWallet(), nil)
	m.Stop()
	m.Stop()
}
