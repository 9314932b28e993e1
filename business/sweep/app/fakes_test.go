package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/token-sweeper/business/sweep/domain"
	walletApp "github.com/fd1az/token-sweeper/business/wallet/app"
	walletDomain "github.com/fd1az/token-sweeper/business/wallet/domain"
	"github.com/fd1az/token-sweeper/internal/apperror"
	"github.com/fd1az/token-sweeper/internal/asset"
	"github.com/fd1az/token-sweeper/internal/logger"
)

var (
	wallet    = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	router    = common.HexToAddress("0x0000000000001fF3684f28c67538d4D072C22734")
	tokenA    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	tokenC    = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	tokenD    = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	testChain = uint64(asset.ChainIDBase)
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

// fakeSession records every signing request. Swap receipts are consumed in
// order; once exhausted every receipt succeeds with logs.
type fakeSession struct {
	mu           sync.Mutex
	sent         []walletDomain.TxRequest
	signed       []walletDomain.TypedData
	swapReceipts []*walletDomain.Receipt
	receipts     map[common.Hash]*walletDomain.Receipt
	sendErr      error
	signature    []byte
	seq          int64
}

func newFakeSession() *fakeSession {
	return &fakeSession{receipts: make(map[common.Hash]*walletDomain.Receipt)}
}

var _ walletApp.Session = (*fakeSession)(nil)

func (s *fakeSession) Address() common.Address { return wallet }

func (s *fakeSession) ReadContract(context.Context, walletDomain.ContractCall) ([]any, error) {
	return nil, errors.New("not used")
}

func (s *fakeSession) WriteContract(context.Context, walletDomain.ContractCall) (common.Hash, error) {
	return s.nextHash(), nil
}

func (s *fakeSession) SendTransaction(_ context.Context, tx walletDomain.TxRequest) (common.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, tx)
	if s.sendErr != nil {
		return common.Hash{}, s.sendErr
	}

	s.seq++
	hash := common.BigToHash(big.NewInt(1000 + s.seq))
	receipt := &walletDomain.Receipt{TxHash: hash, Status: walletDomain.ReceiptSuccess, LogCount: 3}
	if len(s.swapReceipts) > 0 {
		receipt = s.swapReceipts[0]
		s.swapReceipts = s.swapReceipts[1:]
	}
	s.receipts[hash] = receipt
	return hash, nil
}

func (s *fakeSession) SignTypedData(_ context.Context, td walletDomain.TypedData) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signed = append(s.signed, td)
	return s.signature, nil
}

func (s *fakeSession) WaitForReceipt(_ context.Context, hash common.Hash) (*walletDomain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.receipts[hash]; ok {
		return r, nil
	}
	return &walletDomain.Receipt{TxHash: hash, Status: walletDomain.ReceiptSuccess, LogCount: 1}, nil
}

func (s *fakeSession) nextHash() common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return common.BigToHash(big.NewInt(s.seq))
}

func (s *fakeSession) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeQuotes answers per sell token; tokens without an entry get a direct
// quote through router.
type fakeQuotes struct {
	mu      sync.Mutex
	errs    map[common.Address]error
	quotes  map[common.Address]*domain.Quote
	calls   []domain.QuoteRequest
	onQuote func(req domain.QuoteRequest)
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{
		errs:   make(map[common.Address]error),
		quotes: make(map[common.Address]*domain.Quote),
	}
}

func (q *fakeQuotes) Quote(_ context.Context, req domain.QuoteRequest) (*domain.Quote, error) {
	q.mu.Lock()
	q.calls = append(q.calls, req)
	hook := q.onQuote
	err := q.errs[req.SellToken]
	quote, ok := q.quotes[req.SellToken]
	q.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if err != nil {
		return nil, err
	}
	if ok {
		return quote, nil
	}

	spender := router
	return &domain.Quote{
		Token:           req.SellToken,
		SellAmount:      req.SellAmount,
		BuyAmount:       big.NewInt(1),
		AllowanceTarget: &spender,
		Transaction:     domain.QuoteTx{To: router, Data: []byte{0xde, 0xad}},
	}, nil
}

func (q *fakeQuotes) callsFor(token common.Address) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, c := range q.calls {
		if c.SellToken == token {
			n++
		}
	}
	return n
}

func (q *fakeQuotes) total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

func noLiquidity() error {
	return apperror.New(apperror.CodeQuoteNoLiquidity,
		apperror.WithCause(&domain.QuoteError{StatusCode: 503, Body: `{"message":"No liquidity","liquidityAvailable":false}`}))
}

type approveCall struct {
	token, spender common.Address
	amount         *big.Int
}

// fakeTokens serves decimals and allowances from maps. Unknown tokens have
// 18 decimals and zero allowance.
type fakeTokens struct {
	mu           sync.Mutex
	decimals     map[common.Address]uint8
	decimalsErr  map[common.Address]error
	allowances   map[common.Address]*big.Int
	approveErr   error
	approvals    []approveCall
	reads        int
	approvalHash common.Hash
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		decimals:     make(map[common.Address]uint8),
		decimalsErr:  make(map[common.Address]error),
		allowances:   make(map[common.Address]*big.Int),
		approvalHash: common.HexToHash("0xa99"),
	}
}

func (f *fakeTokens) Decimals(_ context.Context, token common.Address) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.decimalsErr[token]; err != nil {
		return 0, err
	}
	if d, ok := f.decimals[token]; ok {
		return d, nil
	}
	return 18, nil
}

func (f *fakeTokens) Symbol(_ context.Context, token common.Address) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return "TK" + strings.ToLower(token.Hex()[40:]), nil
}

func (f *fakeTokens) Allowance(_ context.Context, token, _, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if a, ok := f.allowances[token]; ok {
		return a, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeTokens) Approve(_ context.Context, _ walletApp.Session, token, spender common.Address, amount *big.Int) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals = append(f.approvals, approveCall{token: token, spender: spender, amount: amount})
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	return f.approvalHash, nil
}

func (f *fakeTokens) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

type countingPacer struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *countingPacer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingPruner struct {
	mu     sync.Mutex
	pruned []common.Address
}

func (p *recordingPruner) Prune(_ context.Context, token common.Address) {
	p.mu.Lock()
	p.pruned = append(p.pruned, token)
	p.mu.Unlock()
}

type countingRefresher struct {
	mu    sync.Mutex
	calls int
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	return nil
}

type memStore struct {
	mu        sync.Mutex
	entries   []common.Address
	appendErr error
}

func (m *memStore) Load(context.Context) ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]common.Address(nil), m.entries...), nil
}

func (m *memStore) Append(_ context.Context, token common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.entries = append(m.entries, token)
	return nil
}

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []domain.BatchStatus
}

func (r *snapshotRecorder) OnUpdate(status domain.BatchStatus) {
	r.mu.Lock()
	r.snaps = append(r.snaps, status)
	r.mu.Unlock()
}

func (r *snapshotRecorder) all() []domain.BatchStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.BatchStatus(nil), r.snaps...)
}

type fixedWallet struct {
	session walletApp.Session
}

func (w fixedWallet) Session() (walletApp.Session, bool) {
	return w.session, w.session != nil
}
