package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// EVMConfig configures the gateway against a deployed node.
type EVMConfig struct {
	NodeURL         string
	AuthorityKey    string // hex private key of the single minting authority
	CoinAddress     string
	RegistryAddress string
	ChainID         int64
	GasLimit        uint64
	ReceiptTimeout  time.Duration
	PollInterval    time.Duration
	MaxAttempts     int
	RetryBackoff    time.Duration
	QueueCapacity   int
}

func (c *EVMConfig) applyDefaults() {
	if c.GasLimit == 0 {
		c.GasLimit = 500_000
	}
	if c.ReceiptTimeout <= 0 {
		c.ReceiptTimeout = 90 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = time.Second
	}
}

// evmBackend is the subset of the Ethereum RPC the gateway uses.
type evmBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// EVMGateway signs and submits contract calls from the authority account.
// Every state-changing call is funneled through the Submitter so the
// authority nonce sequence never races.
type EVMGateway struct {
	cfg       EVMConfig
	client    evmBackend
	key       *ecdsa.PrivateKey
	authority common.Address
	coin      common.Address
	registry  common.Address

	coinABI     abi.ABI
	registryABI abi.ABI
	submitter   *Submitter
	logger      zerolog.Logger
}

// NewEVMGateway dials the node and prepares the signing authority.
func NewEVMGateway(cfg EVMConfig, logger zerolog.Logger) (*EVMGateway, error) {
	endpoint := strings.TrimSpace(cfg.NodeURL)
	if endpoint == "" {
		return nil, fmt.Errorf("chain node url required")
	}
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial chain node: %w", err)
	}
	return NewEVMGatewayWithBackend(cfg, client, logger)
}

// NewEVMGatewayWithBackend wires the gateway onto an existing backend.
func NewEVMGatewayWithBackend(cfg EVMConfig, backend evmBackend, logger zerolog.Logger) (*EVMGateway, error) {
	cfg.applyDefaults()

	key, err := ParsePrivateKey(cfg.AuthorityKey)
	if err != nil {
		return nil, fmt.Errorf("authority key: %w", err)
	}
	if !common.IsHexAddress(cfg.CoinAddress) {
		return nil, fmt.Errorf("invalid coin contract address %q", cfg.CoinAddress)
	}
	if !common.IsHexAddress(cfg.RegistryAddress) {
		return nil, fmt.Errorf("invalid registry contract address %q", cfg.RegistryAddress)
	}
	coinABI, registryABI, err := loadABIs()
	if err != nil {
		return nil, fmt.Errorf("parse contract abis: %w", err)
	}

	gw := &EVMGateway{
		cfg:         cfg,
		client:      backend,
		key:         key,
		authority:   gethcrypto.PubkeyToAddress(key.PublicKey),
		coin:        common.HexToAddress(cfg.CoinAddress),
		registry:    common.HexToAddress(cfg.RegistryAddress),
		coinABI:     coinABI,
		registryABI: registryABI,
		submitter:   NewSubmitter(cfg.QueueCapacity, logger),
		logger:      logger.With().Str("component", "evm_gateway").Logger(),
	}
	gw.submitter.Start()
	return gw, nil
}

// Authority returns the address of the minting authority account.
func (g *EVMGateway) Authority() string {
	return g.authority.Hex()
}

// Close stops the submitter worker.
func (g *EVMGateway) Close() {
	g.submitter.Stop()
}

// MintTokens submits an admin-signed mint of amount base units.
func (g *EVMGateway) MintTokens(ctx context.Context, address string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("mint amount must be positive")
	}
	data, err := g.coinABI.Pack("mint", common.HexToAddress(address), amount)
	if err != nil {
		return "", fmt.Errorf("pack mint: %w", err)
	}
	return g.submit(ctx, g.coin, data)
}

// BurnTokens submits an admin-signed burn of amount base units from the
// address's balance.
func (g *EVMGateway) BurnTokens(ctx context.Context, address string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("burn amount must be positive")
	}
	data, err := g.coinABI.Pack("burnFrom", common.HexToAddress(address), amount)
	if err != nil {
		return "", fmt.Errorf("pack burnFrom: %w", err)
	}
	return g.submit(ctx, g.coin, data)
}

// AddStudent submits an allow-list grant for the address.
func (g *EVMGateway) AddStudent(ctx context.Context, address string) (string, error) {
	data, err := g.coinABI.Pack("addStudent", common.HexToAddress(address))
	if err != nil {
		return "", fmt.Errorf("pack addStudent: %w", err)
	}
	return g.submit(ctx, g.coin, data)
}

// IsStudent reads the allow-list flag for the address.
func (g *EVMGateway) IsStudent(ctx context.Context, address string) (bool, error) {
	var out bool
	if err := g.call(ctx, g.coin, g.coinABI, "isStudent", &out, common.HexToAddress(address)); err != nil {
		return false, err
	}
	return out, nil
}

// BalanceOf reads the authoritative balance in base units.
func (g *EVMGateway) BalanceOf(ctx context.Context, address string) (*big.Int, error) {
	var out *big.Int
	if err := g.call(ctx, g.coin, g.coinABI, "balanceOf", &out, common.HexToAddress(address)); err != nil {
		return nil, err
	}
	if out == nil {
		out = new(big.Int)
	}
	return out, nil
}

// TokenName reads the token's name. Cheap liveness probe for health checks.
func (g *EVMGateway) TokenName(ctx context.Context) (string, error) {
	var out string
	if err := g.call(ctx, g.coin, g.coinABI, "name", &out); err != nil {
		return "", err
	}
	return out, nil
}

// CreateActivity registers the activity on chain. The registry id is obtained
// by simulating the call first, then submitting it for real. Simulation and
// submission run as one serialized submitter task: two concurrent creates
// must never simulate against the same registry state and read the same id.
func (g *EVMGateway) CreateActivity(ctx context.Context, name, description string, rewardAmount *big.Int) (uint64, error) {
	data, err := g.registryABI.Pack("createActivity", name, description, rewardAmount)
	if err != nil {
		return 0, fmt.Errorf("pack createActivity: %w", err)
	}

	var id *big.Int
	_, err = g.submitter.Submit(ctx, func(ctx context.Context) (string, error) {
		if err := g.simulate(ctx, g.registry, g.registryABI, "createActivity", data, &id); err != nil {
			return "", err
		}
		return g.sendWithRetry(ctx, g.registry, data)
	})
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, fmt.Errorf("registry returned no activity id")
	}
	return id.Uint64(), nil
}

// CompleteActivity marks the pair complete on the registry.
func (g *EVMGateway) CompleteActivity(ctx context.Context, address string, activityID uint64) (string, error) {
	data, err := g.registryABI.Pack("completeActivity", common.HexToAddress(address), new(big.Int).SetUint64(activityID))
	if err != nil {
		return "", fmt.Errorf("pack completeActivity: %w", err)
	}
	return g.submit(ctx, g.registry, data)
}

// BatchCompleteActivity completes one activity for many addresses at once.
func (g *EVMGateway) BatchCompleteActivity(ctx context.Context, addresses []string, activityID uint64) (string, error) {
	accounts := make([]common.Address, 0, len(addresses))
	for _, a := range addresses {
		accounts = append(accounts, common.HexToAddress(a))
	}
	data, err := g.registryABI.Pack("batchCompleteActivity", accounts, new(big.Int).SetUint64(activityID))
	if err != nil {
		return "", fmt.Errorf("pack batchCompleteActivity: %w", err)
	}
	return g.submit(ctx, g.registry, data)
}

// HasCompleted reads the completion flag for the pair.
func (g *EVMGateway) HasCompleted(ctx context.Context, address string, activityID uint64) (bool, error) {
	var out bool
	err := g.call(ctx, g.registry, g.registryABI, "hasCompleted", &out,
		common.HexToAddress(address), new(big.Int).SetUint64(activityID))
	if err != nil {
		return false, err
	}
	return out, nil
}

// submit signs and sends calldata from the authority account and waits for
// the receipt. The whole sequence runs inside the serial submitter because
// nonce allocation and send must not interleave across requests.
func (g *EVMGateway) submit(ctx context.Context, to common.Address, data []byte) (string, error) {
	return g.submitter.Submit(ctx, func(ctx context.Context) (string, error) {
		return g.sendWithRetry(ctx, to, data)
	})
}

// sendWithRetry runs inside a submitter task only; it assumes exclusive use
// of the authority account.
func (g *EVMGateway) sendWithRetry(ctx context.Context, to common.Address, data []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < g.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(g.cfg.RetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		txHash, err := g.sendOnce(ctx, to, data)
		if err == nil {
			return txHash, nil
		}
		lastErr = err
		// Reverts are deterministic and a transaction that already left
		// the node cannot be retried without risking a double spend;
		// only pre-send transport failures are worth another attempt.
		if !isTransient(err) || errors.Is(err, errInFlight) {
			return "", err
		}
		g.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("chain submission attempt failed")
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (g *EVMGateway) sendOnce(ctx context.Context, to common.Address, data []byte) (string, error) {
	nonce, err := g.client.PendingNonceAt(ctx, g.authority)
	if err != nil {
		return "", fmt.Errorf("%w: fetch nonce: %v", ErrUnavailable, err)
	}
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: suggest gas price: %v", ErrUnavailable, err)
	}

	tx := gethtypes.NewTransaction(nonce, to, big.NewInt(0), g.cfg.GasLimit, gasPrice, data)
	signer := gethtypes.LatestSignerForChainID(big.NewInt(g.cfg.ChainID))
	signed, err := gethtypes.SignTx(tx, signer, g.key)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("%w: send transaction: %v", ErrUnavailable, err)
	}
	txHash := signed.Hash()
	if err := g.waitMined(ctx, txHash); err != nil {
		if errors.Is(err, ErrReverted) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", errInFlight, err)
	}
	return txHash.Hex(), nil
}

// errInFlight marks a transaction whose fate is unknown: it was accepted by
// the node but no successful receipt was observed in time. Retrying it
// blindly could mint twice; reconciliation detects whether it landed.
// Callers see it as an unavailable-node failure.
var errInFlight = fmt.Errorf("%w: transaction in flight, outcome unknown", ErrUnavailable)

func (g *EVMGateway) waitMined(ctx context.Context, txHash common.Hash) error {
	deadline := time.Now().Add(g.cfg.ReceiptTimeout)
	for {
		receipt, err := g.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if receipt.Status != gethtypes.ReceiptStatusSuccessful {
				return fmt.Errorf("%w: transaction %s", ErrReverted, txHash.Hex())
			}
			return nil
		}
		if err != nil && err != ethereum.NotFound {
			return fmt.Errorf("%w: fetch receipt: %v", ErrUnavailable, err)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: receipt timeout for %s", ErrUnavailable, txHash.Hex())
		}
		select {
		case <-time.After(g.cfg.PollInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// call performs a read-only eth_call and unpacks the single return value.
func (g *EVMGateway) call(ctx context.Context, to common.Address, contractABI abi.ABI, method string, out interface{}, args ...interface{}) error {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	return g.simulate(ctx, to, contractABI, method, data, out)
}

func (g *EVMGateway) simulate(ctx context.Context, to common.Address, contractABI abi.ABI, method string, data []byte, out interface{}) error {
	raw, err := g.client.CallContract(ctx, ethereum.CallMsg{From: g.authority, To: &to, Data: data}, nil)
	if err != nil {
		if isTransient(err) {
			return fmt.Errorf("%w: call %s: %v", ErrUnavailable, method, err)
		}
		return fmt.Errorf("%w: call %s: %v", ErrReverted, method, err)
	}
	results, err := contractABI.Unpack(method, raw)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	if out == nil || len(results) == 0 {
		return nil
	}
	return assignResult(out, results[0])
}

func assignResult(out, value interface{}) error {
	switch dst := out.(type) {
	case *bool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("unexpected result type %T", value)
		}
		*dst = v
	case *string:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("unexpected result type %T", value)
		}
		*dst = v
	case **big.Int:
		v, ok := value.(*big.Int)
		if !ok {
			return fmt.Errorf("unexpected result type %T", value)
		}
		*dst = v
	default:
		return fmt.Errorf("unsupported result target %T", out)
	}
	return nil
}

// isTransient distinguishes transport failures from contract rejections.
// Revert errors from the node carry "execution reverted"; everything else on
// the wire is treated as retryable.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert") {
		return false
	}
	return true
}
