package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/anicoll/sensor-ledger/internal/pkg/config"
	"github.com/anicoll/sensor-ledger/internal/pkg/model"
)

var ErrNoProvider = errors.New("no ledger provider configured")

// EthClient reads the SensorStorage contract over JSON-RPC. The connection is
// dialled lazily so a missing or unreachable node surfaces per cycle as a
// model.ErrLedgerQuery rather than at start-up.
type EthClient struct {
	cfg      *config.LedgerConfig
	abi      abi.ABI
	contract common.Address
	logger   *zap.Logger

	mu     sync.Mutex
	client *ethclient.Client
}

func New(cfg *config.LedgerConfig) (*EthClient, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	parsed, err := loadABI(cfg.AbiPath)
	if err != nil {
		return nil, err
	}
	return &EthClient{
		cfg:      cfg,
		abi:      parsed,
		contract: common.HexToAddress(cfg.ContractAddress),
		logger:   zap.L(),
	}, nil
}

func (c *EthClient) conn(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	if c.cfg.RpcURL == "" {
		return nil, fmt.Errorf("%w: %w", model.ErrLedgerQuery, ErrNoProvider)
	}
	client, err := ethclient.DialContext(ctx, c.cfg.RpcURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", model.ErrLedgerQuery, c.cfg.RpcURL, err)
	}
	c.logger.Debug("connected to ledger", zap.String("rpc_url", c.cfg.RpcURL), zap.String("contract", c.contract.Hex()))
	c.client = client
	return client, nil
}

// drop forgets the current connection so the next call redials.
func (c *EthClient) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

func (c *EthClient) Close() error {
	c.drop()
	return nil
}

func (c *EthClient) call(ctx context.Context, method string, args ...any) ([]any, error) {
	client, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: pack %s: %w", model.ErrLedgerQuery, method, err)
	}
	output, err := client.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: input}, nil)
	if err != nil {
		c.drop()
		return nil, fmt.Errorf("%w: call %s: %w", model.ErrLedgerQuery, method, err)
	}
	values, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack %s: %w", model.ErrLedgerQuery, method, err)
	}
	return values, nil
}

func (c *EthClient) RecordCount(ctx context.Context) (uint64, error) {
	values, err := c.call(ctx, methodRecordCount)
	if err != nil {
		return 0, err
	}
	count, ok := values[0].(*big.Int)
	if !ok || !count.IsUint64() {
		return 0, fmt.Errorf("%w: unexpected record count %v", model.ErrLedgerQuery, values[0])
	}
	return count.Uint64(), nil
}

func (c *EthClient) GetRecord(ctx context.Context, index uint64) (model.RawRecord, error) {
	values, err := c.call(ctx, methodGetRecord, new(big.Int).SetUint64(index))
	if err != nil {
		return model.RawRecord{}, err
	}
	if len(values) != 3 {
		return model.RawRecord{}, fmt.Errorf("%w: getRecord returned %d values", model.ErrLedgerQuery, len(values))
	}
	ts, okTs := values[0].(*big.Int)
	sensorID, okID := values[1].(string)
	payload, okPayload := values[2].(string)
	if !okTs || !okID || !okPayload {
		return model.RawRecord{}, fmt.Errorf("%w: getRecord(%d) returned unexpected types", model.ErrLedgerQuery, index)
	}
	return model.RawRecord{
		Index:     index,
		Timestamp: ts.Int64(),
		SensorID:  sensorID,
		Payload:   payload,
	}, nil
}

func (c *EthClient) LatestBlock(ctx context.Context) (uint64, error) {
	client, err := c.conn(ctx)
	if err != nil {
		return 0, err
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		c.drop()
		return 0, fmt.Errorf("%w: block number: %w", model.ErrLedgerQuery, err)
	}
	return head, nil
}

// QueryEvents returns the DataStored events emitted in [fromBlock, toBlock] in log order.
func (c *EthClient) QueryEvents(ctx context.Context, fromBlock, toBlock uint64) ([]model.LedgerEvent, error) {
	client, err := c.conn(ctx)
	if err != nil {
		return nil, err
	}
	event := c.abi.Events[EventDataStored]
	logs, err := client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{event.ID}},
	})
	if err != nil {
		c.drop()
		return nil, fmt.Errorf("%w: filter logs [%d,%d]: %w", model.ErrLedgerQuery, fromBlock, toBlock, err)
	}

	events := make([]model.LedgerEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := decodeDataStored(c.abi, l)
		if err != nil {
			c.logger.Warn("skipping undecodable DataStored log", zap.String("tx", l.TxHash.Hex()), zap.Uint("log_index", l.Index), zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeDataStored(contractABI abi.ABI, l types.Log) (model.LedgerEvent, error) {
	event := contractABI.Events[EventDataStored]
	if len(l.Topics) == 0 || l.Topics[0] != event.ID {
		return model.LedgerEvent{}, errors.New("log is not a DataStored event")
	}
	fields := map[string]any{}
	if err := contractABI.UnpackIntoMap(fields, EventDataStored, l.Data); err != nil {
		return model.LedgerEvent{}, err
	}
	ts, ok := fields["timestamp"].(*big.Int)
	if !ok {
		return model.LedgerEvent{}, errors.New("DataStored has no timestamp")
	}
	sensorID, ok := fields["sensorId"].(string)
	if !ok {
		return model.LedgerEvent{}, errors.New("DataStored has no sensorId")
	}
	return model.LedgerEvent{
		Timestamp:     ts.Int64(),
		SensorID:      sensorID,
		TransactionID: l.TxHash.Hex(),
		BlockNumber:   l.BlockNumber,
		LogIndex:      l.Index,
	}, nil
}
