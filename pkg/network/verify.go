package network

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"
)

// 预定义的网络 ID（常量）
const (
	MainnetChainID  = 1
	OptimismChainID = 10
	PolygonChainID  = 137
	BaseChainID     = 8453
	ArbitrumChainID = 42161
	SepoliaChainID  = 11155111
	AnvilChainID    = 31337
	HoleskyChainID  = 17000
)

// VerifyTimeout bounds a single chain id lookup.
const VerifyTimeout = 10 * time.Second

// Name 返回 Chain ID 对应的网络名称
func Name(chainID int64) string {
	switch chainID {
	case MainnetChainID:
		return "Ethereum Mainnet"
	case OptimismChainID:
		return "Optimism"
	case PolygonChainID:
		return "Polygon"
	case BaseChainID:
		return "Base"
	case ArbitrumChainID:
		return "Arbitrum One"
	case SepoliaChainID:
		return "Sepolia Testnet"
	case AnvilChainID:
		return "Anvil Local"
	case HoleskyChainID:
		return "Holesky Testnet"
	default:
		return fmt.Sprintf("Unknown Network (Chain ID: %d)", chainID)
	}
}

// ChainIDReader is the part of an RPC client needed to verify a network.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// MismatchError reports an endpoint serving a different chain than expected.
type MismatchError struct {
	Expected int64
	Actual   int64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("network mismatch: expected %s (ID: %d), got %s (ID: %d)",
		Name(e.Expected), e.Expected, Name(e.Actual), e.Actual)
}

// VerifyNetwork 校验 RPC 节点的 Chain ID
// 获取失败返回原始 error；与预期不符返回 *MismatchError
func VerifyNetwork(ctx context.Context, client ChainIDReader, expectedChainID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, VerifyTimeout)
	defer cancel()

	actualChainID, err := client.ChainID(ctx)
	if err != nil {
		// the cause may carry an authenticated URL; callers redact and log it
		return 0, fmt.Errorf("failed to get chain ID: %w", err)
	}

	actual := actualChainID.Int64()
	slog.Debug("network_verification",
		"expected_chain_id", expectedChainID,
		"expected_network", Name(expectedChainID),
		"actual_chain_id", actual,
		"actual_network", Name(actual),
	)

	if actualChainID.Cmp(big.NewInt(expectedChainID)) != 0 {
		slog.Warn("network_mismatch",
			"expected", fmt.Sprintf("%s (ID: %d)", Name(expectedChainID), expectedChainID),
			"actual", fmt.Sprintf("%s (ID: %d)", Name(actual), actual),
		)
		return actual, &MismatchError{Expected: expectedChainID, Actual: actual}
	}

	return actual, nil
}
