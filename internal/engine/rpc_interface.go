package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// RPCClient 定义 ProviderHandle 持有的底层客户端接口，用于测试和生产代码
type RPCClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// ClientFactory dials the underlying client for one endpoint URL.
type ClientFactory func(ctx context.Context, endpointURL string) (RPCClient, error)

// 确保 ethclient.Client 实现了 RPCClient 接口
var _ RPCClient = (*ethclient.Client)(nil)
