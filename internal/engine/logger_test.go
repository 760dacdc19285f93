package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_Formats(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := newLogger(&buf, "debug", "json")
	LogRPCRetry(logger, "eip155:1", "BlockNumber", 1, time.Second, errors.New("boom"))
	assert.Contains(t, buf.String(), `"msg":"rpc_retry"`)
	assert.Contains(t, buf.String(), `"network":"eip155:1"`)

	buf.Reset()
	logger = newLogger(&buf, "warn", "text")
	logger.Info("hidden")
	LogAllEndpointsUnhealthy(logger, "eip155:1", 2)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=rpc_all_endpoints_unhealthy")
}
