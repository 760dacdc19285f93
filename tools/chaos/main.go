package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"web3-rpcpool-go/internal/chains"
	"web3-rpcpool-go/internal/engine"
)

// flaky node failure rates; the last one never fails
var failureRates = []float64{0.9, 0.5, 0.0}

type flakyNode struct {
	failureRate float64
	height      atomic.Uint64
}

func (n *flakyNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if rand.Float64() < n.failureRate {
		http.Error(w, "chaos", http.StatusBadGateway)
		return
	}
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result := "0x7a69" // 31337
	if req.Method == "eth_blockNumber" {
		result = fmt.Sprintf("0x%x", n.height.Add(1))
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

func startNode(rate float64) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal("❌ Cannot listen:", err)
	}
	go func() { _ = http.Serve(ln, &flakyNode{failureRate: rate}) }()
	return "http://" + ln.Addr().String()
}

func main() {
	logger := engine.InitLogger("warn", "text")

	urls := make([]string, len(failureRates))
	for i, rate := range failureRates {
		urls[i] = startNode(rate)
		fmt.Printf("🧪 node %d at %s, failure rate %.0f%%\n", i, urls[i], rate*100)
	}

	network := chains.NetworkID(31337)
	registry, err := chains.NewRegistry(map[string]chains.ChainConfig{
		network: {ChainID: 31337, Name: "Chaos Local", RPCURLs: urls},
	})
	if err != nil {
		log.Fatal(err)
	}

	cfg := engine.DefaultPoolConfig()
	cfg.HealthCheckInterval = 2 * time.Second
	cfg.Retry.BaseDelay = 50 * time.Millisecond
	manager := engine.NewManager(registry, cfg, engine.WithLogger(logger))
	defer manager.Shutdown()

	// 🚀 高频注入：每 100ms 触发一次
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	report := time.NewTicker(2 * time.Second)
	defer report.Stop()
	deadline := time.After(20 * time.Second)

	var ok, failed int
	fmt.Println("🔥 Chaos run active for 20s...")
	for {
		select {
		case <-ticker.C:
			if _, err := engine.BlockNumber(context.Background(), manager, network); err != nil {
				failed++
			} else {
				ok++
			}
		case <-report.C:
			stats, _ := manager.GetProviderStats(network)
			fmt.Printf("📊 ok=%d failed=%d\n", ok, failed)
			for i, u := range urls {
				s := stats[u]
				fmt.Printf("   node %d healthy=%v total=%d failed=%d avg=%.1fms\n",
					i, s.IsHealthy, s.TotalRequests, s.FailedRequests, s.AverageResponseTimeMs)
			}
		case <-deadline:
			fmt.Printf("🏁 done: ok=%d failed=%d\n", ok, failed)
			return
		}
	}
}
