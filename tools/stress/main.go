package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"web3-rpcpool-go/internal/config"
	"web3-rpcpool-go/internal/engine"
)

const (
	workers  = 32
	duration = 30 * time.Second
)

func main() {
	fmt.Println("🚀 Initializing provider pool stress tester")

	network := "eip155:1"
	if len(os.Args) > 1 {
		network = os.Args[1]
	}

	cfg := config.Load()
	// Use a quiet logger to avoid I/O bottlenecks during stress test
	logger := engine.InitLogger("error", cfg.LogFormat)
	registry, err := cfg.Registry()
	if err != nil {
		log.Fatal(err)
	}
	manager := engine.NewManager(registry, cfg.Pool, engine.WithLogger(logger))
	defer manager.Shutdown()

	var okCount, errCount atomic.Int64
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed := time.Since(startTime).Seconds()
				fmt.Printf("📊 Metrics: ok=%d errors=%d elapsed=%.1fs rps=%.2f\n",
					okCount.Load(), errCount.Load(), elapsed, float64(okCount.Load()+errCount.Load())/elapsed)
			}
		}
	}()

	fmt.Printf("⚡ Starting load injection on %s with %d workers\n", network, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if _, err := engine.BlockNumber(ctx, manager, network); err != nil {
					if ctx.Err() == nil {
						errCount.Add(1)
					}
					continue
				}
				okCount.Add(1)
			}
		}()
	}
	wg.Wait()

	totalTime := time.Since(startTime)
	fmt.Printf("🏁 Stress Test Completed!\nOK: %d\nErrors: %d\nTotal Time: %v\nAverage RPS: %.2f\n",
		okCount.Load(), errCount.Load(), totalTime, float64(okCount.Load())/totalTime.Seconds())

	for id, h := range manager.GetHealthStatus() {
		fmt.Printf("🌐 %s (%s): healthy %d/%d, fallback selections %d\n",
			id, h.ChainName, h.HealthyCount, len(h.Endpoints), h.FallbackSelections)
		for _, ep := range h.Endpoints {
			fmt.Printf("   %s total=%d failed=%d avg=%.1fms\n",
				engine.MaskURL(ep.URL), ep.Stats.TotalRequests, ep.Stats.FailedRequests, ep.Stats.AverageResponseTimeMs)
		}
	}
}
