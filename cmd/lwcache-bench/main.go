package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fulldump/goconfig"

	lwcache "github.com/kaveri-io/lwcache"
	"github.com/kaveri-io/lwcache/eviction"
	"github.com/kaveri-io/lwcache/expiry"
	"github.com/kaveri-io/lwcache/store/heap"
)

type Config struct {
	Shards     int `usage:"store shard count"`
	Capacity   int `usage:"maximum cached entries"`
	Preload    int `usage:"keys written before the read phase"`
	Goroutines int `usage:"concurrent readers"`
	OpsPerG    int `usage:"operations per reader"`
}

// ================= BACKING SOURCE =================

type mapSource struct {
	mu   sync.RWMutex
	data map[string]string
}

func newMapSource() *mapSource {
	return &mapSource{data: make(map[string]string)}
}

func (s *mapSource) Load(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *mapSource) LoadAll(ctx context.Context, keys []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *mapSource) Write(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *mapSource) WriteAll(ctx context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range entries {
		s.data[k] = v
	}
	return nil
}

func (s *mapSource) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *mapSource) DeleteAll(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// ================= BENCHMARK =================

func main() {
	c := Config{
		Shards:     8,
		Capacity:   200000,
		Preload:    100000,
		Goroutines: 200,
		OpsPerG:    5000,
	}
	goconfig.Read(&c)

	ctx := context.Background()

	fmt.Println("\n================ CACHE LOAD BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", c.Shards)
	fmt.Println("Capacity     :", c.Capacity)
	fmt.Println("Preload Keys :", c.Preload)
	fmt.Println("Goroutines   :", c.Goroutines)
	fmt.Println("Ops/Goroutine:", c.OpsPerG)
	fmt.Println("---------------------------------")

	source := newMapSource()
	backing := heap.New(
		heap.WithShards[string, string](c.Shards),
		heap.WithCapacity[string, string](c.Capacity),
		heap.WithEviction[string, string](eviction.LRU),
		heap.WithExpiry(expiry.TimeToLive[string, string](60*time.Second)),
	)
	cache := lwcache.New[string, string](backing, source)
	if err := cache.Init(); err != nil {
		fmt.Println("init failed:", err)
		return
	}

	fmt.Println("Preloading cache...")
	for i := 0; i < c.Preload; i++ {
		cache.Put(ctx, fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}
	fmt.Println("Preload complete.")

	fmt.Println("Warming up cache...")
	for i := 0; i < 10000; i++ {
		cache.Get(ctx, fmt.Sprintf("key-%d", i%c.Preload))
	}
	fmt.Println("Warmup complete.")

	fmt.Println("Running concurrency benchmark...")
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(c.Goroutines)
	for i := 0; i < c.Goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < c.OpsPerG; j++ {
				cache.Get(ctx, fmt.Sprintf("key-%d", j%c.Preload))
			}
		}()
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := c.Goroutines * c.OpsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Println("=========================================")

	cache.Close()
}
