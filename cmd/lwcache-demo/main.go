package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulldump/goconfig"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	lwcache "github.com/kaveri-io/lwcache"
	"github.com/kaveri-io/lwcache/eviction"
	"github.com/kaveri-io/lwcache/expiry"
	"github.com/kaveri-io/lwcache/loaderwriter"
	"github.com/kaveri-io/lwcache/stats"
	"github.com/kaveri-io/lwcache/store"
	"github.com/kaveri-io/lwcache/store/heap"
)

type Config struct {
	Shards      int    `usage:"store shard count"`
	Capacity    int    `usage:"maximum cached entries (0 = unbounded)"`
	TTLSeconds  int    `usage:"time-to-live for cached entries, in seconds (0 = no expiry)"`
	MetricsAddr string `usage:"address for the Prometheus /metrics endpoint (empty = disabled)"`
	Seed        int    `usage:"number of orders to seed in the backing source"`
}

// ================= BACKING SOURCE =================

// orderSource is the system of record: an in-memory order table standing in
// for a database.
type orderSource struct {
	mu   sync.RWMutex
	data map[string]string
}

func newOrderSource() *orderSource {
	return &orderSource{data: make(map[string]string)}
}

func (s *orderSource) Load(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fmt.Println("SOURCE → load:", key)
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *orderSource) LoadAll(ctx context.Context, keys []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fmt.Println("SOURCE → loadAll:", len(keys), "keys")
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *orderSource) Write(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Println("SOURCE → write:", key)
	s.data[key] = value
	return nil
}

func (s *orderSource) WriteAll(ctx context.Context, entries map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Println("SOURCE → writeAll:", len(entries), "entries")
	for k, v := range entries {
		s.data[k] = v
	}
	return nil
}

func (s *orderSource) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Println("SOURCE → delete:", key)
	delete(s.data, key)
	return nil
}

func (s *orderSource) DeleteAll(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Println("SOURCE → deleteAll:", len(keys), "keys")
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// ================= FAULT INJECTION =================

// flakyStore delegates to a real store but fails the next operation when
// armed, to demonstrate recovery through the backing source.
type flakyStore struct {
	store.Store[string, string]
	fail atomic.Bool
}

func (f *flakyStore) arm() { f.fail.Store(true) }

func (f *flakyStore) failNext() error {
	if f.fail.CompareAndSwap(true, false) {
		return store.NewAccessError(errors.New("injected shard failure"))
	}
	return nil
}

func (f *flakyStore) Get(key string) (*store.ValueHolder[string], error) {
	if err := f.failNext(); err != nil {
		return nil, err
	}
	return f.Store.Get(key)
}

func (f *flakyStore) ComputeIfAbsent(key string, fn store.MapFunc[string, string]) (*store.ValueHolder[string], error) {
	if err := f.failNext(); err != nil {
		return nil, err
	}
	return f.Store.ComputeIfAbsent(key, fn)
}

func (f *flakyStore) Compute(key string, fn store.RemapFunc[string, string]) (*store.ValueHolder[string], error) {
	if err := f.failNext(); err != nil {
		return nil, err
	}
	return f.Store.Compute(key, fn)
}

// ================= MAIN =================

func main() {
	c := Config{
		Shards:      4,
		Capacity:    20,
		TTLSeconds:  2,
		MetricsAddr: "",
		Seed:        3,
	}
	goconfig.Read(&c)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("SHARDS          :", c.Shards)
	fmt.Println("CAPACITY        :", c.Capacity, "keys")
	fmt.Println("TTL             :", c.TTLSeconds, "s")
	fmt.Println("EVICTION POLICY : LRU")

	source := newOrderSource()
	seeded := make([]string, 0, c.Seed)
	for i := 0; i < c.Seed; i++ {
		id := "order-" + uuid.NewString()
		source.data[id] = fmt.Sprintf("order %d from warehouse", i)
		seeded = append(seeded, id)
	}

	var ttl expiry.Policy[string, string] = expiry.NoExpiry[string, string]()
	if c.TTLSeconds > 0 {
		ttl = expiry.TimeToLive[string, string](time.Duration(c.TTLSeconds) * time.Second)
	}
	backing := heap.New(
		heap.WithShards[string, string](c.Shards),
		heap.WithCapacity[string, string](c.Capacity),
		heap.WithEviction[string, string](eviction.LRU),
		heap.WithExpiry(ttl),
	)
	flaky := &flakyStore{Store: backing}

	counters := stats.NewCounters()
	observer := stats.Observer(counters)
	if c.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		observer = stats.NewMulti(counters, stats.NewPrometheusObserver("lwcache_demo", reg))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(c.MetricsAddr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		fmt.Println("METRICS         :", c.MetricsAddr)
	}

	cache := lwcache.New[string, string](flaky, loaderwriter.Dedupe(source),
		lwcache.WithObserver[string, string](observer),
		lwcache.WithLogger[string, string](logger),
	)
	if err := cache.Init(); err != nil {
		logger.Error("init failed", "error", err)
		os.Exit(1)
	}

	first := seeded[0]

	fmt.Println("\n==================== 1) READ-THROUGH ====================")
	v, _, _ := cache.Get(ctx, first)
	fmt.Println("CACHE  → GET (miss, loaded) =", v)
	v, _, _ = cache.Get(ctx, first)
	fmt.Println("CACHE  → GET (hit)          =", v)

	fmt.Println("\n==================== 2) WRITE-THROUGH ====================")
	cache.Put(ctx, "order-manual", "hand-entered order")
	fmt.Println("CACHE  → PUT order-manual (source written first)")

	fmt.Println("\n==================== 3) PUT-IF-ABSENT ====================")
	prior, present, _ := cache.PutIfAbsent(ctx, seeded[1], "would-be duplicate")
	fmt.Printf("CACHE  → PUTIFABSENT existing order: present=%v value=%q\n", present, prior)

	fmt.Println("\n==================== 4) COMPARE-AND-REPLACE ====================")
	replaced, _ := cache.CompareAndReplace(ctx, "order-manual", "hand-entered order", "amended order")
	fmt.Println("CACHE  → CAS order-manual =", replaced)

	fmt.Println("\n==================== 5) TTL EXPIRATION ====================")
	cache.Put(ctx, "order-short-lived", "expires soon")
	time.Sleep(time.Duration(c.TTLSeconds)*time.Second + 100*time.Millisecond)
	source.Delete(ctx, "order-short-lived")
	_, found, _ := cache.Get(ctx, "order-short-lived")
	fmt.Println("CACHE  → GET after TTL: found =", found)

	fmt.Println("\n==================== 6) REQUEST COLLAPSING ====================")
	target := seeded[2]
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			val, _, _ := cache.Get(ctx, target)
			fmt.Printf("GOROUTINE-%d → GET = %v\n", id, val)
		}(i)
	}
	wg.Wait()

	fmt.Println("\n==================== 7) BULK OPERATIONS ====================")
	batch := make(map[string]string)
	ids := make([]string, 0, 30)
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("bulk-%d", i)
		batch[id] = fmt.Sprintf("bulk order %d", i)
		ids = append(ids, id)
	}
	cache.PutAll(ctx, batch)
	fmt.Println("CACHE  → PUTALL", len(batch), "entries")
	hits, _ := cache.GetAll(ctx, ids[:10])
	fmt.Println("CACHE  → GETALL first 10:", len(hits), "hits")
	cache.RemoveAll(ctx, ids)
	fmt.Println("CACHE  → REMOVEALL", len(ids), "keys")

	fmt.Println("\n==================== 8) STORE FAILURE RECOVERY ====================")
	flaky.arm()
	v, found, err := cache.Get(ctx, first)
	fmt.Printf("CACHE  → GET during store outage: value=%q found=%v err=%v\n", v, found, err)

	fmt.Println("\n==================== METRICS ====================")
	for k, n := range counters.Snapshot() {
		fmt.Printf("%-30s %d\n", k, n)
	}

	fmt.Println("\n==================== SHUTDOWN ====================")
	if err := cache.Close(); err != nil {
		logger.Error("close failed", "error", err)
	}
	fmt.Println("SYSTEM → cache closed cleanly")
}
