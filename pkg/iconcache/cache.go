// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package iconcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	ristretto "github.com/dgraph-io/ristretto/v2"
	"github.com/go-logr/logr"
	"k8s.io/client-go/util/workqueue"
)

const cacheName = "icon-cache"

// ErrQueueFull is returned by LookupByName when the outgoing resolution
// queue is already at maxQueueDepth, mirroring the original's MaxAppQueue
// backpressure.
var ErrQueueFull = errors.New("iconcache: resolution queue full")

// Cache is the two-tier icon cache: idx remembers which (name, size)
// pairs have already been resolved to a path or a confirmed miss, bytes
// is a bounded LRU of path -> file contents, and queue/pending drive
// single-flight resolution through an external Resolver. Grounded on
// original_source/src/erebus-desktop/iconcache.cxx.
type Cache struct {
	log      logr.Logger
	idx      *index
	bytes    *ristretto.Cache[string, []byte]
	cacheDir string
	resolver Resolver

	mu      sync.Mutex
	pending map[key]time.Time

	queue workqueue.TypedRateLimitingInterface[key]
	stop  chan struct{}
	wg    sync.WaitGroup
}

// New constructs a Cache. indexDir persists the resolved-path index
// across restarts; pass "" for an in-memory-only index (used in tests).
// cacheDir is where the external resolver is expected to have written
// pre-rendered icon files.
func New(log logr.Logger, indexDir, cacheDir string, resolver Resolver) (*Cache, error) {
	idx, err := openIndex(indexDir)
	if err != nil {
		return nil, err
	}

	bytes, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10_000,
		MaxCost:     32 << 20, // 32MiB of decoded icon bytes
		BufferItems: 64,
	})
	if err != nil {
		idx.close()
		return nil, fmt.Errorf("iconcache: creating byte cache: %w", err)
	}

	ratelimiter := workqueue.DefaultTypedControllerRateLimiter[key]()
	queue := workqueue.NewTypedRateLimitingQueueWithConfig(ratelimiter,
		workqueue.TypedRateLimitingQueueConfig[key]{Name: cacheName},
	)

	return &Cache{
		log:      log.WithName("iconcache"),
		idx:      idx,
		bytes:    bytes,
		cacheDir: cacheDir,
		resolver: resolver,
		pending:  make(map[key]time.Time),
		queue:    queue,
		stop:     make(chan struct{}),
	}, nil
}

// LookupByName resolves the icon named name at the given pixel size. A
// StatePending result means resolution has been (or was already)
// enqueued and the caller should retry later; StateFound returns the
// decoded bytes immediately.
func (c *Cache) LookupByName(name string, size uint32) (State, []byte, error) {
	k := key{Name: name, Size: size}

	if info, ok, err := c.idx.get(k); err != nil {
		return StatePending, nil, err
	} else if ok {
		if info.State == StateNotPresent {
			return StateNotPresent, nil, nil
		}
		data, err := c.loadBytes(info.Path)
		if err != nil {
			return StateNotPresent, nil, nil
		}
		return StateFound, data, nil
	}

	if path, ok := statDisk(c.cacheDir, k); ok {
		if err := c.idx.put(k, pathInfo{State: StateFound, Path: path}); err != nil {
			c.log.Error(err, "persisting disk-resolved icon path")
		}
		data, err := c.loadBytes(path)
		if err != nil {
			return StateNotPresent, nil, nil
		}
		return StateFound, data, nil
	}

	return c.enqueue(k)
}

func (c *Cache) enqueue(k key) (State, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since, ok := c.pending[k]; ok && time.Since(since) < pendingExpiry {
		return StatePending, nil, nil
	}
	if c.queue.Len() >= maxQueueDepth {
		return StatePending, nil, ErrQueueFull
	}

	c.pending[k] = time.Now()
	c.queue.AddRateLimited(k)
	return StatePending, nil, nil
}

func (c *Cache) loadBytes(path string) ([]byte, error) {
	if data, ok := c.bytes.Get(path); ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c.bytes.Set(path, data, int64(len(data)))
	c.bytes.Wait()
	return data, nil
}

// Start launches the request and response workers that drive resolution
// through the external Resolver.
func (c *Cache) Start(ctx context.Context) {
	c.wg.Add(2)
	go c.requestWorker(ctx)
	go c.responseWorker(ctx)
}

// Stop drains the resolution queue, stops the workers, and releases the
// index and byte cache.
func (c *Cache) Stop() error {
	close(c.stop)
	c.queue.ShutDownWithDrain()
	c.wg.Wait()
	c.bytes.Close()
	return c.idx.close()
}

func (c *Cache) requestWorker(ctx context.Context) {
	defer c.wg.Done()
	for {
		k, shutdown := c.queue.Get()
		if shutdown {
			return
		}

		err := c.resolver.RequestIcon(Request{Name: k.Name, Size: k.Size})
		if err != nil {
			c.log.Error(err, "requesting icon resolution", "name", k.Name, "size", k.Size)
			if !c.queue.ShuttingDown() {
				c.queue.AddRateLimited(k)
			}
		} else {
			c.queue.Forget(k)
		}
		c.queue.Done(k)
	}
}

func (c *Cache) responseWorker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		default:
		}

		resp, ok, err := c.resolver.PullIcon()
		if err != nil {
			c.log.Error(err, "pulling resolved icon")
			continue
		}
		if !ok {
			continue // timed out waiting for a response; recheck stop signal
		}

		k := key{Name: resp.Request.Name, Size: resp.Request.Size}
		info := pathInfo{State: StateNotPresent}
		if resp.Found {
			info = pathInfo{State: StateFound, Path: resp.Path}
		}
		if err := c.idx.put(k, info); err != nil {
			c.log.Error(err, "persisting resolved icon", "name", k.Name, "size", k.Size)
		}

		c.mu.Lock()
		delete(c.pending, k)
		c.mu.Unlock()
	}
}
