// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package iconcache

import (
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// pathInfo is the persisted, terminal resolution of one key: either a
// concrete on-disk path (StateFound) or a confirmed miss
// (StateNotPresent). StatePending is never written here; it is tracked
// purely in memory by Cache.pending since it does not need to survive a
// restart.
type pathInfo struct {
	State State  `json:"state"`
	Path  string `json:"path,omitempty"`
}

// index is the on-disk tier that remembers which (name, size) pairs have
// already been resolved, so a restart doesn't re-ask the external
// resolver for icons it has already told us about. Grounded on
// pkg/resource/store/store.go's badger.Update/txn.Get idiom.
type index struct {
	db *badger.DB
}

func openIndex(dir string) (*index, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("iconcache: opening index: %w", err)
	}
	return &index{db: db}, nil
}

func (x *index) close() error {
	return x.db.Close()
}

func (x *index) get(k key) (pathInfo, bool, error) {
	var info pathInfo
	var found bool
	err := x.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(k))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	if err != nil {
		return pathInfo{}, false, fmt.Errorf("iconcache: reading index: %w", err)
	}
	return info, found, nil
}

func (x *index) put(k key, info pathInfo) error {
	val, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("iconcache: encoding index entry: %w", err)
	}
	err = x.db.Update(func(txn *badger.Txn) error {
		return txn.Set(indexKey(k), val)
	})
	if err != nil {
		return fmt.Errorf("iconcache: writing index: %w", err)
	}
	return nil
}

func indexKey(k key) []byte {
	return fmt.Appendf(nil, "%s:%d", k.Name, k.Size)
}
