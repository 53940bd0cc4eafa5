// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package iconcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// cachePath returns the pre-rendered icon file erebus-desktop's icon
// cache worker would have written for (name, size): the icon cache
// directory keyed by a hash of the name so arbitrary icon-theme names
// don't have to survive as literal filenames.
func cachePath(dir string, k key) string {
	sum := sha256.Sum256([]byte(k.Name))
	return filepath.Join(dir, fmt.Sprintf("%s-%d.png", hex.EncodeToString(sum[:]), k.Size))
}

// statDisk checks whether a pre-rendered file already exists for k
// without waiting on the external resolver, matching erebus-desktop's
// fast path of checking the on-disk cache directory before falling back
// to IPC.
func statDisk(dir string, k key) (string, bool) {
	if dir == "" {
		return "", false
	}
	p := cachePath(dir, k)
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}
