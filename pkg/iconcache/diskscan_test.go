// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// White-box by necessity: cachePath's hashed naming scheme is an
// internal implementation detail, not part of the package's API.
package iconcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatDiskFindsPreRenderedFile(t *testing.T) {
	dir := t.TempDir()
	k := key{Name: "firefox", Size: 32}

	_, ok := statDisk(dir, k)
	assert.False(t, ok, "no file written yet")

	p := cachePath(dir, k)
	require.NoError(t, os.WriteFile(p, []byte("png-bytes"), 0o644))

	found, ok := statDisk(dir, k)
	require.True(t, ok)
	assert.Equal(t, p, found)
}

func TestStatDiskWithEmptyDirIsDisabled(t *testing.T) {
	_, ok := statDisk("", key{Name: "x", Size: 16})
	assert.False(t, ok)
}

func TestCachePathIsStableAndSizeSpecific(t *testing.T) {
	dir := t.TempDir()
	a := cachePath(dir, key{Name: "app", Size: 16})
	b := cachePath(dir, key{Name: "app", Size: 32})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, cachePath(dir, key{Name: "app", Size: 16}))
	assert.True(t, filepath.IsAbs(a) || filepath.Dir(a) == dir)
}
