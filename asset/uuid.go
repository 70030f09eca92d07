// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

// Package asset implements the engine's asset import pipeline and resource
// registry: content-addressed UUIDs, a reference-counted Resource state
// machine, hot reload, and the on-disk asset cache.
package asset

import "hash/fnv"

// UUID identifies an asset independent of its file path. Two imports of
// byte-identical content always produce the same UUID, within one run and
// across runs of the tooling, so moved or renamed files keep their
// identity and no central registry is needed to assign ids.
type UUID uint64

// FromContent derives a UUID from an asset's raw file bytes. FNV-1a is
// used rather than a seeded hash: the ids land in cooked cache files and
// authored material/skybox files, so they must not vary per process.
func FromContent(data []byte) UUID {
	h := fnv.New64a()
	h.Write(data)
	return UUID(h.Sum64())
}

// Child derives an embedded child asset's UUID from its parent's UUID and
// its local name (e.g. a mesh embedded in an imported model), keeping
// child identity stable across re-imports of the same parent content.
func Child(parent UUID, localName string) UUID {
	h := fnv.New64a()
	var buf [8]byte
	putUint64(buf[:], uint64(parent))
	h.Write(buf[:])
	h.Write([]byte(localName))
	return UUID(h.Sum64())
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
