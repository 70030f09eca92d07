// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package scene

import (
	"bytes"
	"strings"
	"testing"

	"github.com/havenforge/engine/math/lin"
)

func TestSceneFileRoundTrip(t *testing.T) {
	s := New()
	a := s.AddChildLast(Root)
	s.SetPosition(a, 1, 2, 3)
	s.SetEuler(a, 0, 90, 0)
	s.SetMesh(a, AssetRef(0xfeed))
	s.SetMaterial(a, AssetRef(0xbeef))

	b := s.AddChildLast(a)
	s.SetScale(b, 2, 2, 2)
	s.SetLight(b, Light{Color: lin.V3{X: 1, Y: 0.5, Z: 0.25}, Intensity: 3, Range: 10})

	c := s.AddChildLast(Root)
	s.SetCamera(c, Camera{FovDegrees: 60, Near: 0.1, Far: 100})

	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	// same shape: root has two children, the first child has one child.
	var rootKids []int
	got.Children(Root, func(k int) { rootKids = append(rootKids, k) })
	if len(rootKids) != 2 {
		t.Fatalf("root has %d children, want 2", len(rootKids))
	}
	ga := rootKids[0]
	if got.Mesh(ga) != AssetRef(0xfeed) || got.Material(ga) != AssetRef(0xbeef) {
		t.Fatalf("first child refs = %v/%v, want feed/beef", got.Mesh(ga), got.Material(ga))
	}
	if p := got.Local(ga).Position; p != (lin.V3{X: 1, Y: 2, Z: 3}) {
		t.Fatalf("first child position = %v", p)
	}

	var aKids []int
	got.Children(ga, func(k int) { aKids = append(aKids, k) })
	if len(aKids) != 1 {
		t.Fatalf("first child has %d children, want 1", len(aKids))
	}
	l, ok := got.Light(aKids[0])
	if !ok || l.Intensity != 3 || l.Range != 10 {
		t.Fatalf("grandchild light = %+v, %v", l, ok)
	}

	cam, ok := got.Camera(rootKids[1])
	if !ok || cam.FovDegrees != 60 {
		t.Fatalf("second child camera = %+v, %v", cam, ok)
	}

	// a second encode of the decoded scene reproduces the bytes.
	var buf2 bytes.Buffer
	if err := got.Encode(&buf2); err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if buf.String() != buf2.String() {
		t.Fatalf("encode → decode → encode is not byte-stable:\n%q\nvs\n%q", buf.String(), buf2.String())
	}
}

func TestSceneDecodeRejectsUnknownVersion(t *testing.T) {
	if _, err := Decode(strings.NewReader("version 7\n")); err == nil {
		t.Fatal("expected an error for an unsupported version")
	}
}

func TestSceneDecodeRequiresVersionHeader(t *testing.T) {
	if _, err := Decode(strings.NewReader("node 1 0\n")); err == nil {
		t.Fatal("expected an error for a missing version header")
	}
}
