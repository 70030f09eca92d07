// Copyright © 2024 Havenforge Engine Contributors
// Use is governed by a BSD-style license found in the LICENSE file.

package gfx

// fakeDevice is a recording Device for tests: it never touches a real GPU,
// just appends every call it receives so tests can assert on ordering.
type fakeDevice struct {
	calls []string
}

func (f *fakeDevice) UploadTexture(w, h int, pixels []byte) (uint32, error) {
	f.calls = append(f.calls, "upload-texture")
	return uint32(len(f.calls)), nil
}
func (f *fakeDevice) UploadMesh(vertices []byte, indices []uint16) (uint32, error) {
	f.calls = append(f.calls, "upload-mesh")
	return uint32(len(f.calls)), nil
}
func (f *fakeDevice) CompileShader(vsh, fsh string) (uint32, error) {
	f.calls = append(f.calls, "compile-shader")
	return uint32(len(f.calls)), nil
}
func (f *fakeDevice) DestroyTexture(slot uint32) { f.calls = append(f.calls, "destroy-texture") }
func (f *fakeDevice) DestroyMesh(slot uint32)    { f.calls = append(f.calls, "destroy-mesh") }
func (f *fakeDevice) DestroyShader(program uint32) {
	f.calls = append(f.calls, "destroy-shader")
}
func (f *fakeDevice) BeginPass(name string, clear bool) {
	f.calls = append(f.calls, "begin:"+name)
}
func (f *fakeDevice) EndPass()             { f.calls = append(f.calls, "end") }
func (f *fakeDevice) Barrier()             { f.calls = append(f.calls, "barrier") }
func (f *fakeDevice) Draw(entry DrawEntry) { f.calls = append(f.calls, "draw") }
func (f *fakeDevice) AcquireSwapImage() (bool, error) {
	f.calls = append(f.calls, "acquire")
	return false, nil
}
func (f *fakeDevice) Submit() error { f.calls = append(f.calls, "submit"); return nil }
func (f *fakeDevice) Present() error {
	f.calls = append(f.calls, "present")
	return nil
}

// fakeFence is always immediately "signaled".
type fakeFence struct{ waits, resets int }

func (f *fakeFence) Wait()  { f.waits++ }
func (f *fakeFence) Reset() { f.resets++ }
