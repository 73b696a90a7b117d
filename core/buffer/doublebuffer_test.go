package buffer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/momentics/hioload-dbuf/api"
)

func mustNew(t *testing.T, size int) *DoubleBuffer {
	t.Helper()
	b, err := New(size)
	if err != nil {
		t.Fatalf("New(%d): %v", size, err)
	}
	return b
}

// TestDoubleBuffer_Scenario walks the basic put/get/clear sequence.
func TestDoubleBuffer_Scenario(t *testing.T) {
	b := mustNew(t, 4)

	if diff := cmp.Diff([]byte{0, 0, 0, 0}, b.Get()); diff != "" {
		t.Fatalf("initial Get mismatch (-want +got):\n%s", diff)
	}

	got, err := b.Put([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4}, got); diff != "" {
		t.Errorf("Put result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4}, b.Get()); diff != "" {
		t.Errorf("Get after Put mismatch (-want +got):\n%s", diff)
	}

	got, err = b.Put([]byte{9, 9, 9, 9})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if diff := cmp.Diff([]byte{9, 9, 9, 9}, got); diff != "" {
		t.Errorf("Put result mismatch (-want +got):\n%s", diff)
	}

	b.Clear()
	if diff := cmp.Diff([]byte{0, 0, 0, 0}, b.Get()); diff != "" {
		t.Errorf("Get after Clear mismatch (-want +got):\n%s", diff)
	}
}

func TestNew_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1, -4096} {
		b, err := New(size)
		if b != nil {
			t.Errorf("New(%d) returned a buffer", size)
		}
		if !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("New(%d) error = %v, want ErrInvalidArgument", size, err)
		}
		if api.CodeOf(err) != api.ErrCodeInvalidArgument {
			t.Errorf("New(%d) code = %v", size, api.CodeOf(err))
		}
		if _, err := NewMapped(size); !errors.Is(err, api.ErrInvalidArgument) {
			t.Errorf("NewMapped(%d) error = %v, want ErrInvalidArgument", size, err)
		}
	}
}

// TestPut_LengthMismatch checks a rejected Put leaves the buffer untouched.
func TestPut_LengthMismatch(t *testing.T) {
	b := mustNew(t, 3)
	if _, err := b.Put([]byte{7, 7, 7}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	gen, cur := b.Generation(), b.Current()

	for _, src := range [][]byte{{1, 2}, {1, 2, 3, 4}, nil} {
		got, err := b.Put(src)
		if got != nil {
			t.Errorf("Put(%v) returned %v, want nil", src, got)
		}
		if !errors.Is(err, api.ErrLengthMismatch) {
			t.Fatalf("Put(%v) error = %v, want ErrLengthMismatch", src, err)
		}
		var apiErr *api.Error
		if !errors.As(err, &apiErr) || apiErr.Context["size"] != 3 || apiErr.Context["len"] != len(src) {
			t.Errorf("Put(%v) error context = %+v", src, apiErr)
		}
	}

	if diff := cmp.Diff([]byte{7, 7, 7}, b.Get()); diff != "" {
		t.Errorf("Get after rejected Put mismatch (-want +got):\n%s", diff)
	}
	if b.Generation() != gen || b.Current() != cur {
		t.Errorf("rejected Put changed state: gen %d->%d, current %d->%d",
			gen, b.Generation(), cur, b.Current())
	}
	// The inactive slot must not have been partially written either.
	if diff := cmp.Diff([]byte{0, 0, 0}, b.slots[cur^1]); diff != "" {
		t.Errorf("inactive slot touched (-want +got):\n%s", diff)
	}
	if st := b.Stats(); st.Rejected != 3 || st.Puts != 1 {
		t.Errorf("Stats = %+v, want Rejected=3 Puts=1", st)
	}
}

// TestPut_Alternation checks consecutive publications use alternate slots.
func TestPut_Alternation(t *testing.T) {
	b := mustNew(t, 8)
	a := []byte("AAAAAAAA")
	c := []byte("BBBBBBBB")

	slotA, _ := b.Put(a)
	idxA := b.Current()
	slotB, _ := b.Put(c)
	idxB := b.Current()

	if idxA == idxB {
		t.Fatalf("consecutive puts landed in the same slot %d", idxA)
	}
	if &slotA[0] == &slotB[0] {
		t.Fatal("consecutive puts returned the same storage")
	}
	// The previous publication stays intact until the writer laps it.
	if diff := cmp.Diff(a, slotA); diff != "" {
		t.Errorf("previous slot modified (-want +got):\n%s", diff)
	}

	slotC, _ := b.Put(a)
	if &slotC[0] != &slotA[0] {
		t.Error("third put did not reuse the first slot")
	}
}

func TestClear_Idempotent(t *testing.T) {
	b := mustNew(t, 5)
	if _, err := b.Put([]byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Put([]byte{6, 7, 8, 9, 10}); err != nil {
		t.Fatal(err)
	}
	zero := make([]byte, 5)
	for i := 0; i < 2; i++ {
		b.Clear()
		if diff := cmp.Diff(zero, b.Get()); diff != "" {
			t.Errorf("Clear #%d: Get mismatch (-want +got):\n%s", i+1, diff)
		}
	}
	if st := b.Stats(); st.Clears != 2 || st.Generation != 4 {
		t.Errorf("Stats = %+v, want Clears=2 Generation=4", st)
	}
}

func TestPut_RoundTrip(t *testing.T) {
	b := mustNew(t, 16)
	for i := 0; i < 10; i++ {
		src := make([]byte, 16)
		for j := range src {
			src[j] = byte(i*16 + j)
		}
		ret, err := b.Put(src)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if diff := cmp.Diff(src, ret); diff != "" {
			t.Fatalf("round %d: Put result mismatch (-want +got):\n%s", i, diff)
		}
		if diff := cmp.Diff(src, b.Get()); diff != "" {
			t.Fatalf("round %d: Get mismatch (-want +got):\n%s", i, diff)
		}
		// The buffer copies; mutating the source must not leak through.
		src[0]++
		if b.Get()[0] == src[0] {
			t.Fatalf("round %d: Put aliased the caller's slice", i)
		}
	}
}

// TestGet_AppendDoesNotSpill ensures returned slots are capacity-limited.
func TestGet_AppendDoesNotSpill(t *testing.T) {
	b := mustNew(t, 4)
	cur := b.Get()
	if cap(cur) != 4 {
		t.Fatalf("cap(Get()) = %d, want 4", cap(cur))
	}
	_ = append(cur, 0xFF)
	if diff := cmp.Diff([]byte{0, 0, 0, 0}, b.slots[1]); diff != "" {
		t.Errorf("append spilled into sibling slot (-want +got):\n%s", diff)
	}
}

func TestSnapshot(t *testing.T) {
	b := mustNew(t, 4)
	if _, err := b.Put([]byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}

	snap := b.Snapshot(nil)
	if diff := cmp.Diff([]byte{1, 2, 3, 4}, snap); diff != "" {
		t.Fatalf("Snapshot mismatch (-want +got):\n%s", diff)
	}
	if _, err := b.Put([]byte{5, 6, 7, 8}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Put([]byte{9, 9, 9, 9}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]byte{1, 2, 3, 4}, snap); diff != "" {
		t.Errorf("Snapshot changed after writer lapped it (-want +got):\n%s", diff)
	}

	dst := make([]byte, 2, 16)
	out := b.Snapshot(dst)
	if &out[0] != &dst[0] {
		t.Error("Snapshot did not reuse a large enough dst")
	}
	if diff := cmp.Diff([]byte{9, 9, 9, 9}, out); diff != "" {
		t.Errorf("Snapshot into dst mismatch (-want +got):\n%s", diff)
	}
}

func TestDumpState(t *testing.T) {
	b := mustNew(t, 2)
	if _, err := b.Put([]byte{1, 1}); err != nil {
		t.Fatal(err)
	}
	b.Clear()
	_, _ = b.Put([]byte{1})

	want := map[string]any{
		"size":         2,
		"puts":         uint64(1),
		"clears":       uint64(1),
		"rejected":     uint64(1),
		"generation":   uint64(2),
		"current":      0,
		"mapped":       false,
		"writer_owned": false,
		"closed":       false,
	}
	if diff := cmp.Diff(want, b.DumpState()); diff != "" {
		t.Errorf("DumpState mismatch (-want +got):\n%s", diff)
	}
}

func TestClose(t *testing.T) {
	b := mustNew(t, 4)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := b.Put([]byte{1, 2, 3, 4}); !errors.Is(err, api.ErrClosed) {
		t.Errorf("Put after Close error = %v, want ErrClosed", err)
	}
	gen := b.Generation()
	b.Clear()
	if b.Generation() != gen {
		t.Error("Clear after Close published")
	}
	if got := b.Get(); len(got) != 0 {
		t.Errorf("Get after Close = %v, want empty", got)
	}
	if got := b.Snapshot(nil); len(got) != 0 {
		t.Errorf("Snapshot after Close = %v, want empty", got)
	}
	if _, err := b.AcquireWriter(); !errors.Is(err, api.ErrClosed) {
		t.Errorf("AcquireWriter after Close error = %v, want ErrClosed", err)
	}
}

func TestNewMapped(t *testing.T) {
	for _, size := range []int{1, 4096, hugePageSize/2 + 1} {
		b, err := NewMapped(size)
		if err != nil {
			t.Fatalf("NewMapped(%d): %v", size, err)
		}
		zero := make([]byte, size)
		if diff := cmp.Diff(zero, b.Get()); diff != "" {
			t.Fatalf("NewMapped(%d) not zero-filled", size)
		}
		src := make([]byte, size)
		src[0], src[size-1] = 0xAB, 0xCD
		if _, err := b.Put(src); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if diff := cmp.Diff(src, b.Get()); diff != "" {
			t.Fatalf("NewMapped(%d) Get mismatch", size)
		}
		if len(b.Get()) != size || cap(b.Get()) != size {
			t.Fatalf("NewMapped(%d) slot len/cap = %d/%d", size, len(b.Get()), cap(b.Get()))
		}
		if err := b.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		// Reads after the mapping is gone must not touch it.
		if got := b.Get(); len(got) != 0 {
			t.Errorf("Get after Close returned %d bytes", len(got))
		}
		if got := b.Snapshot(nil); len(got) != 0 {
			t.Errorf("Snapshot(nil) after Close returned %d bytes", len(got))
		}
		dst := make([]byte, size)
		if got := b.Snapshot(dst); len(got) != 0 || cap(got) != size {
			t.Errorf("Snapshot(dst) after Close = len %d cap %d, want len 0 cap %d", len(got), cap(got), size)
		}
	}
}
