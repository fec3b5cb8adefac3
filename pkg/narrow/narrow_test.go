package narrow

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/brackenfield/sampldiff/pkg/hunk"
	"github.com/brackenfield/sampldiff/pkg/sdconfig"
	"github.com/brackenfield/sampldiff/pkg/stream"
)

func repeat(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func testConfig() sdconfig.Chunking {
	cfg := sdconfig.DefaultConfig(1)
	cfg.MaxLen = 1000
	return cfg.Chunking
}

func TestNarrowIdenticalSizes(t *testing.T) {
	// A = [0]*10 ++ [1]*10 ++ [2]*5; B = [0]*10 ++ [3]*10 ++ [2]*5.
	a := append(append(repeat(0, 10), repeat(1, 10)...), repeat(2, 5)...)
	b := append(append(repeat(0, 10), repeat(3, 10)...), repeat(2, 5)...)

	sa := stream.NewMemory(a, 1)
	sb := stream.NewMemory(b, 1)
	rough := []hunk.Hunk{{A: hunk.View{Start: 7, End: 23}, B: hunk.View{Start: 7, End: 23}}}

	got, err := Narrow(context.Background(), rough, sa, sb, 1, testConfig())
	if err != nil {
		t.Fatalf("Narrow() error = %v", err)
	}
	want := []hunk.Hunk{{A: hunk.View{Start: 10, End: 20}, B: hunk.View{Start: 10, End: 20}}}
	assertHunksEqual(t, got, want)
}

func TestNarrowAsymmetricSizes(t *testing.T) {
	// A = [0]*10 ++ [1]*10 ++ [2]*5; B = [0]*10 ++ [3]*20 ++ [2]*5.
	a := append(append(repeat(0, 10), repeat(1, 10)...), repeat(2, 5)...)
	b := append(append(repeat(0, 10), repeat(3, 20)...), repeat(2, 5)...)

	sa := stream.NewMemory(a, 1)
	sb := stream.NewMemory(b, 1)
	rough := []hunk.Hunk{{A: hunk.View{Start: 6, End: 22}, B: hunk.View{Start: 6, End: 32}}}

	got, err := Narrow(context.Background(), rough, sa, sb, 1, testConfig())
	if err != nil {
		t.Fatalf("Narrow() error = %v", err)
	}
	want := []hunk.Hunk{{A: hunk.View{Start: 10, End: 20}, B: hunk.View{Start: 10, End: 30}}}
	assertHunksEqual(t, got, want)
}

func TestNarrowIsAContraction(t *testing.T) {
	a := append(append(repeat(0, 50), repeat(9, 30)...), repeat(0, 50)...)
	b := append(append(repeat(0, 50), repeat(8, 10)...), repeat(0, 50)...)

	sa := stream.NewMemory(a, 1)
	sb := stream.NewMemory(b, 1)
	rough := []hunk.Hunk{{A: hunk.View{Start: 0, End: 130}, B: hunk.View{Start: 0, End: 110}}}

	got, err := Narrow(context.Background(), rough, sa, sb, 1, testConfig())
	if err != nil {
		t.Fatalf("Narrow() error = %v", err)
	}
	for _, h := range got {
		if h.A.Start < rough[0].A.Start || h.A.End > rough[0].A.End {
			t.Fatalf("narrowed A view %+v escapes rough view %+v", h.A, rough[0].A)
		}
		if h.B.Start < rough[0].B.Start || h.B.End > rough[0].B.End {
			t.Fatalf("narrowed B view %+v escapes rough view %+v", h.B, rough[0].B)
		}
	}
}

func TestNarrowIdenticalStreamsYieldsNoHunks(t *testing.T) {
	data := repeat(5, 64)
	sa := stream.NewMemory(data, 1)
	sb := stream.NewMemory(data, 1)
	rough := []hunk.Hunk{{A: hunk.View{Start: 0, End: 64}, B: hunk.View{Start: 0, End: 64}}}

	got, err := Narrow(context.Background(), rough, sa, sb, 1, testConfig())
	if err != nil {
		t.Fatalf("Narrow() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Narrow() of identical streams = %+v, want no hunks", got)
	}
}

// piecewise builds a stream of 4-byte samples as runs of constant values:
// samples [0, untils[0]] hold values[0], samples (untils[0], untils[1]] hold
// values[1], and so on (bounds inclusive).
func piecewise(untils []int, values []uint32) *stream.Memory {
	var data []byte
	prev := 0
	var sample [4]byte
	for i, until := range untils {
		binary.LittleEndian.PutUint32(sample[:], values[i])
		for n := prev; n <= until; n++ {
			data = append(data, sample[:]...)
		}
		prev = until + 1
	}
	return stream.NewMemory(data, 4)
}

func v(start, end uint64) hunk.View {
	return hunk.View{Start: start, End: end}
}

// TestNarrowBoundaryCases drives the narrower through every alignment shape
// a rough hunk can take relative to the differing region: changes strictly
// inside the hunk, changes touching either boundary, pure insertions, and
// hunks wider than the scan cap.
func TestNarrowBoundaryCases(t *testing.T) {
	cases := []struct {
		name    string
		aUntils []int
		aValues []uint32
		bUntils []int
		bValues []uint32
		rough   []hunk.Hunk
		want    []hunk.Hunk
	}{
		{
			name:    "change inside hunk",
			aUntils: []int{9, 19, 24}, aValues: []uint32{0, 1, 2},
			bUntils: []int{9, 19, 24}, bValues: []uint32{0, 3, 2},
			rough: []hunk.Hunk{{A: v(7, 23), B: v(7, 23)}},
			want:  []hunk.Hunk{{A: v(10, 20), B: v(10, 20)}},
		},
		{
			name:    "differing change sizes",
			aUntils: []int{9, 19, 24}, aValues: []uint32{0, 1, 2},
			bUntils: []int{9, 29, 34}, bValues: []uint32{0, 3, 2},
			rough: []hunk.Hunk{{A: v(6, 22), B: v(6, 32)}},
			want:  []hunk.Hunk{{A: v(10, 20), B: v(10, 30)}},
		},
		{
			name:    "insertion in the middle",
			aUntils: []int{9, 19, 24}, aValues: []uint32{0, 1, 0},
			bUntils: []int{14}, bValues: []uint32{0},
			rough: []hunk.Hunk{{A: v(10, 20), B: v(10, 10)}},
			want:  []hunk.Hunk{{A: v(10, 20), B: v(10, 10)}},
		},
		{
			name:    "insertion at end",
			aUntils: []int{14, 19}, aValues: []uint32{0, 1},
			bUntils: []int{14}, bValues: []uint32{0},
			rough: []hunk.Hunk{{A: v(15, 20), B: v(15, 15)}},
			want:  []hunk.Hunk{{A: v(15, 20), B: v(15, 15)}},
		},
		{
			name:    "change spans the rough start",
			aUntils: []int{15, 30}, aValues: []uint32{2, 1},
			bUntils: []int{17, 32}, bValues: []uint32{3, 1},
			rough: []hunk.Hunk{{A: v(0, 20), B: v(0, 22)}},
			want:  []hunk.Hunk{{A: v(0, 16), B: v(0, 18)}},
		},
		{
			name:    "change is the start",
			aUntils: []int{29}, aValues: []uint32{1},
			bUntils: []int{9, 39}, bValues: []uint32{0, 1},
			rough: []hunk.Hunk{{A: v(0, 25), B: v(0, 35)}},
			want:  []hunk.Hunk{{A: v(0, 0), B: v(0, 10)}},
		},
		{
			name:    "change spans the rough end",
			aUntils: []int{15, 30}, aValues: []uint32{0, 1},
			bUntils: []int{15, 37}, bValues: []uint32{0, 2},
			rough: []hunk.Hunk{{A: v(12, 31), B: v(12, 38)}},
			want:  []hunk.Hunk{{A: v(16, 31), B: v(16, 38)}},
		},
		{
			name:    "change is the end",
			aUntils: []int{29}, aValues: []uint32{0},
			bUntils: []int{37}, bValues: []uint32{0},
			rough: []hunk.Hunk{{A: v(12, 30), B: v(12, 38)}},
			want:  []hunk.Hunk{{A: v(30, 30), B: v(30, 38)}},
		},
		{
			name:    "change is the end swapped",
			aUntils: []int{37}, aValues: []uint32{0},
			bUntils: []int{29}, bValues: []uint32{0},
			rough: []hunk.Hunk{{A: v(12, 38), B: v(12, 30)}},
			want:  []hunk.Hunk{{A: v(30, 38), B: v(30, 30)}},
		},
		{
			name:    "multiple hunks",
			aUntils: []int{9, 19, 29, 39, 49}, aValues: []uint32{0, 1, 0, 1, 0},
			bUntils: []int{49}, bValues: []uint32{0},
			rough: []hunk.Hunk{
				{A: v(8, 22), B: v(8, 22)},
				{A: v(26, 45), B: v(26, 45)},
			},
			want: []hunk.Hunk{
				{A: v(10, 20), B: v(10, 20)},
				{A: v(30, 40), B: v(30, 40)},
			},
		},
		{
			name:    "hunk longer than the scan cap",
			aUntils: []int{15000, 65000, 70000}, aValues: []uint32{0, 1, 0},
			bUntils: []int{70000}, bValues: []uint32{0},
			rough: []hunk.Hunk{{A: v(7324, 69237), B: v(7324, 69237)}},
			want:  []hunk.Hunk{{A: v(15001, 65001), B: v(15001, 65001)}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sa := piecewise(tc.aUntils, tc.aValues)
			sb := piecewise(tc.bUntils, tc.bValues)
			cfg := sdconfig.DefaultConfig(4).Chunking
			got, err := Narrow(context.Background(), tc.rough, sa, sb, 4, cfg)
			if err != nil {
				t.Fatalf("Narrow() error = %v", err)
			}
			assertHunksEqual(t, got, tc.want)
		})
	}
}

func assertHunksEqual(t *testing.T, got, want []hunk.Hunk) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d hunks %+v, want %d hunks %+v", len(got), got, len(want), want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("hunk %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
