package util

import "testing"

func TestBatch(t *testing.T) {
	pages := Batch([]int{1, 2, 3, 4, 5}, 2)
	if len(pages) != 3 || len(pages[2]) != 1 || pages[2][0] != 5 {
		t.Fatalf("unexpected pages %v", pages)
	}
	pages[0] = append(pages[0], 99)
	if pages[1][0] != 3 {
		t.Fatalf("append on a page must not leak into the next one")
	}
	if got := Batch([]int{1, 2}, 0); len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("non-positive size should keep one page, got %v", got)
	}
	if Batch[int](nil, 3) != nil {
		t.Fatalf("empty input should give nil")
	}
}

func TestJoinSplitInts(t *testing.T) {
	if got := JoinInts([]int{4, 8, 15}, "|"); got != "4|8|15" {
		t.Fatalf("unexpected join %q", got)
	}
	ids, err := SplitInts("4||8| 15 ", "|")
	if err != nil || len(ids) != 3 || ids[2] != 15 {
		t.Fatalf("unexpected split %v err=%v", ids, err)
	}
	if _, err := SplitInts("4|x", "|"); err == nil {
		t.Fatalf("expected error for non numeric id")
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint(map[string]any{"cpu": 2, "memory": 1024})
	b := Fingerprint(map[string]any{"memory": 1024, "cpu": 2})
	if a != b {
		t.Fatalf("fingerprint must not depend on map order")
	}
	if Fingerprint(map[string]any{"ab": "c"}) == Fingerprint(map[string]any{"a": "bc"}) {
		t.Fatalf("key and value boundaries must be kept")
	}
}
