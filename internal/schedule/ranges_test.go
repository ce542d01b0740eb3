package schedule

import "testing"

func TestRangeCacheCoverage(t *testing.T) {
	var c RangeCache
	if c.IsCovered(iv(t, "10.03.2024", "10.03.2024")) {
		t.Fatal("empty cache should cover nothing")
	}

	c.Record(iv(t, "01.03.2024", "10.03.2024"))
	c.Record(iv(t, "11.03.2024", "20.03.2024"))

	tests := []struct {
		name       string
		start, end string
		want       bool
	}{
		{"inside first", "02.03.2024", "05.03.2024", true},
		{"exact second", "11.03.2024", "20.03.2024", true},
		{"single day edge", "10.03.2024", "10.03.2024", true},
		{"spans both adjacent ranges", "09.03.2024", "12.03.2024", false},
		{"partially outside", "15.03.2024", "25.03.2024", false},
		{"disjoint", "01.04.2024", "02.04.2024", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.IsCovered(iv(t, tt.start, tt.end)); got != tt.want {
				t.Errorf("IsCovered(%s-%s) = %v, want %v", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestRangeCacheRecordDropsContained(t *testing.T) {
	var c RangeCache
	c.Record(iv(t, "05.03.2024", "07.03.2024"))
	c.Record(iv(t, "06.03.2024", "06.03.2024")) // already covered
	if n := len(c.Ranges()); n != 1 {
		t.Fatalf("covered interval should not be stored twice, have %d", n)
	}

	c.Record(iv(t, "01.03.2024", "31.03.2024"))
	got := c.Ranges()
	if len(got) != 1 || got[0] != iv(t, "01.03.2024", "31.03.2024") {
		t.Fatalf("month should replace the contained window, got %v", got)
	}

	c.Reset()
	if len(c.Ranges()) != 0 || c.IsCovered(iv(t, "10.03.2024", "10.03.2024")) {
		t.Fatal("Reset should forget everything")
	}
}
