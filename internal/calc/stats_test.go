package calc

import "testing"

func TestSummarize(t *testing.T) {
	tests := []struct {
		name        string
		values      []uint64
		trimPercent float64
		want        Summary
	}{
		{
			name:        "empty slice",
			values:      nil,
			trimPercent: 0.1,
			want:        Summary{},
		},
		{
			name:        "no trimming",
			values:      []uint64{4, 1, 3, 2},
			trimPercent: 0,
			want:        Summary{Count: 4, Min: 1, Max: 4, TrimmedMean: 2}, // (1+2+3+4)/4 = 2
		},
		{
			name:        "outlier removed",
			values:      []uint64{10, 1000, 11, 12},
			trimPercent: 0.25,
			want:        Summary{Count: 4, Min: 10, Max: 1000, TrimmedMean: 11}, // trim 1 from each side -> {11,12}
		},
		{
			name:        "trim percent too large",
			values:      []uint64{30, 10, 20},
			trimPercent: 0.5,
			want:        Summary{Count: 3, Min: 10, Max: 30, TrimmedMean: 20}, // only middle remains
		},
		{
			name:        "negative trim percent treated as zero",
			values:      []uint64{5, 5, 5},
			trimPercent: -1,
			want:        Summary{Count: 3, Min: 5, Max: 5, TrimmedMean: 5},
		},
		{
			name:        "single value",
			values:      []uint64{37},
			trimPercent: 0.1,
			want:        Summary{Count: 1, Min: 37, Max: 37, TrimmedMean: 37},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.values, tt.trimPercent)
			if got != tt.want {
				t.Fatalf("expected %+v but got %+v", tt.want, got)
			}
		})
	}
}

func TestSummarizeKeepsInput(t *testing.T) {
	values := []uint64{3, 1, 2}
	Summarize(values, 0)
	if values[0] != 3 || values[1] != 1 || values[2] != 2 {
		t.Fatalf("expected input order preserved but got %v", values)
	}
}
