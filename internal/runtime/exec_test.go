package runtime

import (
	"sort"
	"strings"
	"testing"
)

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides []string
		want      []string
	}{
		{
			name: "empty overrides keep base",
			base: []string{"PATH=/usr/bin", "HOME=/root"},
			want: []string{"HOME=/root", "PATH=/usr/bin"},
		},
		{
			name:      "override replaces base entry",
			base:      []string{"PATH=/usr/bin", "HOME=/root"},
			overrides: []string{"HOME=/opt"},
			want:      []string{"HOME=/opt", "PATH=/usr/bin"},
		},
		{
			name:      "new variables are added",
			base:      []string{"PATH=/usr/bin"},
			overrides: []string{"CARGO_HOME=/opt/cargo"},
			want:      []string{"CARGO_HOME=/opt/cargo", "PATH=/usr/bin"},
		},
		{
			name:      "later override wins",
			base:      nil,
			overrides: []string{"A=1", "A=2"},
			want:      []string{"A=2"},
		},
		{
			name:      "malformed entries are dropped",
			base:      []string{"NOEQUALS"},
			overrides: []string{"A=1"},
			want:      []string{"A=1"},
		},
		{
			name:      "value may contain equals",
			base:      nil,
			overrides: []string{"FLAGS=-X a=b"},
			want:      []string{"FLAGS=-X a=b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeEnv(tt.base, tt.overrides)
			sort.Strings(got)
			if len(got) != len(tt.want) {
				t.Fatalf("mergeEnv = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("mergeEnv = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestNextExecID(t *testing.T) {
	a, b := nextExecID(), nextExecID()
	if a == b {
		t.Errorf("consecutive exec IDs collide: %q", a)
	}
	if !strings.HasPrefix(a, "exec-") {
		t.Errorf("exec ID = %q, want exec- prefix", a)
	}
}
