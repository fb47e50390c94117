package jasmin

import (
	"reflect"
	"testing"
)

func TestPeephole(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "goto next label",
			in:   []string{"\ticonst_1", "\tgoto L1", "L1:", "\tireturn"},
			want: []string{"\ticonst_1", "L1:", "\tireturn"},
		},
		{
			name: "goto elsewhere is kept",
			in:   []string{"\tgoto L2", "L1:", "\treturn", "L2:", "\treturn"},
			want: []string{"\tgoto L2", "L1:", "\treturn", "L2:", "\treturn"},
		},
		{
			name: "iinc by zero",
			in:   []string{"\tiinc 1 0", "\treturn"},
			want: []string{"\treturn"},
		},
		{
			name: "iinc by one is kept",
			in:   []string{"\tiinc 1 1", "\treturn"},
			want: []string{"\tiinc 1 1", "\treturn"},
		},
	}

	po := NewPeepholeOptimizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := po.OptimizeLines(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPeepholeText(t *testing.T) {
	out := NewPeepholeOptimizer().Optimize("\tgoto End\nEnd:\n\treturn")
	if out != "End:\n\treturn" {
		t.Errorf("unexpected output %q", out)
	}
}
