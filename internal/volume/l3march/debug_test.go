package l3march

import (
	"bytes"
	"strings"
	"testing"
)

func TestSetLogWriters(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	opsf("ops %d", 1)
	diagf("truncated %d rays", 3)
	tracef("step=%d alive=%d", 8, 2)

	streams := []struct {
		name string
		buf  *bytes.Buffer
		want string
	}{
		{"ops", &ops, "ops 1"},
		{"diag", &diag, "truncated 3 rays"},
		{"trace", &trace, "step=8 alive=2"},
	}
	for _, s := range streams {
		got := s.buf.String()
		if !strings.HasPrefix(got, "[l3march] ") || !strings.Contains(got, s.want) {
			t.Errorf("%s stream = %q", s.name, got)
		}
	}
}

func TestSetLogWriters_Disabled(t *testing.T) {
	var diag bytes.Buffer
	SetLogWriters(nil, &diag, nil)
	defer SetLogWriters(nil, nil, nil)

	opsf("dropped")
	tracef("dropped")
	if diag.Len() != 0 {
		t.Errorf("diag stream received %q", diag.String())
	}
}
