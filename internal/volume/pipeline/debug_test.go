package pipeline

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dnerf.render/internal/testutil"
)

func TestSetLogWriters(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	r := newRenderer(t, drifting, nil)
	_, err := r.RenderTrain(context.Background(), testutil.Rays(8), 0.25)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(diag.String(), "[pipeline] "), "diag stream = %q", diag.String())
	assert.Contains(t, diag.String(), "train render slice=0 rays=8")
	assert.Contains(t, trace.String(), "warp pass samples=")
	assert.Empty(t, ops.String())
}
