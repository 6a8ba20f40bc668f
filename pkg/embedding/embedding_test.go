package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpDeterministic(t *testing.T) {
	p := NewNoOp(16)
	v1, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 16)
}

func TestNoOpRejectsEmptyText(t *testing.T) {
	p := NewNoOp(8)
	_, err := p.Embed(context.Background(), "")
	require.Error(t, err)
}

func TestNoOpBatch(t *testing.T) {
	p := NewNoOp(4)
	out, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Len(t, v, 4)
	}
}

func TestONNXDispatchesToBlockingPool(t *testing.T) {
	p, err := NewONNX(ONNXConfig{ModelPath: "model.onnx", Dimension: 8, Workers: 2}, nil)
	require.NoError(t, err)

	out, err := p.EmbedBatch(context.Background(), []string{"x", "y", "z"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Len(t, v, 8)
	}
}

func TestONNXRequiresModelPath(t *testing.T) {
	_, err := NewONNX(ONNXConfig{}, nil)
	require.Error(t, err)
}
