package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_EmbedBatch(t *testing.T) {
	model := newStubModel(map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
	})
	svc := NewServiceWithModel(model)

	vectors, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, "stub", svc.Name())
	assert.Equal(t, "stub-v1", svc.Version())
	assert.Equal(t, 2, svc.Dimensions())
}

func TestService_Embed(t *testing.T) {
	svc := NewServiceWithModel(newStubModel(map[string][]float32{"a": {1, 0}}))

	v, err := svc.Embed(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
}

func TestService_RejectsInvalidInput(t *testing.T) {
	model := newStubModel(nil)
	svc := NewServiceWithModel(model)

	_, err := svc.EmbedBatch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.EmbedBatch(context.Background(), []string{"a", ""})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, 0, model.calls(), "model must not be called for invalid input")
}

func TestService_CountMismatch(t *testing.T) {
	svc := NewServiceWithModel(newStubModel(map[string][]float32{"a": {1, 0}}))

	_, err := svc.EmbedBatch(context.Background(), []string{"a", "missing"})
	assert.ErrorIs(t, err, ErrContractViolation)
}

func TestService_PropagatesModelError(t *testing.T) {
	boom := errors.New("connection refused")
	model := newStubModel(nil)
	model.err = boom

	_, err := NewServiceWithModel(model).EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestValidateVectors(t *testing.T) {
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))

	tests := []struct {
		name    string
		vectors [][]float32
		want    int
		wantErr bool
	}{
		{name: "valid", want: 2, vectors: [][]float32{{1, 0}, {0, 1}}},
		{name: "zero vector is valid", want: 1, vectors: [][]float32{{0, 0}}},
		{name: "too few", want: 2, vectors: [][]float32{{1, 0}}, wantErr: true},
		{name: "too many", want: 1, vectors: [][]float32{{1, 0}, {0, 1}}, wantErr: true},
		{name: "empty vector", want: 1, vectors: [][]float32{{}}, wantErr: true},
		{name: "dimension mismatch", want: 2, vectors: [][]float32{{1, 0}, {1, 0, 0}}, wantErr: true},
		{name: "nan", want: 1, vectors: [][]float32{{nan, 0}}, wantErr: true},
		{name: "inf", want: 1, vectors: [][]float32{{inf, 0}}, wantErr: true},
		{name: "empty batch", want: 0, vectors: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVectors(tt.want, tt.vectors)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrContractViolation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewService_UnknownModel(t *testing.T) {
	_, err := NewService(ModelConfig{Version: "does-not-exist"})
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestNewService_DefaultIsHashing(t *testing.T) {
	svc, err := NewService(ModelConfig{})
	require.NoError(t, err)
	defer svc.Close()

	assert.Equal(t, HashingModelVersion, svc.Version())
	assert.Equal(t, HashingDefaultDimension, svc.Dimensions())
}
