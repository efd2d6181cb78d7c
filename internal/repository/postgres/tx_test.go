package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInTx_EmptyContext(t *testing.T) {
	assert.False(t, InTx(context.Background()))
}

func TestInTx_WrongValueType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey, "not a tx")
	assert.False(t, InTx(ctx))
}
