package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetScope_Absent(t *testing.T) {
	_, ok := GetScope(context.Background())
	assert.False(t, ok)
}

func TestGetScope_WithoutConnection(t *testing.T) {
	ctx := SetScope(context.Background(), &Scope{})
	_, ok := GetScope(ctx)
	assert.False(t, ok, "a scope without a connection is not usable")

	ctx = SetScope(context.Background(), nil)
	_, ok = GetScope(ctx)
	assert.False(t, ok)
}

func TestScope_CloseIsIdempotent(t *testing.T) {
	s := &Scope{}
	s.Close()
	s.Close()
	assert.Nil(t, s.Conn)
}
