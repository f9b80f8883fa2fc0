package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationNormalize(t *testing.T) {
	p := PaginationParams{}.Normalize(50, 500)
	assert.Equal(t, PaginationParams{Page: 1, Limit: 50}, p)
	assert.Equal(t, int64(0), p.GetSkip())

	p = PaginationParams{Page: 3, Limit: 1000}.Normalize(50, 500)
	assert.Equal(t, 500, p.Limit)
	assert.Equal(t, int64(1000), p.GetSkip())

	assert.Equal(t, int64(0), PaginationParams{Page: -1, Limit: 10}.GetSkip())
}
