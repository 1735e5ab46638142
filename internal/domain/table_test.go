package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindAsymmetricPairs(t *testing.T) {
	tables := []Table{
		{Number: 15, CombinableWith: []int{16}},
		{Number: 16, CombinableWith: []int{15}},
		{Number: 3, CombinableWith: []int{4, 99}},
		{Number: 4},
	}

	pairs := FindAsymmetricPairs(tables)
	assert.Equal(t, []AsymmetricPair{{Table: 3, Partner: 4}, {Table: 3, Partner: 99}}, pairs)
	assert.Empty(t, FindAsymmetricPairs(tables[:2]))
}
