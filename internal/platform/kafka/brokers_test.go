package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092 "))
	assert.Equal(t, []string{"redpanda:9092"}, SplitBrokers("redpanda:9092"))
	assert.Nil(t, SplitBrokers(""))
}
