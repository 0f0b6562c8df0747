package store

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiawesome/wes-meet/internal/domain"
)

func msg(i int) domain.ChatMessage {
	return domain.ChatMessage{SenderID: "c", Text: strconv.Itoa(i), Timestamp: int64(i)}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(3)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 3, h.Cap())
	assert.Empty(t, h.Messages())
	assert.NotNil(t, h.Messages())
}

func TestHistory_DefaultCapacity(t *testing.T) {
	assert.Equal(t, domain.MaxHistory, NewHistory(0).Cap())
	assert.Equal(t, domain.MaxHistory, NewHistory(-5).Cap())
}

func TestHistory_EvictsOldestFirst(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 3; i++ {
		assert.False(t, h.Append(msg(i)))
	}
	assert.True(t, h.Append(msg(4)))
	assert.True(t, h.Append(msg(5)))

	got := h.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, "3", got[0].Text)
	assert.Equal(t, "4", got[1].Text)
	assert.Equal(t, "5", got[2].Text)
}

func TestHistory_250Messages(t *testing.T) {
	h := NewHistory(domain.MaxHistory)
	for i := 1; i <= 250; i++ {
		h.Append(msg(i))
	}

	got := h.Messages()
	require.Len(t, got, 200)
	assert.Equal(t, "51", got[0].Text)
	assert.Equal(t, "250", got[199].Text)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Timestamp, got[i].Timestamp)
	}
}

func TestHistory_MessagesIsACopy(t *testing.T) {
	h := NewHistory(2)
	h.Append(msg(1))
	got := h.Messages()
	got[0].Text = "mutated"
	assert.Equal(t, "1", h.Messages()[0].Text)
}
