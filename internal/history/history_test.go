package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndList(t *testing.T) {
	s := NewStore()
	s.Append("t1", NewUserMessage("first"))
	s.Append("t1", NewUserMessage("second"))

	msgs := s.List("t1")
	require.Len(t, msgs, 2)
	require.Equal(t, "first", msgs[0].Content)
	require.Equal(t, "second", msgs[1].Content)
	require.False(t, msgs[0].CreatedAt.IsZero())
}

func TestStore_ThreadsAreIsolated(t *testing.T) {
	s := NewStore()
	s.Append("a", NewUserMessage("for a"))
	s.Append("b", NewUserMessage("for b"))

	require.Len(t, s.List("a"), 1)
	require.Len(t, s.List("b"), 1)
	require.Equal(t, "for a", s.List("a")[0].Content)
	require.Zero(t, s.Len("unused"))
}

func TestStore_ListReturnsACopy(t *testing.T) {
	s := NewStore()
	s.Append("t1", NewUserMessage("original"))

	msgs := s.List("t1")
	msgs[0].Content = "mutated"
	require.Equal(t, "original", s.List("t1")[0].Content)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			threadID := fmt.Sprintf("thread-%d", i%4)
			unlock := s.LockThread(threadID)
			defer unlock()
			for range 25 {
				s.Append(threadID, NewUserMessage("msg"))
			}
		}()
	}
	wg.Wait()

	total := 0
	for i := range 4 {
		total += s.Len(fmt.Sprintf("thread-%d", i))
	}
	require.Equal(t, 200, total)
}

func TestMessage_ToChatCompletionMessage(t *testing.T) {
	msg := NewToolMessage("175.43", "call-1", "get_stock_price")
	wire := msg.ToChatCompletionMessage()
	require.Equal(t, openai.ChatMessageRoleTool, wire.Role)
	require.Equal(t, "175.43", wire.Content)
	require.Equal(t, "call-1", wire.ToolCallID)
	require.Equal(t, "get_stock_price", wire.Name)
}
