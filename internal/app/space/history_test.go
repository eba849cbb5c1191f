package space

import (
	"errors"
	"fmt"
	"testing"
)

func newTestHistory(t *testing.T, limit int) *History {
	t.Helper()

	history, err := NewHistory(limit)
	if err != nil {
		t.Fatalf("NewHistory failed: %v", err)
	}
	t.Cleanup(func() { history.Close() })

	return history
}

func appendMessages(t *testing.T, history *History, n int) []Message {
	t.Helper()

	messages := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		msg := newUserMessage("Aki", "conn-1", fmt.Sprintf("msg-%d", i))
		if err := history.Append(msg); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		messages = append(messages, msg)
	}
	return messages
}

func TestHistoryAppendAndGet(t *testing.T) {
	history := newTestHistory(t, 10)

	msg := newUserMessage("Aki", "conn-1", "hello")
	if err := history.Append(msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := history.Get(msg.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.ID != msg.ID || got.Sender != "Aki" || got.SenderID != "conn-1" || got.Content != "hello" {
		t.Errorf("stored message mismatch: %+v", got)
	}
	if got.Kind != KindUser {
		t.Errorf("expected kind %q, got %q", KindUser, got.Kind)
	}
	if got.Timestamp != msg.Timestamp {
		t.Errorf("timestamp changed in storage: %q vs %q", got.Timestamp, msg.Timestamp)
	}
}

func TestHistoryGetUnknownID(t *testing.T) {
	history := newTestHistory(t, 10)

	if _, err := history.Get("no-such-id"); !errors.Is(err, ErrMessageUnknown) {
		t.Errorf("expected ErrMessageUnknown, got %v", err)
	}
}

func TestHistoryReplyContextRoundTrip(t *testing.T) {
	history := newTestHistory(t, 10)

	original := newUserMessage("Aki", "conn-1", "original")
	if err := history.Append(original); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reply := newUserMessage("Rin", "conn-2", "reply")
	reply.ReplyTo = original.ID
	reply.ReplyContext = &ReplyContext{Sender: "Aki", Content: "original"}
	if err := history.Append(reply); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := history.Get(reply.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if got.ReplyTo != original.ID {
		t.Errorf("expected replyTo %q, got %q", original.ID, got.ReplyTo)
	}
	if got.ReplyContext == nil || got.ReplyContext.Sender != "Aki" || got.ReplyContext.Content != "original" {
		t.Errorf("unexpected reply context: %+v", got.ReplyContext)
	}
}

func TestHistoryPageChronologicalOrder(t *testing.T) {
	history := newTestHistory(t, 50)
	appendMessages(t, history, 3)

	messages, hasMore, _, err := history.Page(0, 10)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}

	if hasMore {
		t.Error("expected hasMore false when everything fits in one page")
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i, msg := range messages {
		if want := fmt.Sprintf("msg-%d", i); msg.Content != want {
			t.Errorf("position %d: expected %q, got %q", i, want, msg.Content)
		}
	}
}

func TestHistoryPageCursorWalk(t *testing.T) {
	history := newTestHistory(t, 50)
	appendMessages(t, history, 7)

	// Newest page first.
	page1, hasMore, cursor, err := history.Page(0, 3)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if !hasMore || cursor == 0 {
		t.Fatalf("expected hasMore with a cursor, got hasMore=%v cursor=%d", hasMore, cursor)
	}
	if page1[len(page1)-1].Content != "msg-6" {
		t.Errorf("expected newest message last, got %q", page1[len(page1)-1].Content)
	}

	// Walking the cursor yields strictly older pages.
	page2, hasMore, cursor, err := history.Page(cursor, 3)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if !hasMore {
		t.Fatal("expected a third page")
	}
	if page2[len(page2)-1].Content != "msg-3" {
		t.Errorf("expected msg-3 as newest of second page, got %q", page2[len(page2)-1].Content)
	}

	page3, hasMore, cursor, err := history.Page(cursor, 3)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if hasMore {
		t.Error("expected final page to report hasMore false")
	}
	if cursor != 0 {
		t.Errorf("expected zero cursor on final page, got %d", cursor)
	}
	if len(page3) != 1 || page3[0].Content != "msg-0" {
		t.Errorf("expected final page [msg-0], got %v", page3)
	}
}

func TestHistoryPageLimitDefaultsAndCap(t *testing.T) {
	history := newTestHistory(t, 200)
	appendMessages(t, history, DefaultPageSize+5)

	messages, _, _, err := history.Page(0, 0)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(messages) != DefaultPageSize {
		t.Errorf("expected default page size %d, got %d", DefaultPageSize, len(messages))
	}

	messages, _, _, err = history.Page(0, MaxPageSize*10)
	if err != nil {
		t.Fatalf("Page failed: %v", err)
	}
	if len(messages) > MaxPageSize {
		t.Errorf("expected page capped at %d, got %d", MaxPageSize, len(messages))
	}
}

func TestHistoryRetentionPrunesOldest(t *testing.T) {
	history := newTestHistory(t, 3)
	messages := appendMessages(t, history, 5)

	count, err := history.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected retention to keep 3 messages, got %d", count)
	}

	// The two oldest are gone, the newest three remain.
	for _, msg := range messages[:2] {
		if _, err := history.Get(msg.ID); !errors.Is(err, ErrMessageUnknown) {
			t.Errorf("expected %q to be pruned, got %v", msg.Content, err)
		}
	}
	for _, msg := range messages[2:] {
		if _, err := history.Get(msg.ID); err != nil {
			t.Errorf("expected %q to survive pruning, got %v", msg.Content, err)
		}
	}
}

func TestHistoryReactLifecycle(t *testing.T) {
	history := newTestHistory(t, 10)

	msg := newUserMessage("Aki", "conn-1", "hello")
	if err := history.Append(msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	reactions, err := history.React(msg.ID, "👍", "Rin", true)
	if err != nil {
		t.Fatalf("React add failed: %v", err)
	}
	if names := reactions["👍"]; len(names) != 1 || names[0] != "Rin" {
		t.Errorf("expected 👍 by [Rin], got %v", reactions)
	}

	// Adding the same reaction again is a no-op.
	reactions, err = history.React(msg.ID, "👍", "Rin", true)
	if err != nil {
		t.Fatalf("React repeat add failed: %v", err)
	}
	if names := reactions["👍"]; len(names) != 1 {
		t.Errorf("expected repeated add to not duplicate, got %v", names)
	}

	reactions, err = history.React(msg.ID, "👍", "Aki", true)
	if err != nil {
		t.Fatalf("React second name failed: %v", err)
	}
	if names := reactions["👍"]; len(names) != 2 {
		t.Errorf("expected two reactors, got %v", names)
	}

	reactions, err = history.React(msg.ID, "👍", "Rin", false)
	if err != nil {
		t.Fatalf("React remove failed: %v", err)
	}
	if names := reactions["👍"]; len(names) != 1 || names[0] != "Aki" {
		t.Errorf("expected 👍 by [Aki] after removal, got %v", reactions)
	}

	// Removing the last name drops the emoji key entirely.
	reactions, err = history.React(msg.ID, "👍", "Aki", false)
	if err != nil {
		t.Fatalf("React final remove failed: %v", err)
	}
	if _, ok := reactions["👍"]; ok {
		t.Errorf("expected emoji key removed when empty, got %v", reactions)
	}

	// The mutation is durable, not just in the returned map.
	got, err := history.Get(msg.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Reactions) != 0 {
		t.Errorf("expected no stored reactions, got %v", got.Reactions)
	}
}

func TestHistoryReactUnknownMessage(t *testing.T) {
	history := newTestHistory(t, 10)

	if _, err := history.React("no-such-id", "👍", "Rin", true); !errors.Is(err, ErrMessageUnknown) {
		t.Errorf("expected ErrMessageUnknown, got %v", err)
	}
}

func TestHistoryDelete(t *testing.T) {
	history := newTestHistory(t, 10)

	msg := newUserMessage("Aki", "conn-1", "hello")
	if err := history.Append(msg); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if err := history.Delete(msg.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := history.Get(msg.ID); !errors.Is(err, ErrMessageUnknown) {
		t.Errorf("expected message gone after delete, got %v", err)
	}

	if err := history.Delete(msg.ID); !errors.Is(err, ErrMessageUnknown) {
		t.Errorf("expected ErrMessageUnknown on repeated delete, got %v", err)
	}
}

func TestHistoryClear(t *testing.T) {
	history := newTestHistory(t, 10)
	appendMessages(t, history, 4)

	if err := history.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	count, err := history.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty history after clear, got %d messages", count)
	}
}
