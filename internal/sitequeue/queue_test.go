package sitequeue

import (
	"context"
	"testing"
	"time"
)

func TestPushAndPop(t *testing.T) {
	q := New()
	ctx := context.Background()

	if !q.Push(ctx, Item{Site: "pastebin", ID: "abc", URL: "https://x/abc"}) {
		t.Fatal("expected push to succeed")
	}

	item, ok := q.TryPop()
	if !ok {
		t.Fatal("expected an item")
	}
	if item.ID != "abc" {
		t.Fatalf("unexpected item: %+v", item)
	}
}

func TestTryPopEmpty(t *testing.T) {
	q := New()
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected no item from an empty queue")
	}
}

func TestPopBlocksUntilPush(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan Item, 1)
	go func() {
		item, ok := q.Pop(ctx)
		if ok {
			done <- item
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(context.Background(), Item{Site: "s", ID: "z"})

	select {
	case item := <-done:
		if item.ID != "z" {
			t.Fatalf("unexpected item: %+v", item)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Pop")
	}
}

func TestCloseDrainsBufferedThenReportsClosed(t *testing.T) {
	q := New()
	ctx := context.Background()
	q.Push(ctx, Item{Site: "s", ID: "1"})
	q.Close()

	if _, ok := q.TryPop(); !ok {
		t.Fatal("expected buffered item to still be available after Close")
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("expected no more items after drain")
	}
}

func TestPushAfterCloseIsRejected(t *testing.T) {
	q := New()
	q.Close()
	if q.Push(context.Background(), Item{Site: "s", ID: "1"}) {
		t.Fatal("expected push after close to be rejected")
	}
}
