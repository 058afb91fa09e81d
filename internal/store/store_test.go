package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/capitalize-ai/alpine-chat/internal/model"
)

func newSQLiteForTest(t *testing.T) Repository {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newMongoForTest connects to MONGO_URI and gives each test its own
// database, dropped on cleanup.
func newMongoForTest(t *testing.T) Repository {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewMongo(ctx, uri, fmt.Sprintf("alpine_chat_test_%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("NewMongo: %v", err)
	}
	t.Cleanup(func() {
		s.users.Database().Drop(ctx)
		s.Close()
	})
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteForTest(t)) })
	t.Run("mongo", func(t *testing.T) { fn(t, newMongoForTest(t)) })
}

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func mustConversation(t *testing.T, repo Repository, id, userID string, updated time.Time) {
	t.Helper()
	err := repo.CreateConversation(context.Background(), &model.Conversation{
		ID: id, UserID: userID, Title: model.DefaultConversationTitle,
		CreatedAt: base, UpdatedAt: updated,
	})
	if err != nil {
		t.Fatalf("CreateConversation(%s): %v", id, err)
	}
}

func TestUsers(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		u := &model.User{ID: "u1", Email: "alice@example.com", FullName: "Alice",
			PasswordHash: "hash", IsActive: true, CreatedAt: base}

		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		dup := *u
		dup.ID = "u2"
		if err := repo.CreateUser(ctx, &dup); !errors.Is(err, ErrDuplicate) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}

		got, err := repo.GetUserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail: %v", err)
		}
		if got.ID != "u1" || got.PasswordHash != "hash" || !got.IsActive || !got.CreatedAt.Equal(base) {
			t.Errorf("unexpected user %+v", got)
		}
		if _, err := repo.GetUser(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestConversationOwnershipAndOrdering(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		mustConversation(t, repo, "c1", "alice", base.Add(1*time.Minute))
		mustConversation(t, repo, "c2", "alice", base.Add(3*time.Minute))
		mustConversation(t, repo, "c3", "alice", base.Add(2*time.Minute))
		mustConversation(t, repo, "b1", "bob", base)

		convs, err := repo.ListConversations(ctx, "alice")
		if err != nil {
			t.Fatalf("ListConversations: %v", err)
		}
		var ids []string
		for _, c := range convs {
			ids = append(ids, c.ID)
		}
		if len(ids) != 3 || ids[0] != "c2" || ids[1] != "c3" || ids[2] != "c1" {
			t.Fatalf("unexpected order %v", ids)
		}

		if _, err := repo.GetConversation(ctx, "bob", "c1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("bob read alice's conversation: %v", err)
		}
		if err := repo.DeleteConversation(ctx, "bob", "c1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("bob deleted alice's conversation: %v", err)
		}

		title := "Mars weather"
		if err := repo.UpdateConversation(ctx, "c1", base.Add(10*time.Minute), &title); err != nil {
			t.Fatalf("UpdateConversation: %v", err)
		}
		c1, err := repo.GetConversation(ctx, "alice", "c1")
		if err != nil {
			t.Fatalf("GetConversation: %v", err)
		}
		if c1.Title != title || !c1.UpdatedAt.Equal(base.Add(10*time.Minute)) {
			t.Errorf("unexpected conversation %+v", c1)
		}
		if err := repo.UpdateConversation(ctx, "missing", base, nil); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestMessagesOrderAndCascade(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		mustConversation(t, repo, "c1", "alice", base)

		same := base.Add(time.Second)
		for i, role := range []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser} {
			msg := &model.Message{
				ID: string(rune('a' + i)), ConversationID: "c1", Role: role,
				Content: "m", CreatedAt: same,
			}
			if i == 2 {
				msg.HasAttachment = true
				msg.AttachmentData = "aGk="
				msg.AttachmentType = "image/png"
			}
			if err := repo.AppendMessage(ctx, msg); err != nil {
				t.Fatalf("AppendMessage: %v", err)
			}
			if msg.Seq == 0 {
				t.Fatal("expected seq to be assigned")
			}
		}

		first, err := repo.ListMessages(ctx, "c1")
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		second, _ := repo.ListMessages(ctx, "c1")
		if len(first) != 3 || len(second) != 3 {
			t.Fatalf("expected 3 messages, got %d/%d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Fatalf("listing not idempotent at %d", i)
			}
		}
		if first[0].ID != "a" || first[1].ID != "b" || first[2].ID != "c" {
			t.Errorf("ties not broken by insertion order: %s %s %s", first[0].ID, first[1].ID, first[2].ID)
		}
		if !first[2].HasImage() || first[2].AttachmentData != "aGk=" {
			t.Errorf("attachment not round-tripped: %+v", first[2])
		}

		if err := repo.DeleteConversation(ctx, "alice", "c1"); err != nil {
			t.Fatalf("DeleteConversation: %v", err)
		}
		left, err := repo.ListMessages(ctx, "c1")
		if err != nil {
			t.Fatalf("ListMessages after delete: %v", err)
		}
		if len(left) != 0 {
			t.Errorf("expected cascade delete, %d messages remain", len(left))
		}

		err = repo.AppendMessage(ctx, &model.Message{ID: "z", ConversationID: "c1", Role: model.RoleUser, CreatedAt: base})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("append to deleted conversation: expected ErrNotFound, got %v", err)
		}
	})
}

func TestConcurrentAppends(t *testing.T) {
	forEachStore(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		mustConversation(t, repo, "c1", "alice", base)

		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs <- repo.AppendMessage(ctx, &model.Message{
					ID: "m" + string(rune('A'+i)), ConversationID: "c1",
					Role: model.RoleUser, Content: "x", CreatedAt: base,
				})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("AppendMessage: %v", err)
			}
		}

		msgs, err := repo.ListMessages(ctx, "c1")
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		if len(msgs) != 20 {
			t.Fatalf("expected 20 messages, got %d", len(msgs))
		}
		for i := 1; i < len(msgs); i++ {
			if msgs[i].Seq <= msgs[i-1].Seq {
				t.Fatalf("seq not increasing at %d", i)
			}
		}
	})
}

func TestSQLiteErrorHelpers(t *testing.T) {
	if !isConflict(errors.New("database is locked (5) (SQLITE_BUSY)")) {
		t.Error("expected conflict")
	}
	if isConflict(nil) || isUniqueViolation(nil) {
		t.Error("nil is not an error")
	}
	if !isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: users.email (2067)")) {
		t.Error("expected unique violation")
	}

	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Errorf("withRetry: err=%v calls=%d", err, calls)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Driver: "cassandra"}); err == nil {
		t.Fatal("expected error")
	}
	repo, err := Open(context.Background(), Options{Driver: "memory"})
	if err != nil || repo == nil {
		t.Fatalf("Open memory: %v", err)
	}
}
