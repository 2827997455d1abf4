package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"jan-server/services/chat-api/internal/config"
	domain "jan-server/services/chat-api/internal/domain/conversation"
	"jan-server/services/chat-api/internal/infrastructure/database"
	"jan-server/services/chat-api/internal/utils/platformerrors"
)

type repositoryFactory func(t *testing.T) domain.Repository

func newSQLiteRepository(t *testing.T) domain.Repository {
	t.Helper()

	db, err := database.Connect(database.Config{
		Driver: config.DriverSQLite,
		DSN:    ":memory:",
		// A single connection keeps one in-memory database alive and
		// serialises transactions the way SQLite requires.
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(context.Background(), db, zerolog.Nop()))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewRepository(db)
}

func newMemoryRepository(t *testing.T) domain.Repository {
	return NewInMemoryRepository()
}

func forEachRepository(t *testing.T, fn func(t *testing.T, repo domain.Repository)) {
	factories := map[string]repositoryFactory{
		"inmemory": newMemoryRepository,
		"sqlite":   newSQLiteRepository,
	}
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestCreateAndFind(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo domain.Repository) {
		ctx := context.Background()
		conv := domain.NewConversation("abc123xyz", domain.ModelLlama2)

		require.NoError(t, repo.Create(ctx, conv))
		assert.NotZero(t, conv.ID)

		found, err := repo.FindByPublicID(ctx, "abc123xyz")
		require.NoError(t, err)
		assert.Equal(t, "abc123xyz", found.PublicID)
		assert.Equal(t, domain.ModelLlama2, found.ModelName)
		assert.Empty(t, found.Messages)
	})
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo domain.Repository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, domain.NewConversation("dup000000", domain.ModelLlama2)))

		err := repo.Create(ctx, domain.NewConversation("dup000000", domain.ModelMistral))
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict), "got %v", err)
	})
}

func TestFindMissingIsNotFound(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo domain.Repository) {
		_, err := repo.FindByPublicID(context.Background(), "missing00")
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	})
}

func TestAppendMessagesPreservesOrder(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo domain.Repository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, domain.NewConversation("order0000", domain.ModelMistral)))

		first, err := repo.AppendMessages(ctx, "order0000", domain.NewTurn("hi", "hello!"))
		require.NoError(t, err)
		require.Len(t, first.Messages, 2)

		second, err := repo.AppendMessages(ctx, "order0000", domain.NewTurn("how are you?", "fine"))
		require.NoError(t, err)
		require.Len(t, second.Messages, 4)

		// earlier entries are untouched
		for i := range first.Messages {
			assert.Equal(t, first.Messages[i].Role, second.Messages[i].Role)
			assert.Equal(t, first.Messages[i].Content, second.Messages[i].Content)
		}

		wantRoles := []domain.Role{domain.RoleUser, domain.RoleAI, domain.RoleUser, domain.RoleAI}
		wantContent := []string{"hi", "hello!", "how are you?", "fine"}
		for i, msg := range second.Messages {
			assert.Equal(t, wantRoles[i], msg.Role)
			assert.Equal(t, wantContent[i], msg.Content)
		}

		found, err := repo.FindByPublicID(ctx, "order0000")
		require.NoError(t, err)
		assert.Len(t, found.Messages, 4)
	})
}

func TestAppendMessagesMissingConversation(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo domain.Repository) {
		_, err := repo.AppendMessages(context.Background(), "missing00", domain.NewTurn("hi", "hello"))
		require.Error(t, err)
		assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound))
	})
}

func TestAppendMessagesConcurrentTurnsAreNotLost(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo domain.Repository) {
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, domain.NewConversation("race00000", domain.ModelLlama2)))

		const turns = 10
		var g errgroup.Group
		for i := 0; i < turns; i++ {
			i := i
			g.Go(func() error {
				_, err := repo.AppendMessages(ctx, "race00000",
					domain.NewTurn(fmt.Sprintf("question %d", i), fmt.Sprintf("answer %d", i)))
				return err
			})
		}
		require.NoError(t, g.Wait())

		conv, err := repo.FindByPublicID(ctx, "race00000")
		require.NoError(t, err)
		require.Len(t, conv.Messages, turns*2)

		seen := make(map[string]bool)
		for i := 0; i < len(conv.Messages); i += 2 {
			user, reply := conv.Messages[i], conv.Messages[i+1]
			require.Equal(t, domain.RoleUser, user.Role)
			require.Equal(t, domain.RoleAI, reply.Role)

			var n int
			_, err := fmt.Sscanf(user.Content, "question %d", &n)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("answer %d", n), reply.Content, "pair split at position %d", i)
			seen[user.Content] = true
		}
		assert.Len(t, seen, turns)
	})
}

func TestListMostRecentFirst(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo domain.Repository) {
		ctx := context.Background()
		for _, id := range []string{"first0000", "second000", "third0000"} {
			require.NoError(t, repo.Create(ctx, domain.NewConversation(id, domain.ModelLlama2)))
			time.Sleep(2 * time.Millisecond)
		}

		list, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"third0000", "second000", "first0000"}, publicIDs(list))

		_, err = repo.AppendMessages(ctx, "first0000", domain.NewTurn("hi", "hello"))
		require.NoError(t, err)

		list, err = repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"first0000", "third0000", "second000"}, publicIDs(list))
		assert.Len(t, list[0].Messages, 2)
	})
}

func publicIDs(conversations []*domain.Conversation) []string {
	ids := make([]string, len(conversations))
	for i, conv := range conversations {
		ids[i] = conv.PublicID
	}
	return ids
}
