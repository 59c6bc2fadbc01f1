package curriculum_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/platform/database"
)

func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := t.Context()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("curriculum"),
		postgres.WithUsername("curriculum"),
		postgres.WithPassword("curriculum"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		ctr.Terminate(context.Background())
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	db, err := database.New(ctx, dsn, 4, 1)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(db.Close)

	if err := database.Migrate(ctx, db.Pool); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.Pool
}

func TestPostgresStore_RoundTrip(t *testing.T) {
	pool := newTestPool(t)
	store, err := curriculum.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := t.Context()

	res, err := store.Save(ctx, curriculum.Record{Title: "Go Basics", Weeks: validCurriculum(t)})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if res.ID == "" {
		t.Fatal("Save() returned empty id")
	}

	res2, err := store.Save(ctx, curriculum.Record{ID: res.ID, Title: "Go Basics v2", Weeks: validCurriculum(t)})
	if err != nil {
		t.Fatalf("Save(update) error = %v", err)
	}
	if res2.ID != res.ID {
		t.Errorf("update id = %q, want %q", res2.ID, res.ID)
	}

	got, err := store.Load(ctx, res.ID)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Title != "Go Basics v2" {
		t.Errorf("Title = %q, want Go Basics v2", got.Title)
	}
	l := got.Weeks[0].Sections[0].Lessons[0]
	if l.Quiz == nil || l.Quiz.QuizID != "quiz-1" {
		t.Errorf("lesson = %+v", l)
	}
}

func TestPostgresStore_NotFound(t *testing.T) {
	pool := newTestPool(t)
	store, _ := curriculum.NewPostgresStore(pool)

	_, err := store.Load(t.Context(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, curriculum.ErrRecordNotFound) {
		t.Errorf("Load() error = %v, want ErrRecordNotFound", err)
	}
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := curriculum.NewPostgresStore(nil); err == nil {
		t.Error("NewPostgresStore(nil) should return error")
	}
}
