package mastery_test

import (
	"slices"
	"sync"
	"testing"

	"github.com/p-n-ai/pai-assess/internal/mastery"
	"github.com/p-n-ai/pai-assess/internal/platform/database/databasetest"
)

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) mastery.Store {
		return mastery.NewMemoryStore()
	})
}

func TestPostgresStore(t *testing.T) {
	pool := databasetest.NewPool(t)
	runStoreTests(t, func(t *testing.T) mastery.Store {
		store, err := mastery.NewPostgresStore(pool)
		if err != nil {
			t.Fatalf("NewPostgresStore() error = %v", err)
		}
		return store
	})
}

// Subtests use t.Name() as the student id so they can share one database.
func runStoreTests(t *testing.T, newStore func(t *testing.T) mastery.Store) {
	t.Run("absent profile is empty", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		student := t.Name()

		p, err := store.GetProfile(ctx, student)
		if err != nil {
			t.Fatalf("GetProfile() error = %v", err)
		}
		if p.StudentID != student || len(p.Topics) != 0 || len(p.WeakTopics) != 0 || p.MasteryIndex != 0 {
			t.Errorf("GetProfile() = %+v, want empty", p)
		}

		d, err := store.DifficultyFor(ctx, student)
		if err != nil {
			t.Fatalf("DifficultyFor() error = %v", err)
		}
		if d != 0 {
			t.Errorf("DifficultyFor() = %v, want 0", d)
		}
	})

	t.Run("record and read back", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		student := t.Name()

		var outcomes []mastery.Outcome
		for i := range 4 {
			outcomes = append(outcomes,
				mastery.Outcome{Topic: "algebra", Correct: i < 3},
				mastery.Outcome{Topic: "geometry", Correct: i < 1},
			)
		}
		got, err := store.RecordResult(ctx, student, outcomes)
		if err != nil {
			t.Fatalf("RecordResult() error = %v", err)
		}
		if got.MasteryIndex != 50 {
			t.Errorf("MasteryIndex = %d, want 50", got.MasteryIndex)
		}
		if !slices.Equal(got.WeakTopics, []string{"geometry"}) {
			t.Errorf("WeakTopics = %v, want [geometry]", got.WeakTopics)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("UpdatedAt should be set")
		}

		read, err := store.GetProfile(ctx, student)
		if err != nil {
			t.Fatalf("GetProfile() error = %v", err)
		}
		if !slices.Equal(read.Topics, got.Topics) {
			t.Errorf("GetProfile().Topics = %+v, want %+v", read.Topics, got.Topics)
		}

		d, err := store.DifficultyFor(ctx, student)
		if err != nil {
			t.Fatalf("DifficultyFor() error = %v", err)
		}
		if d != 0.5 {
			t.Errorf("DifficultyFor() = %v, want 0.5", d)
		}
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		student := t.Name()

		const workers = 10
		var wg sync.WaitGroup
		for i := range workers {
			wg.Add(1)
			go func(correct bool) {
				defer wg.Done()
				if _, err := store.RecordResult(ctx, student, []mastery.Outcome{
					{Topic: "algebra", Correct: correct},
				}); err != nil {
					t.Errorf("RecordResult() error = %v", err)
				}
			}(i%2 == 0)
		}
		wg.Wait()

		p, err := store.GetProfile(ctx, student)
		if err != nil {
			t.Fatalf("GetProfile() error = %v", err)
		}
		if len(p.Topics) != 1 || p.Topics[0].Total != workers || p.Topics[0].Correct != workers/2 {
			t.Errorf("Topics = %+v, want algebra %d/%d", p.Topics, workers/2, workers)
		}
	})
}
