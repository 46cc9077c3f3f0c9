package sqlite

import (
	"context"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func countCompletions(t *testing.T, db *DB, userID uuid.UUID, lessonID int64) int {
	t.Helper()
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM lesson_completions WHERE user_id = ? AND lesson_id = ?",
		userID.String(), lessonID,
	).Scan(&n)
	if err != nil {
		t.Fatalf("count completions: %v", err)
	}
	return n
}

func TestCompletionStore_MarkComplete_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	course := seedCourse(t, db)
	store := NewCompletionStore(db)
	user := uuid.New()
	lesson := course.Chapters[1].Lessons[0].ID

	for i := 0; i < 3; i++ {
		created, err := store.MarkComplete(ctx, user, lesson)
		if err != nil {
			t.Fatalf("MarkComplete() call %d error = %v", i+1, err)
		}
		if created != (i == 0) {
			t.Errorf("MarkComplete() call %d created = %v", i+1, created)
		}
	}

	if n := countCompletions(t, db, user, lesson); n != 1 {
		t.Errorf("completion rows = %d; want 1", n)
	}
}

func TestCompletionStore_MarkComplete_Concurrent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	course := seedCourse(t, db)
	store := NewCompletionStore(db)
	user := uuid.New()
	lesson := course.Chapters[0].Lessons[0].ID

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.MarkComplete(ctx, user, lesson)
			if err != nil {
				t.Errorf("MarkComplete() error = %v", err)
				return
			}
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("created = %d; want 1", created)
	}
	if n := countCompletions(t, db, user, lesson); n != 1 {
		t.Errorf("completion rows = %d; want 1", n)
	}
}

func TestCompletionStore_CompletedLessonIDs(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	course := seedCourse(t, db)
	other := seedOtherCourse(t, db)
	store := NewCompletionStore(db)
	user := uuid.New()

	hello := course.Chapters[1].Lessons[0].ID
	structs := course.Chapters[0].Lessons[0].ID
	foreign := other.Chapters[0].Lessons[0].ID

	for _, id := range []int64{structs, hello, foreign} {
		if _, err := store.MarkComplete(ctx, user, id); err != nil {
			t.Fatalf("MarkComplete(%d) error = %v", id, err)
		}
	}
	store.MarkComplete(ctx, uuid.New(), course.Chapters[1].Lessons[1].ID)

	got, err := store.CompletedLessonIDs(ctx, user, course.ID)
	if err != nil {
		t.Fatalf("CompletedLessonIDs() error = %v", err)
	}
	want := []int64{hello, structs}
	if hello > structs {
		want = []int64{structs, hello}
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CompletedLessonIDs() = %v; want %v", got, want)
	}

	none, err := store.CompletedLessonIDs(ctx, uuid.New(), course.ID)
	if err != nil {
		t.Fatalf("CompletedLessonIDs() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("CompletedLessonIDs(new user) = %v; want empty", none)
	}
}

func TestCompletionStore_MarkComplete_UnknownLesson(t *testing.T) {
	store := NewCompletionStore(openTestDB(t))
	if _, err := store.MarkComplete(context.Background(), uuid.New(), 12345); err == nil {
		t.Error("MarkComplete(unknown lesson) error = nil; want foreign key failure")
	}
}
