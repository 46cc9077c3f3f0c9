package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/syllabus/internal/domain"
)

// AssignmentStore persists assignments and their test cases.
type AssignmentStore struct {
	db *DB
}

// NewAssignmentStore creates a new SQLite-backed assignment store.
func NewAssignmentStore(db *DB) *AssignmentStore {
	return &AssignmentStore{db: db}
}

const assignmentColumns = `id, lesson_id, slug, title, instructions, starter_code, solution, language`

// Assignment loads an assignment with its test cases in storage order.
func (s *AssignmentStore) Assignment(ctx context.Context, id int64) (*domain.Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, err
	}
	if a.TestCases, err = s.testCases(ctx, a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// LessonAssignments lists the assignments attached to a lesson.
func (s *AssignmentStore) LessonAssignments(ctx context.Context, lessonID int64) ([]*domain.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE lesson_id = ? ORDER BY id", lessonID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}

	var out []*domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, a := range out {
		if a.TestCases, err = s.testCases(ctx, a.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *AssignmentStore) testCases(ctx context.Context, assignmentID int64) ([]domain.TestCase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, assignment_id, stdin, expected_output, harness_file, class_name
		FROM test_cases WHERE assignment_id = ?
		ORDER BY id`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.TestCase
	for rows.Next() {
		var tc domain.TestCase
		if err := rows.Scan(&tc.ID, &tc.AssignmentID, &tc.Stdin, &tc.ExpectedOutput,
			&tc.HarnessFile, &tc.ClassName); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// SaveAssignment upserts an assignment by (lesson, slug) and replaces its test
// cases, preserving slice order as storage order.
func (s *AssignmentStore) SaveAssignment(ctx context.Context, a *domain.Assignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO assignments (lesson_id, slug, title, instructions, starter_code, solution, language)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(lesson_id, slug) DO UPDATE SET
			title=excluded.title, instructions=excluded.instructions,
			starter_code=excluded.starter_code, solution=excluded.solution,
			language=excluded.language
		RETURNING id`,
		a.LessonID, a.Slug, a.Title, a.Instructions, a.StarterCode, a.Solution, a.Language,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM test_cases WHERE assignment_id = ?", a.ID); err != nil {
		return fmt.Errorf("clear test cases: %w", err)
	}

	for i := range a.TestCases {
		tc := &a.TestCases[i]
		tc.AssignmentID = a.ID
		result, err := tx.ExecContext(ctx, `
			INSERT INTO test_cases (assignment_id, stdin, expected_output, harness_file, class_name)
			VALUES (?, ?, ?, ?, ?)`,
			tc.AssignmentID, tc.Stdin, tc.ExpectedOutput, tc.HarnessFile, tc.ClassName,
		)
		if err != nil {
			return fmt.Errorf("insert test case: %w", err)
		}
		if tc.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("test case id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*domain.Assignment, error) {
	a := &domain.Assignment{}
	err := row.Scan(&a.ID, &a.LessonID, &a.Slug, &a.Title, &a.Instructions,
		&a.StarterCode, &a.Solution, &a.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	return a, nil
}
