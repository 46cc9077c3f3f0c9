package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentStore persists assignments and test cases on PostgreSQL.
type AssignmentStore struct {
	pool *pgxpool.Pool
}

// NewAssignmentStore creates a new PostgreSQL assignment store.
func NewAssignmentStore(pool *pgxpool.Pool) *AssignmentStore {
	return &AssignmentStore{pool: pool}
}

const assignmentColumns = `id, lesson_id, slug, title, instructions, starter_code, solution, language`

func scanAssignment(row pgx.Row) (*domain.Assignment, error) {
	a := &domain.Assignment{}
	err := row.Scan(&a.ID, &a.LessonID, &a.Slug, &a.Title, &a.Instructions,
		&a.StarterCode, &a.Solution, &a.Language)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan assignment: %w", err)
	}
	return a, nil
}

// Assignment loads an assignment with its test cases in storage order.
func (s *AssignmentStore) Assignment(ctx context.Context, id int64) (*domain.Assignment, error) {
	a, err := scanAssignment(s.pool.QueryRow(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE id = $1", id))
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
	rows, err := s.pool.Query(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE lesson_id = $1 ORDER BY id", lessonID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Assignment, error) {
		return scanAssignment(row)
	})
	if err != nil {
		return nil, err
	}
	for _, a := range list {
		if a.TestCases, err = s.testCases(ctx, a.ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s *AssignmentStore) testCases(ctx context.Context, assignmentID int64) ([]domain.TestCase, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, assignment_id, stdin, expected_output, harness_file, class_name
		FROM test_cases WHERE assignment_id = $1
		ORDER BY id`, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("list test cases: %w", err)
	}
	cases, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TestCase, error) {
		var tc domain.TestCase
		err := row.Scan(&tc.ID, &tc.AssignmentID, &tc.Stdin, &tc.ExpectedOutput, &tc.HarnessFile, &tc.ClassName)
		return tc, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan test cases: %w", err)
	}
	return cases, nil
}

// SaveAssignment upserts an assignment and replaces its test cases.
func (s *AssignmentStore) SaveAssignment(ctx context.Context, a *domain.Assignment) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO assignments (lesson_id, slug, title, instructions, starter_code, solution, language)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (lesson_id, slug) DO UPDATE SET
				title = EXCLUDED.title, instructions = EXCLUDED.instructions,
				starter_code = EXCLUDED.starter_code, solution = EXCLUDED.solution,
				language = EXCLUDED.language
			RETURNING id`,
			a.LessonID, a.Slug, a.Title, a.Instructions, a.StarterCode, a.Solution, a.Language,
		).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("upsert assignment: %w", err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM test_cases WHERE assignment_id = $1", a.ID); err != nil {
			return fmt.Errorf("clear test cases: %w", err)
		}

		for i := range a.TestCases {
			tc := &a.TestCases[i]
			tc.AssignmentID = a.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO test_cases (assignment_id, stdin, expected_output, harness_file, class_name)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`,
				tc.AssignmentID, tc.Stdin, tc.ExpectedOutput, tc.HarnessFile, tc.ClassName,
			).Scan(&tc.ID)
			if err != nil {
				return fmt.Errorf("insert test case: %w", err)
			}
		}
		return nil
	})
}
