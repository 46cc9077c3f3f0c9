package sqlite

import (
	"github.com/felixgeelhaar/syllabus/internal/domain"
)

// Ensure SQLite stores implement the domain storage interfaces.
var (
	_ domain.CourseReader     = (*CourseStore)(nil)
	_ domain.CompletionStore  = (*CompletionStore)(nil)
	_ domain.AssignmentReader = (*AssignmentStore)(nil)
	_ domain.CourseWriter     = (*CourseStore)(nil)
	_ domain.AssignmentWriter = (*AssignmentStore)(nil)
)
