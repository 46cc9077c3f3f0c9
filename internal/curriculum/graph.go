// Package curriculum derives the ordered lesson sequence of a course.
package curriculum

import (
	"sort"

	"github.com/felixgeelhaar/syllabus/internal/domain"
)

// Flatten returns the course lessons as one linear sequence: chapters by
// ascending position, then lessons within each chapter by ascending ID.
// The input is not modified. It is recomputed on every call.
func Flatten(course *domain.Course) []domain.Lesson {
	if course == nil || len(course.Chapters) == 0 {
		return []domain.Lesson{}
	}

	chapters := make([]domain.Chapter, len(course.Chapters))
	copy(chapters, course.Chapters)
	sort.SliceStable(chapters, func(i, j int) bool {
		if chapters[i].Position != chapters[j].Position {
			return chapters[i].Position < chapters[j].Position
		}
		return chapters[i].ID < chapters[j].ID
	})

	seq := make([]domain.Lesson, 0, course.LessonCount())
	for _, ch := range chapters {
		lessons := make([]domain.Lesson, len(ch.Lessons))
		copy(lessons, ch.Lessons)
		sort.Slice(lessons, func(i, j int) bool {
			return lessons[i].ID < lessons[j].ID
		})
		seq = append(seq, lessons...)
	}
	return seq
}

// IndexOf returns the position of a lesson in the sequence, or -1.
func IndexOf(seq []domain.Lesson, lessonID int64) int {
	for i, l := range seq {
		if l.ID == lessonID {
			return i
		}
	}
	return -1
}

// IDs projects the sequence onto lesson IDs.
func IDs(seq []domain.Lesson) []int64 {
	ids := make([]int64, len(seq))
	for i, l := range seq {
		ids[i] = l.ID
	}
	return ids
}
