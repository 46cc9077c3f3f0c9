package domain

// Course is the top-level content container. Chapter order is explicit via Position.
type Course struct {
	ID       int64     `json:"id"`
	Slug     string    `json:"slug"`
	Name     string    `json:"name"`
	Chapters []Chapter `json:"chapters,omitempty"`
}

// Chapter groups lessons inside a course. Position is unique within the course.
type Chapter struct {
	ID       int64    `json:"id"`
	CourseID int64    `json:"course_id"`
	Slug     string   `json:"slug"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Lessons  []Lesson `json:"lessons,omitempty"`
}

// Lesson is the unit of progress tracking. Lessons carry no position of their
// own: inside a chapter they are ordered by ID, which follows creation order.
type Lesson struct {
	ID        int64  `json:"id"`
	ChapterID int64  `json:"chapter_id"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
}

// FindLesson looks a lesson up by ID anywhere in the course.
func (c *Course) FindLesson(id int64) (Lesson, bool) {
	for _, ch := range c.Chapters {
		for _, l := range ch.Lessons {
			if l.ID == id {
				return l, true
			}
		}
	}
	return Lesson{}, false
}

// LessonCount returns the number of lessons across all chapters.
func (c *Course) LessonCount() int {
	n := 0
	for _, ch := range c.Chapters {
		n += len(ch.Lessons)
	}
	return n
}
