// Package mcp exposes lesson progression and grading as MCP tools so editor
// agents can check a learner's place in a course and grade their code.
package mcp

import (
	"context"
	"fmt"
	"strings"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/syllabus/internal/domain"
	"github.com/felixgeelhaar/syllabus/internal/grading"
	"github.com/felixgeelhaar/syllabus/internal/judge"
	"github.com/felixgeelhaar/syllabus/internal/progress"
)

// Server wraps the MCP server with progression and grading tools
type Server struct {
	mcpServer   *server.Server
	engine      *progress.Engine
	recorder    *progress.Recorder
	grader      *grading.Grader
	assignments domain.AssignmentReader
}

// Config contains configuration for the MCP server
type Config struct {
	Version     string
	Engine      *progress.Engine
	Recorder    *progress.Recorder
	Grader      *grading.Grader
	Assignments domain.AssignmentReader
}

// NewServer creates a new MCP server
func NewServer(cfg Config) *Server {
	s := &Server{
		engine:      cfg.Engine,
		recorder:    cfg.Recorder,
		grader:      cfg.Grader,
		assignments: cfg.Assignments,
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "syllabus",
		Version: version,
	}, server.WithInstructions(`
Syllabus tracks a learner's progress through a course and grades their code.

Lessons unlock in order: the first lesson of a course is always open, every
other lesson opens once the lesson before it is complete. Running and grading
code for an assignment requires its lesson to be open for the learner.

Available tools:
- syllabus_progress: Completion summary and the lesson to resume from
- syllabus_complete: Mark a lesson complete and get the next lesson
- syllabus_run: Run code for an assignment with optional stdin
- syllabus_submit: Grade code against an assignment's tests
- syllabus_languages: List the languages the judge accepts
`))

	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("syllabus_progress").
		Description("Get a learner's progress through a course and the lesson to resume from.").
		Handler(s.handleProgress)

	s.mcpServer.Tool("syllabus_complete").
		Description("Mark an accessible lesson complete. Fails if the lesson is locked.").
		Handler(s.handleComplete)

	s.mcpServer.Tool("syllabus_run").
		Description("Run a learner's code for an assignment once and return its output. Fails if the lesson is locked.").
		Handler(s.handleRun)

	s.mcpServer.Tool("syllabus_submit").
		Description("Grade a learner's code against an assignment's test cases or test harness. Fails if the lesson is locked.").
		Handler(s.handleSubmit)

	s.mcpServer.Tool("syllabus_languages").
		Description("List the programming languages the judge accepts.").
		Handler(s.handleLanguages)
}

// Input/Output types for tools

type ProgressInput struct {
	UserID   string `json:"user_id" jsonschema:"description=Learner UUID"`
	CourseID int64  `json:"course_id" jsonschema:"description=Course ID"`
}

type ProgressOutput struct {
	Completed         int     `json:"completed"`
	Total             int     `json:"total"`
	Percent           int     `json:"percent"`
	AccessibleLessons []int64 `json:"accessible_lesson_ids"`
	ResumeLessonID    int64   `json:"resume_lesson_id,omitempty"`
	ResumeTitle       string  `json:"resume_title,omitempty"`
}

type CompleteInput struct {
	UserID   string `json:"user_id" jsonschema:"description=Learner UUID"`
	CourseID int64  `json:"course_id" jsonschema:"description=Course ID"`
	LessonID int64  `json:"lesson_id" jsonschema:"description=Lesson ID to mark complete"`
}

type CompleteOutput struct {
	Created      bool   `json:"created"`
	NextLessonID int64  `json:"next_lesson_id,omitempty"`
	Message      string `json:"message"`
}

type RunInput struct {
	UserID       string `json:"user_id" jsonschema:"description=Learner UUID"`
	AssignmentID int64  `json:"assignment_id" jsonschema:"description=Assignment ID"`
	Code         string `json:"code" jsonschema:"description=Source code to run"`
	Stdin        string `json:"stdin,omitempty" jsonschema:"description=Standard input for the program"`
}

type SubmitInput struct {
	UserID       string `json:"user_id" jsonschema:"description=Learner UUID"`
	AssignmentID int64  `json:"assignment_id" jsonschema:"description=Assignment ID"`
	Code         string `json:"code" jsonschema:"description=Source code to grade"`
}

type SubmitOutput struct {
	Success bool   `json:"success"`
	Passed  int    `json:"passed"`
	Total   int    `json:"total"`
	Mode    string `json:"mode"`
	Summary string `json:"summary"`
	// Failures lists one line per failing test case or harness test.
	Failures []string `json:"failures,omitempty"`
}

type LanguagesInput struct{}

type LanguagesOutput struct {
	Languages []judge.Language `json:"languages"`
}

// Tool handlers

func (s *Server) handleProgress(ctx context.Context, input ProgressInput) (ProgressOutput, error) {
	userID, err := parseUser(input.UserID)
	if err != nil {
		return ProgressOutput{}, err
	}

	sum, err := s.engine.Summary(ctx, userID, input.CourseID)
	if err != nil {
		return ProgressOutput{}, fmt.Errorf("load progress: %w", err)
	}

	out := ProgressOutput{
		Completed:         sum.Completed,
		Total:             sum.Total,
		Percent:           sum.Percent,
		AccessibleLessons: sum.AccessibleLessons,
	}
	if sum.Resume != nil {
		out.ResumeLessonID = sum.Resume.ID
		out.ResumeTitle = sum.Resume.Title
	}
	return out, nil
}

func (s *Server) handleComplete(ctx context.Context, input CompleteInput) (CompleteOutput, error) {
	userID, err := parseUser(input.UserID)
	if err != nil {
		return CompleteOutput{}, err
	}

	c, err := s.recorder.Complete(ctx, userID, input.CourseID, input.LessonID)
	if err != nil {
		return CompleteOutput{}, fmt.Errorf("complete lesson: %w", err)
	}

	out := CompleteOutput{Created: c.Created, Message: "Lesson already complete"}
	if c.Created {
		out.Message = "Lesson complete"
	}
	if c.Next != nil {
		out.NextLessonID = c.Next.ID
		out.Message += fmt.Sprintf(". Next: %s", c.Next.Title)
	}
	return out, nil
}

// openAssignment loads an assignment the learner may work on.
func (s *Server) openAssignment(ctx context.Context, rawUser string, assignmentID int64) (*domain.Assignment, error) {
	userID, err := parseUser(rawUser)
	if err != nil {
		return nil, err
	}
	a, err := s.assignments.Assignment(ctx, assignmentID)
	if err != nil {
		return nil, fmt.Errorf("load assignment %d: %w", assignmentID, err)
	}
	open, err := s.engine.CanAccess(ctx, userID, a.LessonID)
	if err != nil {
		return nil, fmt.Errorf("check lesson access: %w", err)
	}
	if !open {
		return nil, fmt.Errorf("assignment %d: %w", assignmentID, domain.ErrLessonLocked)
	}
	return a, nil
}

func (s *Server) handleRun(ctx context.Context, input RunInput) (grading.RunResult, error) {
	a, err := s.openAssignment(ctx, input.UserID, input.AssignmentID)
	if err != nil {
		return grading.RunResult{}, err
	}
	res, err := s.grader.Run(ctx, a, input.Code, input.Stdin)
	if err != nil {
		return grading.RunResult{}, fmt.Errorf("run code: %w", err)
	}
	return *res, nil
}

func (s *Server) handleSubmit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	a, err := s.openAssignment(ctx, input.UserID, input.AssignmentID)
	if err != nil {
		return SubmitOutput{}, err
	}
	v, err := s.grader.Grade(ctx, a, input.Code)
	if err != nil {
		return SubmitOutput{}, fmt.Errorf("grade code: %w", err)
	}

	out := SubmitOutput{
		Success:  v.Success,
		Passed:   v.Passed,
		Total:    v.Total,
		Mode:     string(v.Mode),
		Failures: failures(v),
	}
	switch {
	case v.Total == 0:
		out.Summary = "No tests configured"
	case v.Success:
		out.Summary = fmt.Sprintf("All %d tests passed", v.Total)
	default:
		out.Summary = fmt.Sprintf("%d of %d tests passed", v.Passed, v.Total)
	}
	return out, nil
}

func (s *Server) handleLanguages(ctx context.Context, input LanguagesInput) (LanguagesOutput, error) {
	return LanguagesOutput{Languages: judge.Languages()}, nil
}

func failures(v *grading.Verdict) []string {
	var out []string
	if v.Submit != nil {
		for i, r := range v.Submit.Results {
			if r.Passed {
				continue
			}
			line := fmt.Sprintf("case %d: expected %q, got %q", i+1, r.Expected, r.Actual)
			if r.Error != "" {
				line += ": " + firstLine(r.Error)
			}
			out = append(out, line)
		}
	}
	if v.Suite != nil {
		for _, r := range v.Suite.Results {
			if r.Status == grading.OutcomePassed {
				continue
			}
			line := r.Test + " " + r.Status
			if r.Message != "" {
				line += ": " + firstLine(r.Message)
			}
			out = append(out, line)
		}
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func parseUser(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user_id %q: %w", raw, err)
	}
	return id, nil
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// ServeHTTP starts the MCP server on HTTP (alternative transport)
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
