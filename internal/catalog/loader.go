// Package catalog loads course packs from YAML and imports them into the
// course and assignment stores.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PackFile is the YAML structure of a course pack.
type PackFile struct {
	Course struct {
		Slug string `yaml:"slug"`
		Name string `yaml:"name"`
	} `yaml:"course"`
	Chapters []ChapterFile `yaml:"chapters"`
}

// ChapterFile is one chapter of a pack.
type ChapterFile struct {
	Slug     string       `yaml:"slug"`
	Name     string       `yaml:"name"`
	Position int          `yaml:"position"`
	Lessons  []LessonFile `yaml:"lessons"`
}

// LessonFile is one lesson, listed in creation order.
type LessonFile struct {
	Slug        string           `yaml:"slug"`
	Title       string           `yaml:"title"`
	Body        string           `yaml:"body"`
	Assignments []AssignmentFile `yaml:"assignments"`
}

// AssignmentFile is a gradable exercise attached to a lesson.
type AssignmentFile struct {
	Slug         string       `yaml:"slug"`
	Title        string       `yaml:"title"`
	Language     string       `yaml:"language"`
	Instructions string       `yaml:"instructions"`
	StarterCode  string       `yaml:"starter_code"`
	Solution     string       `yaml:"solution"`
	Tests        []TestFile   `yaml:"tests"`
	Harness      *HarnessFile `yaml:"harness"`
}

// TestFile is a stdin/expected-output pair.
type TestFile struct {
	Stdin          string `yaml:"stdin"`
	ExpectedOutput string `yaml:"expected_output"`
}

// HarnessFile is a JUnit harness, inline or in a file next to the pack.
type HarnessFile struct {
	ClassName string `yaml:"class_name"`
	File      string `yaml:"file"`
	Source    string `yaml:"source"`
}

// ErrInvalidPack wraps every pack validation failure.
var ErrInvalidPack = errors.New("invalid course pack")

// Load reads a pack from disk. Harness files resolve relative to the pack.
func Load(path string) (*PackFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pack file: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Parse decodes and validates a pack. baseDir resolves harness file paths.
func Parse(data []byte, baseDir string) (*PackFile, error) {
	var pack PackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse pack file: %w", err)
	}

	if err := pack.resolveHarnesses(baseDir); err != nil {
		return nil, err
	}
	if err := pack.Validate(); err != nil {
		return nil, err
	}
	return &pack, nil
}

func (p *PackFile) resolveHarnesses(baseDir string) error {
	for ci := range p.Chapters {
		for li := range p.Chapters[ci].Lessons {
			for ai := range p.Chapters[ci].Lessons[li].Assignments {
				h := p.Chapters[ci].Lessons[li].Assignments[ai].Harness
				if h == nil || h.Source != "" || h.File == "" {
					continue
				}
				if filepath.IsAbs(h.File) || strings.HasPrefix(filepath.Clean(h.File), "..") {
					return fmt.Errorf("%w: harness file %q must be inside the pack", ErrInvalidPack, h.File)
				}
				data, err := os.ReadFile(filepath.Join(baseDir, h.File))
				if err != nil {
					return fmt.Errorf("read harness file: %w", err)
				}
				h.Source = string(data)
			}
		}
	}
	return nil
}

// Validate checks required fields, slug uniqueness and that chapter
// positions are unique within the course.
func (p *PackFile) Validate() error {
	if p.Course.Slug == "" || p.Course.Name == "" {
		return fmt.Errorf("%w: course slug and name are required", ErrInvalidPack)
	}

	chapters := map[string]bool{}
	positions := map[int]string{}
	for _, ch := range p.Chapters {
		if ch.Slug == "" {
			return fmt.Errorf("%w: chapter slug is required", ErrInvalidPack)
		}
		if chapters[ch.Slug] {
			return fmt.Errorf("%w: duplicate chapter %q", ErrInvalidPack, ch.Slug)
		}
		chapters[ch.Slug] = true

		if other, taken := positions[ch.Position]; taken {
			return fmt.Errorf("%w: chapters %q and %q share position %d", ErrInvalidPack, other, ch.Slug, ch.Position)
		}
		positions[ch.Position] = ch.Slug

		lessons := map[string]bool{}
		for _, l := range ch.Lessons {
			if l.Slug == "" {
				return fmt.Errorf("%w: lesson slug is required in chapter %q", ErrInvalidPack, ch.Slug)
			}
			if lessons[l.Slug] {
				return fmt.Errorf("%w: duplicate lesson %q in chapter %q", ErrInvalidPack, l.Slug, ch.Slug)
			}
			lessons[l.Slug] = true

			assignments := map[string]bool{}
			for _, a := range l.Assignments {
				where := fmt.Sprintf("%s/%s/%s", ch.Slug, l.Slug, a.Slug)
				if a.Slug == "" || a.Language == "" {
					return fmt.Errorf("%w: assignment %s needs a slug and language", ErrInvalidPack, where)
				}
				if assignments[a.Slug] {
					return fmt.Errorf("%w: duplicate assignment %s", ErrInvalidPack, where)
				}
				assignments[a.Slug] = true
				if a.Harness != nil && a.Harness.Source == "" {
					return fmt.Errorf("%w: assignment %s has an empty harness", ErrInvalidPack, where)
				}
			}
		}
	}
	return nil
}
