// Package paths maps catalog entities to their local destinations.
package paths

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/surge-downloader/coursedl/internal/catalog"
	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/utils"
)

// MarkerFile names the file left in a course directory recording its slug.
const MarkerFile = ".coursedl"

const (
	untitledCourse      = "course"
	unnamedExerciseFile = "exercise-files.zip"
)

// Resolver computes destinations under Root. Its path methods do no I/O.
type Resolver struct {
	Root string
}

// Sanitize applies the path-segment cleaning rule.
func Sanitize(name string) string {
	return utils.SanitizeName(name)
}

// CourseDir is named after the course title, or its slug when the title
// sanitizes to nothing. It is never Root itself.
func (r Resolver) CourseDir(c catalog.Course) string {
	name := Sanitize(c.Name)
	if name == "" {
		name = Sanitize(c.Slug)
	}
	if name == "" || name == "." || name == ".." {
		name = untitledCourse
	}
	return filepath.Join(r.Root, name)
}

func (r Resolver) ChapterDir(c catalog.Course, ch catalog.Chapter) string {
	return filepath.Join(r.CourseDir(c), utils.IndexedName(ch.Index, ch.Name, ""))
}

func (r Resolver) VideoPath(c catalog.Course, ch catalog.Chapter, v catalog.Video) string {
	return filepath.Join(r.ChapterDir(c, ch), v.Filename)
}

// SubtitlePath shares the video's stem.
func (r Resolver) SubtitlePath(c catalog.Course, ch catalog.Chapter, v catalog.Video) string {
	stem := strings.TrimSuffix(v.Filename, filepath.Ext(v.Filename))
	return filepath.Join(r.ChapterDir(c, ch), stem+types.SubtitleExt)
}

// ExercisePath keeps only the last element of the bundle's name, so the
// result is always a file directly inside the course directory.
func (r Resolver) ExercisePath(c catalog.Course, ex catalog.Exercise) string {
	name := utils.SafeBaseName(ex.Name)
	if name == "" {
		name = unnamedExerciseFile
	}
	return filepath.Join(r.CourseDir(c), name)
}

// SlugDir is where a course named after its slug would live.
func (r Resolver) SlugDir(slug string) string {
	return filepath.Join(r.Root, Sanitize(slug))
}

// Exists reports whether anything is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteMarker records slug inside courseDir.
func WriteMarker(courseDir, slug string) error {
	path := filepath.Join(courseDir, MarkerFile)
	if err := os.WriteFile(path, []byte(slug+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing course marker: %w", err)
	}
	return nil
}

// FindMarked returns the course directory under Root whose marker names
// slug, or "" when there is none.
func (r Resolver) FindMarked(slug string) (string, error) {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("listing output root: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(r.Root, e.Name())
		data, err := os.ReadFile(filepath.Join(dir, MarkerFile))
		if err != nil {
			continue
		}
		if string(bytes.TrimSpace(data)) == slug {
			return dir, nil
		}
	}
	return "", nil
}

// AlreadyRetrieved reports the directory that marks slug as done: the slug
// directory itself, or a course directory carrying its marker.
func (r Resolver) AlreadyRetrieved(slug string) (string, bool, error) {
	if dir := r.SlugDir(slug); Exists(dir) {
		return dir, true, nil
	}
	dir, err := r.FindMarked(slug)
	if err != nil {
		return "", false, err
	}
	return dir, dir != "", nil
}
