// Package catalog turns the platform's detailed-course payload into an
// immutable Course tree.
package catalog

import (
	"github.com/surge-downloader/coursedl/internal/engine/types"
	"github.com/surge-downloader/coursedl/internal/utils"
)

// RawCourse mirrors one element of the detailedCourses response.
type RawCourse struct {
	Title         string            `json:"title"`
	Slug          string            `json:"slug"`
	Description   string            `json:"description"`
	Chapters      []RawChapter      `json:"chapters"`
	ExerciseFiles []RawExerciseFile `json:"exerciseFiles"`
}

type RawChapter struct {
	Title  string     `json:"title"`
	Videos []RawVideo `json:"videos"`
}

type RawVideo struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type RawExerciseFile struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	SizeInBytes int64  `json:"sizeInBytes"`
}

// Course is the root of the tree. Exercise is nil when the course ships no
// exercise files.
type Course struct {
	Name        string
	Slug        string
	Description string
	Chapters    []Chapter
	Exercise    *Exercise
}

// Chapter Index is 1-based and follows the order of the payload.
type Chapter struct {
	Name   string
	Index  int
	Videos []Video
}

// Video Filename is derived from Index and Name only.
type Video struct {
	Name     string
	Slug     string
	Index    int
	Filename string
}

type Exercise struct {
	Name string
	URL  string
	Size int64
}

// Build converts raw into a Course. Only the first exercise file is kept,
// and it is dropped when neither its name nor its URL yields a file name.
func Build(raw RawCourse) Course {
	course := Course{
		Name:        raw.Title,
		Slug:        raw.Slug,
		Description: raw.Description,
		Chapters:    make([]Chapter, 0, len(raw.Chapters)),
	}

	for i, rc := range raw.Chapters {
		ch := Chapter{
			Name:   rc.Title,
			Index:  i + 1,
			Videos: make([]Video, 0, len(rc.Videos)),
		}
		for j, rv := range rc.Videos {
			ch.Videos = append(ch.Videos, Video{
				Name:     rv.Title,
				Slug:     rv.Slug,
				Index:    j + 1,
				Filename: VideoFilename(j+1, rv.Title),
			})
		}
		course.Chapters = append(course.Chapters, ch)
	}

	if len(raw.ExerciseFiles) > 0 {
		ef := raw.ExerciseFiles[0]
		name := utils.SafeBaseName(ef.Name)
		if name == "" {
			fromURL, _ := utils.FilenameFromURL(ef.URL)
			name = utils.SafeBaseName(fromURL)
		}
		if name != "" {
			course.Exercise = &Exercise{Name: name, URL: ef.URL, Size: ef.SizeInBytes}
		}
	}

	return course
}

// VideoFilename is the on-disk name for the index-th video called name.
func VideoFilename(index int, name string) string {
	return utils.IndexedName(index, name, types.VideoExt)
}

// VideoCount returns the number of videos across all chapters.
func (c Course) VideoCount() int {
	n := 0
	for _, ch := range c.Chapters {
		n += len(ch.Videos)
	}
	return n
}
