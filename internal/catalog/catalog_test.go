package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "title": "Learning Go",
  "slug": "learning-go",
  "description": "Go from zero",
  "chapters": [
    {"title": "1. Getting Started", "videos": [
      {"title": "Welcome", "slug": "welcome"},
      {"title": "What you should know?", "slug": "what-you-should-know"}
    ]},
    {"title": "2. Concurrency: Basics", "videos": [
      {"title": "Goroutines", "slug": "goroutines"}
    ]}
  ],
  "exerciseFiles": [
    {"name": "Ex_Files_Learning_Go.zip", "url": "https://files.example.com/ex1.zip", "sizeInBytes": 2048},
    {"name": "Second.zip", "url": "https://files.example.com/ex2.zip", "sizeInBytes": 1}
  ]
}`

func TestBuild(t *testing.T) {
	var raw RawCourse
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &raw))

	course := Build(raw)

	assert.Equal(t, "Learning Go", course.Name)
	assert.Equal(t, "learning-go", course.Slug)
	assert.Equal(t, "Go from zero", course.Description)
	require.Len(t, course.Chapters, 2)
	assert.Equal(t, 3, course.VideoCount())

	ch1 := course.Chapters[0]
	assert.Equal(t, "1. Getting Started", ch1.Name)
	assert.Equal(t, 1, ch1.Index)
	require.Len(t, ch1.Videos, 2)
	assert.Equal(t, Video{Name: "Welcome", Slug: "welcome", Index: 1, Filename: "01 - Welcome.mp4"}, ch1.Videos[0])
	assert.Equal(t, "02 - What you should know.mp4", ch1.Videos[1].Filename)

	ch2 := course.Chapters[1]
	assert.Equal(t, 2, ch2.Index)
	assert.Equal(t, 1, ch2.Videos[0].Index, "video indices restart per chapter")

	require.NotNil(t, course.Exercise)
	assert.Equal(t, Exercise{Name: "Ex_Files_Learning_Go.zip", URL: "https://files.example.com/ex1.zip", Size: 2048}, *course.Exercise)
}

func TestBuild_NoExerciseFiles(t *testing.T) {
	course := Build(RawCourse{Title: "T", Slug: "t", ExerciseFiles: []RawExerciseFile{}})
	assert.Nil(t, course.Exercise)
	assert.Empty(t, course.Chapters)
	assert.Zero(t, course.VideoCount())

	course = Build(RawCourse{Title: "T", Slug: "t"})
	assert.Nil(t, course.Exercise)
}

func TestBuild_ExerciseNameFallsBackToURL(t *testing.T) {
	course := Build(RawCourse{ExerciseFiles: []RawExerciseFile{{URL: "https://files.example.com/a/Ex%20Files.zip?x=1"}}})
	require.NotNil(t, course.Exercise)
	assert.Equal(t, "Ex Files.zip", course.Exercise.Name)
}

func TestBuild_ExerciseNameIsReducedToBaseName(t *testing.T) {
	course := Build(RawCourse{ExerciseFiles: []RawExerciseFile{{Name: "../../escaped.zip", URL: "https://files.example.com/ex.zip"}}})
	require.NotNil(t, course.Exercise)
	assert.Equal(t, "escaped.zip", course.Exercise.Name)

	course = Build(RawCourse{ExerciseFiles: []RawExerciseFile{{Name: "..", URL: "https://files.example.com/a/Ex_Files.zip"}}})
	require.NotNil(t, course.Exercise)
	assert.Equal(t, "Ex_Files.zip", course.Exercise.Name)
}

func TestBuild_ExerciseWithoutUsableNameIsDropped(t *testing.T) {
	for _, ef := range []RawExerciseFile{
		{Name: "", URL: "https://files.example.com/"},
		{Name: "..", URL: "://invalid"},
		{Name: "/", URL: ""},
	} {
		course := Build(RawCourse{Title: "T", ExerciseFiles: []RawExerciseFile{ef}})
		assert.Nil(t, course.Exercise, "exercise %+v", ef)
	}
}

func TestBuild_IndicesFollowOrderNotContent(t *testing.T) {
	raw := RawCourse{Chapters: []RawChapter{
		{Title: "9. Last", Videos: []RawVideo{{Title: "3. c", Slug: "c"}, {Title: "1. a", Slug: "a"}}},
		{Title: "1. First"},
	}}

	course := Build(raw)
	assert.Equal(t, 1, course.Chapters[0].Index)
	assert.Equal(t, 2, course.Chapters[1].Index)
	assert.Equal(t, "01 - c.mp4", course.Chapters[0].Videos[0].Filename)
	assert.Equal(t, "02 - a.mp4", course.Chapters[0].Videos[1].Filename)
}

func TestBuild_DoesNotAliasInput(t *testing.T) {
	raw := RawCourse{Chapters: []RawChapter{{Title: "A", Videos: []RawVideo{{Title: "v", Slug: "v"}}}}}
	course := Build(raw)

	raw.Chapters[0].Videos[0].Title = "changed"
	assert.Equal(t, "v", course.Chapters[0].Videos[0].Name)
}

func TestVideoFilename(t *testing.T) {
	assert.Equal(t, "07 - Select Statement.mp4", VideoFilename(7, "4. Select: Statement"))
	assert.Equal(t, VideoFilename(7, "x"), VideoFilename(7, "x"))
}
