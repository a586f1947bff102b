package domain

import "strings"

// Level is the query/retrieve hierarchy level.
type Level string

// Query levels.
const (
	LevelStudy  Level = "STUDY"
	LevelSeries Level = "SERIES"
	LevelImage  Level = "IMAGE"
)

// IsValid checks if the level is one of the supported values.
func (l Level) IsValid() bool {
	return l == LevelStudy || l == LevelSeries || l == LevelImage
}

// ParseLevel converts a case-insensitive name into a Level.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if l == "INSTANCE" {
		l = LevelImage
	}
	return l, l.IsValid()
}
