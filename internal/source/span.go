package source

import (
	"fmt"
)

// FileID identifies a source file inside Files.
type FileID uint32

// NoFileID marks a span that points nowhere (synthetic nodes).
const NoFileID FileID = 0

type Span struct {
	File  FileID `msgpack:"f"`
	Start uint32 `msgpack:"s"` // inclusive byte offset
	End   uint32 `msgpack:"e"` // exclusive byte offset
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// Files maps FileIDs to paths. ID 1 is the first entry.
type Files struct {
	Paths []string `msgpack:"paths"`
}

// Add registers a path and returns its ID.
func (f *Files) Add(path string) FileID {
	f.Paths = append(f.Paths, path)
	return FileID(len(f.Paths))
}

// Path returns the registered path or "<unknown>".
func (f *Files) Path(id FileID) string {
	if f == nil || id == NoFileID || int(id) > len(f.Paths) {
		return "<unknown>"
	}
	return f.Paths[id-1]
}

// Format renders a span as path:start-end.
func (f *Files) Format(s Span) string {
	if s.File == NoFileID {
		return "<synthetic>"
	}
	return fmt.Sprintf("%s:%d-%d", f.Path(s.File), s.Start, s.End)
}
