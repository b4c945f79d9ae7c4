package atom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/abema/go-mp4"
)

// Mode selects how atoms are located inside the buffer.
type Mode int

const (
	// Linear takes the first byte offset where the four-character code appears.
	// It can match tag bytes that happen to occur inside unrelated payloads.
	Linear Mode = iota
	// Structured walks the box tree and only accepts tags at real box headers.
	Structured
)

func (m Mode) String() string {
	switch m {
	case Linear:
		return "linear"
	case Structured:
		return "structured"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts "linear" or "structured" into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "linear":
		return Linear, nil
	case "structured":
		return Structured, nil
	default:
		return Linear, fmt.Errorf("unknown scan mode %q (want linear or structured)", s)
	}
}

// Scanner runs the metadata lookups over one in-memory file.
// It never modifies buf. A Scanner is not safe for concurrent use.
type Scanner struct {
	buf  []byte
	mode Mode

	boxes   map[string]header
	walkErr error
}

// NewScanner binds buf to the given location mode.
func NewScanner(buf []byte, mode Mode) *Scanner {
	return &Scanner{buf: buf, mode: mode}
}

// Mode returns the location mode in use.
func (s *Scanner) Mode() Mode {
	return s.mode
}

// locate returns the header of the first box of the given type.
// The second return value is NotPresent or Malformed when nothing is returned.
func (s *Scanner) locate(tag string) (header, Result[struct{}]) {
	if s.mode == Structured {
		s.walk()
		if h, ok := s.boxes[tag]; ok {
			return h, found(struct{}{})
		}
		if s.walkErr != nil {
			return header{}, malformed[struct{}]("box walk stopped before %q: %v", tag, s.walkErr)
		}
		return header{}, notPresent[struct{}](tag + " atom not found")
	}

	if off, ok := indexTag(s.buf, tag); ok {
		return headerAt(s.buf, off), found(struct{}{})
	}
	return header{}, notPresent[struct{}](tag + " atom not found")
}

// indexTag finds the first occurrence of tag that has room for a size field
// before it and returns the offset of that size field.
func indexTag(buf []byte, tag string) (int, bool) {
	if len(buf) < boxHeaderSize {
		return 0, false
	}
	i := bytes.Index(buf[4:], []byte(tag))
	if i < 0 {
		return 0, false
	}
	return i, true
}

// walk records the offset of the first box of every type reachable from the
// top level. Walk errors are kept; offsets recorded before the error remain usable.
func (s *Scanner) walk() {
	if s.boxes != nil {
		return
	}
	s.boxes = make(map[string]header)
	defer func() {
		if r := recover(); r != nil {
			s.walkErr = fmt.Errorf("box walk panicked: %v", r)
		}
	}()
	_, s.walkErr = mp4.ReadBoxStructure(bytes.NewReader(s.buf), func(h *mp4.ReadHandle) (interface{}, error) {
		name := h.BoxInfo.Type.String()
		if _, seen := s.boxes[name]; !seen {
			s.boxes[name] = header{off: int(h.BoxInfo.Offset), len: int(h.BoxInfo.HeaderSize)}
		}
		if h.BoxInfo.Type == mp4.BoxTypeMdat() || !h.BoxInfo.IsSupportedType() {
			return nil, nil
		}
		return h.Expand()
	})
}
