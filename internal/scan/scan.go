// Package scan extracts module references from JavaScript source.
//
// It recognizes four call forms:
//
//	require('x')           → static edge
//	import('x')            → deferred edge (split point)
//	require.load('x')      → deferred edge (split point)
//	require.context('dir') → build-time directory scan marker
//
// The scanner is a single pass over the raw bytes. It does not parse
// JavaScript; it tracks just enough state (strings, comments) to avoid
// matching call sites inside literals.
package scan

// Import is one module reference found in a source file.
type Import struct {
	// Specifier is the raw string argument of the call site.
	Specifier string
	// Deferred marks a dynamic import() split point.
	Deferred bool
	// Context marks a require.context() directory marker.
	Context bool
}

// Scan returns every module reference in src, in source order.
func Scan(src []byte) []Import {
	var out []Import
	s := &scanner{src: src}

	for !s.eof() {
		c := s.peek()
		switch {
		case c == '/' && s.peekAt(1) == '/':
			s.skipLineComment()
		case c == '/' && s.peekAt(1) == '*':
			s.skipBlockComment()
		case c == '\'' || c == '"' || c == '`':
			s.skipString(c)
		case isIdentStart(c) && !s.prevIdent:
			word := s.readIdent()
			switch word {
			case "require":
				s.scanRequire(&out)
			case "import":
				s.scanDynamicImport(&out)
			}
		default:
			s.prevIdent = isIdentPart(c)
			s.pos++
		}
	}
	return out
}

type scanner struct {
	src []byte
	pos int
	// prevIdent is true when the previous byte could continue an identifier,
	// so "unrequire(" does not match.
	prevIdent bool
}

func (s *scanner) eof() bool  { return s.pos >= len(s.src) }
func (s *scanner) peek() byte { return s.src[s.pos] }
func (s *scanner) peekAt(n int) byte {
	if s.pos+n >= len(s.src) {
		return 0
	}
	return s.src[s.pos+n]
}

func (s *scanner) skipLineComment() {
	for !s.eof() && s.src[s.pos] != '\n' {
		s.pos++
	}
	s.prevIdent = false
}

func (s *scanner) skipBlockComment() {
	s.pos += 2
	for !s.eof() {
		if s.src[s.pos] == '*' && s.peekAt(1) == '/' {
			s.pos += 2
			break
		}
		s.pos++
	}
	s.prevIdent = false
}

func (s *scanner) skipString(quote byte) {
	s.pos++
	for !s.eof() {
		c := s.src[s.pos]
		if c == '\\' {
			s.pos += 2
			continue
		}
		s.pos++
		if c == quote {
			break
		}
	}
	s.prevIdent = false
}

func (s *scanner) readIdent() string {
	start := s.pos
	for !s.eof() && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	s.prevIdent = false
	return string(s.src[start:s.pos])
}

// scanRequire handles require('x'), require.load('x'), and
// require.context('dir').
func (s *scanner) scanRequire(out *[]Import) {
	s.skipSpaces()
	var isContext, isDeferred bool
	if !s.eof() && s.peek() == '.' {
		s.pos++
		switch s.readIdent() {
		case "context":
			isContext = true
		case "load":
			isDeferred = true
		default:
			return
		}
		s.skipSpaces()
	}
	if spec, ok := s.callArg(); ok {
		*out = append(*out, Import{Specifier: spec, Context: isContext, Deferred: isDeferred})
	}
}

// scanDynamicImport handles import('x'). A bare "import" keyword without a
// following paren (ESM syntax) is ignored.
func (s *scanner) scanDynamicImport(out *[]Import) {
	s.skipSpaces()
	if spec, ok := s.callArg(); ok {
		*out = append(*out, Import{Specifier: spec, Deferred: true})
	}
}

// callArg consumes "( 'literal' " and returns the literal. It rejects
// non-literal arguments (computed specifiers cannot be bundled statically).
func (s *scanner) callArg() (string, bool) {
	if s.eof() || s.peek() != '(' {
		return "", false
	}
	s.pos++
	s.skipSpaces()
	if s.eof() {
		return "", false
	}
	quote := s.peek()
	if quote != '\'' && quote != '"' {
		return "", false
	}
	s.pos++
	start := s.pos
	for !s.eof() && s.src[s.pos] != quote {
		s.pos++
	}
	if s.eof() {
		return "", false
	}
	spec := string(s.src[start:s.pos])
	s.pos++ // closing quote
	if spec == "" {
		return "", false
	}
	return spec, true
}

func (s *scanner) skipSpaces() {
	for !s.eof() {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
