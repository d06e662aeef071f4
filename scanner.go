package engine

import (
	"path"
	"strings"
)

type ImportKind int

const (
	ImportStatic ImportKind = iota
	ImportExportFrom
	ImportRequire
	ImportDynamic
	ImportReference
)

func (k ImportKind) String() string {
	switch k {
	case ImportStatic:
		return "import"
	case ImportExportFrom:
		return "export-from"
	case ImportRequire:
		return "require"
	case ImportDynamic:
		return "dynamic-import"
	case ImportReference:
		return "reference"
	}
	return "unknown"
}

// ImportRef is one module specifier found in a source file.
type ImportRef struct {
	Specifier string
	Kind      ImportKind
	Line      int
}

// ScanImports lists the module specifiers referenced by src in source order.
// It tokenizes just enough of the language to skip comments, strings,
// template literals and regular expressions; it does not build an AST.
func ScanImports(src string) []ImportRef {
	s := &importScanner{src: src, line: 1, regexOK: true}
	s.scan(-1)
	return s.refs
}

// ScanFile is ScanImports with JSX elements recognized when name has a .tsx
// or .jsx extension.
func ScanFile(name, src string) []ImportRef {
	ext := path.Ext(name)
	s := &importScanner{src: src, line: 1, regexOK: true, jsx: ext == ".tsx" || ext == ".jsx"}
	s.scan(-1)
	return s.refs
}

// keywords after which a '/' starts a regular expression literal
var regexAfterWord = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// keywords whose parenthesized head is followed by a statement, not a value
var parenHeadWord = map[string]bool{"if": true, "while": true, "for": true, "with": true}

type importScanner struct {
	src  string
	pos  int
	line int
	refs []ImportRef

	regexOK  bool
	prev     byte
	lastWord string
	depth    int
	// brace depth at each open template substitution
	templates []int
	// per open paren, whether it is the head of if/while/for/with
	parens []bool
	jsx    bool
}

// scan tokenizes until the input ends or, when stop is not negative, until
// the '}' that brings the brace depth back to stop.
func (s *importScanner) scan(stop int) {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.line++
			s.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			s.pos++
		case c == '/' && s.peek(1) == '/':
			s.lineComment()
		case c == '/' && s.peek(1) == '*':
			s.blockComment()
		case c == '\'' || c == '"':
			s.skipString(c)
			s.mark('"', false)
		case c == '`':
			s.pos++
			s.template()
			s.mark('`', false)
		case c == '/':
			if s.regexOK {
				s.skipRegex()
				s.mark('/', false)
			} else {
				s.pos++
				s.mark('/', true)
			}
		case isDigit(c):
			for s.pos < len(s.src) && (isIdentPart(s.src[s.pos]) || s.src[s.pos] == '.') {
				s.pos++
			}
			s.mark('0', false)
		case isIdentStart(c):
			afterDot := s.prev == '.'
			line := s.line
			word := s.ident()
			s.lastWord = word
			s.mark('a', regexAfterWord[word])
			if !afterDot {
				s.directive(word, line)
			}
		case c == '}' && len(s.templates) > 0 && s.templates[len(s.templates)-1] == s.depth:
			s.templates = s.templates[:len(s.templates)-1]
			s.pos++
			s.template()
			s.mark('`', false)
		case c == '<' && s.jsx && s.regexOK && (isIdentStart(s.peek(1)) || s.peek(1) == '>'):
			s.jsxElement()
			s.mark('a', false)
		default:
			regexOK := c != ')' && c != ']'
			switch c {
			case '{':
				s.depth++
			case '}':
				s.depth--
				if stop >= 0 && s.depth == stop {
					s.pos++
					s.mark('}', true)
					return
				}
			case '(':
				s.parens = append(s.parens, s.prev == 'a' && parenHeadWord[s.lastWord])
			case ')':
				if n := len(s.parens); n > 0 {
					regexOK = s.parens[n-1]
					s.parens = s.parens[:n-1]
				}
			}
			s.pos++
			s.mark(c, regexOK)
		}
	}
}

// jsxElement skips an element starting at '<' together with its children.
// Text between tags is not JavaScript; expressions in braces are scanned.
func (s *importScanner) jsxElement() {
	open := 0
	for s.pos < len(s.src) {
		s.pos++
		closing := s.cur() == '/'
		if closing {
			s.pos++
		}
		selfClosing := s.jsxTag()
		switch {
		case closing:
			open--
		case !selfClosing:
			open++
		}
		if open <= 0 {
			return
		}
		for s.pos < len(s.src) && s.cur() != '<' {
			switch s.cur() {
			case '{':
				s.jsxBraces()
			case '\n':
				s.line++
				s.pos++
			default:
				s.pos++
			}
		}
	}
}

// jsxTag consumes a tag body up to and including its '>' and reports
// whether it ended with "/>".
func (s *importScanner) jsxTag() bool {
	for s.pos < len(s.src) {
		switch c := s.cur(); c {
		case '>':
			s.pos++
			return false
		case '/':
			if s.peek(1) == '>' {
				s.pos += 2
				return true
			}
			s.pos++
		case '"', '\'':
			s.skipString(c)
		case '{':
			s.jsxBraces()
		case '\n':
			s.line++
			s.pos++
		default:
			s.pos++
		}
	}
	return false
}

func (s *importScanner) jsxBraces() {
	stop := s.depth
	s.depth++
	s.pos++
	s.mark('{', true)
	s.scan(stop)
}

func (s *importScanner) mark(prev byte, regexOK bool) {
	s.prev = prev
	s.regexOK = regexOK
}

func (s *importScanner) peek(n int) byte {
	if s.pos+n < len(s.src) {
		return s.src[s.pos+n]
	}
	return 0
}

func (s *importScanner) add(spec string, kind ImportKind, line int) {
	s.refs = append(s.refs, ImportRef{Specifier: spec, Kind: kind, Line: line})
}

func (s *importScanner) lineComment() {
	start := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != '\n' {
		s.pos++
	}
	text := s.src[start:s.pos]
	if strings.HasPrefix(text, "///") {
		if spec, ok := referencePath(text[3:]); ok {
			s.add(spec, ImportReference, s.line)
		}
	}
}

// referencePath extracts x from `<reference path="x" />`.
func referencePath(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "<reference") {
		return "", false
	}
	i := strings.Index(text, "path")
	if i < 0 {
		return "", false
	}
	rest := strings.TrimLeft(text[i+len("path"):], " \t")
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if rest == "" || (rest[0] != '"' && rest[0] != '\'') {
		return "", false
	}
	end := strings.IndexByte(rest[1:], rest[0])
	if end < 0 {
		return "", false
	}
	return rest[1 : end+1], true
}

func (s *importScanner) blockComment() {
	s.pos += 2
	for s.pos < len(s.src) {
		if s.src[s.pos] == '*' && s.peek(1) == '/' {
			s.pos += 2
			return
		}
		if s.src[s.pos] == '\n' {
			s.line++
		}
		s.pos++
	}
}

// skipString consumes a quoted string and returns its raw body.
func (s *importScanner) skipString(quote byte) string {
	s.pos++
	start := s.pos
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch c {
		case '\\':
			if s.peek(1) == '\n' {
				s.line++
			}
			s.pos += 2
			continue
		case '\n':
			// unterminated
			return s.src[start:s.pos]
		case quote:
			body := s.src[start:s.pos]
			s.pos++
			return body
		}
		s.pos++
	}
	return s.src[start:]
}

// template consumes template text up to the closing backtick or the start
// of a ${ substitution, which the main loop then tokenizes.
func (s *importScanner) template() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case '\\':
			if s.peek(1) == '\n' {
				s.line++
			}
			s.pos += 2
			continue
		case '\n':
			s.line++
		case '`':
			s.pos++
			return
		case '$':
			if s.peek(1) == '{' {
				s.pos += 2
				s.templates = append(s.templates, s.depth)
				s.mark('{', true)
				return
			}
		}
		s.pos++
	}
}

func (s *importScanner) skipRegex() {
	s.pos++
	inClass := false
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\':
			s.pos += 2
			continue
		case c == '\n':
			return
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			s.pos++
			return
		}
		s.pos++
	}
}

func (s *importScanner) ident() string {
	start := s.pos
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos]
}

// skipTrivia skips whitespace and comments.
func (s *importScanner) skipTrivia() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.line++
			s.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			s.pos++
		case c == '/' && s.peek(1) == '/':
			s.lineComment()
		case c == '/' && s.peek(1) == '*':
			s.blockComment()
		default:
			return
		}
	}
}

func (s *importScanner) cur() byte {
	if s.pos < len(s.src) {
		return s.src[s.pos]
	}
	return 0
}

func (s *importScanner) peekWord(w string) bool {
	if !strings.HasPrefix(s.src[s.pos:], w) {
		return false
	}
	end := s.pos + len(w)
	return end >= len(s.src) || !isIdentPart(s.src[end])
}

// word consumes the identifier w if it is next.
func (s *importScanner) word(w string) bool {
	if !s.peekWord(w) {
		return false
	}
	s.pos += len(w)
	return true
}

func (s *importScanner) stringLiteral() (string, bool) {
	c := s.cur()
	if c != '"' && c != '\'' {
		return "", false
	}
	return s.skipString(c), true
}

// callArg reads `("spec")` and restores the position when it does not match.
func (s *importScanner) callArg() (string, bool) {
	save, line := s.pos, s.line
	s.skipTrivia()
	if s.cur() != '(' {
		s.pos, s.line = save, line
		return "", false
	}
	s.pos++
	s.skipTrivia()
	spec, ok := s.stringLiteral()
	if ok {
		s.skipTrivia()
		if c := s.cur(); c == ')' || c == ',' {
			s.parens = append(s.parens, false)
			return spec, true
		}
	}
	s.pos, s.line = save, line
	return "", false
}

func (s *importScanner) directive(word string, line int) {
	switch word {
	case "import":
		s.importClause(line)
	case "export":
		s.exportClause(line)
	case "require":
		if spec, ok := s.callArg(); ok {
			s.add(spec, ImportRequire, line)
		}
	}
}

func (s *importScanner) importClause(line int) {
	s.skipTrivia()
	switch c := s.cur(); {
	case c == '(':
		if spec, ok := s.callArg(); ok {
			s.add(spec, ImportDynamic, line)
		}
		return
	case c == '.':
		// import.meta
		return
	case c == '"' || c == '\'':
		spec, _ := s.stringLiteral()
		s.add(spec, ImportStatic, line)
		s.mark('"', false)
		return
	}

	if isIdentStart(s.cur()) {
		binding := s.ident()
		s.skipTrivia()
		if binding == "type" && isIdentStart(s.cur()) && !s.peekWord("from") {
			s.ident()
			s.skipTrivia()
		}
		if s.cur() == '=' {
			// import x = require("spec")
			s.pos++
			s.skipTrivia()
			if s.word("require") {
				if spec, ok := s.callArg(); ok {
					s.add(spec, ImportStatic, line)
				}
			}
			s.mark('=', true)
			return
		}
		if s.cur() == ',' {
			s.pos++
		}
	}
	s.namedClause(ImportStatic, line)
}

func (s *importScanner) exportClause(line int) {
	s.skipTrivia()
	save, saveLine := s.pos, s.line
	if s.word("type") {
		s.skipTrivia()
	}
	if c := s.cur(); c != '*' && c != '{' {
		s.pos, s.line = save, saveLine
		return
	}
	s.namedClause(ImportExportFrom, line)
}

// namedClause reads `* as ns` or `{ a, b as c }` followed by `from "spec"`.
func (s *importScanner) namedClause(kind ImportKind, line int) {
	s.skipTrivia()
	switch s.cur() {
	case '*':
		s.pos++
		s.skipTrivia()
		if s.word("as") {
			s.skipTrivia()
			if isIdentStart(s.cur()) {
				s.ident()
			} else {
				s.stringLiteral()
			}
		}
	case '{':
		s.pos++
		for s.pos < len(s.src) && s.src[s.pos] != '}' {
			switch c := s.src[s.pos]; {
			case c == '\n':
				s.line++
				s.pos++
			case c == '"' || c == '\'':
				s.skipString(c)
			case c == '/' && (s.peek(1) == '/' || s.peek(1) == '*'):
				s.skipTrivia()
			default:
				s.pos++
			}
		}
		s.pos++
	}
	s.skipTrivia()
	if !s.word("from") {
		s.mark('}', true)
		return
	}
	s.skipTrivia()
	if spec, ok := s.stringLiteral(); ok {
		s.add(spec, kind, line)
	}
	s.mark('"', false)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
