package revision

import (
	"fmt"
	"strings"
)

// Split breaks sql text into single statements on ';' terminators. Terminators inside
// string literals, quoted identifiers, comments and dollar-quoted bodies are not
// boundaries, and neither are terminators inside the BEGIN ... END body of a CREATE
// statement (triggers, functions and procedures). Fragments holding nothing but
// whitespace and comments are dropped and the terminator itself is not part of the
// returned statements.
func Split(sql string) ([]string, error) {
	sc := splitter{src: sql}
	return sc.run()
}

type splitter struct {
	src   string
	pos   int
	start int

	// significant is set once the current fragment holds something besides
	// whitespace and comments.
	significant bool

	// compound is set when the current fragment starts with CREATE. depth counts
	// the BEGIN ... END and CASE ... END blocks open inside it.
	compound bool
	depth    int

	stmts []string
}

func (sc *splitter) run() ([]string, error) { //nolint:cyclop
	for sc.pos < len(sc.src) {
		c := sc.src[sc.pos]

		switch {
		case c == ';' && sc.depth > 0:
			sc.pos++

		case c == ';':
			sc.emit(sc.pos)
			sc.pos++
			sc.start = sc.pos

		case c == '\'' || c == '"' || c == '`':
			if err := sc.skipQuoted(c); err != nil {
				return nil, err
			}

		case c == '-' && sc.peek(1) == '-':
			sc.skipLineComment()

		case c == '/' && sc.peek(1) == '*':
			if err := sc.skipBlockComment(); err != nil {
				return nil, err
			}

		case c == '$':
			if err := sc.skipDollar(); err != nil {
				return nil, err
			}

		case isIdent(c) && (sc.pos == 0 || !isIdent(sc.src[sc.pos-1])):
			sc.word()

		default:
			if !isSpace(c) {
				sc.significant = true
			}
			sc.pos++
		}
	}

	sc.emit(len(sc.src))

	return sc.stmts, nil
}

func (sc *splitter) emit(end int) {
	if sc.significant {
		sc.stmts = append(sc.stmts, strings.TrimSpace(sc.src[sc.start:end]))
	}
	sc.significant = false
	sc.compound = false
	sc.depth = 0
}

// word consumes an identifier or keyword and tracks block nesting of compound
// statements.
func (sc *splitter) word() {
	begin := sc.pos
	for sc.pos < len(sc.src) && isIdent(sc.src[sc.pos]) {
		sc.pos++
	}
	keyword := strings.ToUpper(sc.src[begin:sc.pos])

	if !sc.significant {
		sc.significant = true
		sc.compound = keyword == "CREATE"
		return
	}

	if !sc.compound {
		return
	}

	switch keyword {
	case "BEGIN", "CASE":
		sc.depth++
	case "END":
		// END IF, END LOOP, END WHILE and END REPEAT close blocks that are never
		// counted; END CASE closes a counted CASE.
		next, end := sc.nextWord()
		switch next {
		case "IF", "LOOP", "WHILE", "REPEAT":
			sc.pos = end
			return
		case "CASE":
			sc.pos = end
		}
		if sc.depth > 0 {
			sc.depth--
		}
	}
}

// nextWord returns the keyword following the current position, skipping blanks,
// and the offset right after it.
func (sc *splitter) nextWord() (string, int) {
	i := sc.pos
	for i < len(sc.src) && isSpace(sc.src[i]) {
		i++
	}

	begin := i
	for i < len(sc.src) && isIdent(sc.src[i]) {
		i++
	}

	return strings.ToUpper(sc.src[begin:i]), i
}

func (sc *splitter) peek(offset int) byte {
	if sc.pos+offset >= len(sc.src) {
		return 0
	}
	return sc.src[sc.pos+offset]
}

// skipQuoted consumes a quoted literal or identifier. A doubled quote character is
// an escaped quote; for single quotes a backslash escape is accepted too.
func (sc *splitter) skipQuoted(quote byte) error {
	begin := sc.pos
	sc.significant = true
	sc.pos++

	for sc.pos < len(sc.src) {
		c := sc.src[sc.pos]

		switch {
		case c == '\\' && quote == '\'':
			sc.pos += 2
		case c == quote && sc.peek(1) == quote:
			sc.pos += 2
		case c == quote:
			sc.pos++
			return nil
		default:
			sc.pos++
		}
	}

	return fmt.Errorf("%w: quoted text starting at offset %d is not closed", ErrUnterminated, begin)
}

func (sc *splitter) skipLineComment() {
	end := strings.IndexByte(sc.src[sc.pos:], '\n')
	if end < 0 {
		sc.pos = len(sc.src)
		return
	}
	sc.pos += end + 1
}

func (sc *splitter) skipBlockComment() error {
	end := strings.Index(sc.src[sc.pos+2:], "*/")
	if end < 0 {
		return fmt.Errorf("%w: block comment starting at offset %d is not closed", ErrUnterminated, sc.pos)
	}
	sc.pos += 2 + end + 2
	return nil
}

// skipDollar consumes a PostgreSQL dollar-quoted body ($$...$$ or $tag$...$tag$).
// A '$' that does not open such a body ($1 placeholders, identifiers) is ordinary text.
func (sc *splitter) skipDollar() error {
	sc.significant = true

	tag, ok := sc.dollarTag()
	if !ok {
		sc.pos++
		return nil
	}

	begin := sc.pos
	body := sc.pos + len(tag)

	end := strings.Index(sc.src[body:], tag)
	if end < 0 {
		return fmt.Errorf("%w: dollar-quoted text starting at offset %d is not closed", ErrUnterminated, begin)
	}

	sc.pos = body + end + len(tag)
	return nil
}

func (sc *splitter) dollarTag() (string, bool) {
	// a '$' glued to an identifier is part of that identifier
	if sc.pos > 0 && isIdent(sc.src[sc.pos-1]) {
		return "", false
	}

	for i := sc.pos + 1; i < len(sc.src); i++ {
		c := sc.src[i]
		switch {
		case c == '$':
			return sc.src[sc.pos : i+1], true
		case isIdent(c) && !(i == sc.pos+1 && isDigit(c)):
			continue
		default:
			return "", false
		}
	}

	return "", false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdent(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
