package scanner

import "github.com/mna/tether/lang/token"

// scanString scans a double-quoted string literal. No escape sequences are
// recognized, matching original_source/src/lexer.rs. STRING tokens are
// produced here but have no runtime representation (§9, open question);
// the compiler rejects them wherever an expression is expected.
func (s *Scanner) scanString(start int) token.Token {
	s.advance() // opening quote
	contentStart := s.pos
	for {
		r, size := s.peekRune()
		if size == 0 {
			// unterminated string: report as illegal, offset at the opening quote
			return token.Token{Kind: token.ILLEGAL, Offset: start, Lit: s.src[contentStart:s.pos]}
		}
		if r == '"' {
			lit := s.src[contentStart:s.pos]
			s.advance() // closing quote
			return token.Token{Kind: token.STRING, Offset: start, Lit: lit}
		}
		s.advance()
	}
}
