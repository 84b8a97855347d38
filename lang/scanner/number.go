package scanner

import "github.com/mna/tether/lang/token"

// scanNumber scans an integer or float literal starting at start. A '.'
// followed by a digit switches it to a float, matching the original
// prototype's lexer (original_source/src/lexer.rs).
func (s *Scanner) scanNumber(start int) token.Token {
	for {
		r, size := s.peekRune()
		if size == 0 || !isDigit(r) {
			break
		}
		s.advance()
	}

	isFloat := false
	if r, _ := s.peekRune(); r == '.' {
		save := s.pos
		s.advance()
		if r2, _ := s.peekRune(); isDigit(r2) {
			isFloat = true
			for {
				r3, size := s.peekRune()
				if size == 0 || !isDigit(r3) {
					break
				}
				s.advance()
			}
		} else {
			// lone '.' after digits (e.g. "2.len"): not part of the number.
			s.pos = save
		}
	}

	lit := s.src[start:s.pos]
	if isFloat {
		return token.Token{Kind: token.FLOAT, Offset: start, Lit: lit}
	}
	return token.Token{Kind: token.INT, Offset: start, Lit: lit}
}
