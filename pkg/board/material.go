package board

// HasInsufficientMaterial returns true iff neither side can possibly deliver
// checkmate: bare kings, a lone minor piece, or same-colored bishops only.
func (p *Position) HasInsufficientMaterial() bool {
	var knights, lightBishops, darkBishops int

	file, rank := 0, 7
	for _, r := range p.fen {
		switch {
		case r == ' ':
			// end of the placement field
			if knights+lightBishops+darkBishops <= 1 {
				return true
			}
			return knights == 0 && (lightBishops == 0 || darkBishops == 0)

		case r == '/':
			file, rank = 0, rank-1

		case r >= '1' && r <= '8':
			file += int(r - '0')

		default:
			switch r {
			case 'n', 'N':
				knights++
			case 'b', 'B':
				if (file+rank)%2 == 0 {
					darkBishops++
				} else {
					lightBishops++
				}
			case 'k', 'K':
				// kings do not count
			default:
				// any pawn, rook or queen is mating material
				return false
			}
			file++
		}
	}
	return false
}
