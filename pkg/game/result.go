package game

// Result tags how a game ended. The zero value means the game is not over.
// Checkmate, illegal move, time loss and resignation are losses for the side
// to move at termination; the remaining tags are draws.
type Result int

const (
	ResultNone Result = iota
	ResultCheckmate
	ResultStalemate
	ResultThreefold
	ResultFiftyMoves
	ResultInsufficientMaterial
	ResultIllegalMove
	ResultTimeLoss
	ResultDrawAdjudication
	ResultResign
)

func (r Result) String() string {
	switch r {
	case ResultNone:
		return "none"
	case ResultCheckmate:
		return "checkmate"
	case ResultStalemate:
		return "stalemate"
	case ResultThreefold:
		return "threefold"
	case ResultFiftyMoves:
		return "fifty moves"
	case ResultInsufficientMaterial:
		return "insufficient material"
	case ResultIllegalMove:
		return "illegal move"
	case ResultTimeLoss:
		return "time loss"
	case ResultDrawAdjudication:
		return "draw adjudication"
	case ResultResign:
		return "resign"
	default:
		return "invalid"
	}
}
