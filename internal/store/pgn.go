package store

import (
	"fmt"
	"strings"
	"time"
)

// ResultToken maps a winner color ("white", "black", "" for draw) to the PGN result.
func ResultToken(winner string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "", "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders the archived game as PGN with numbered SAN moves.
func BuildPGN(res Result) string {
	var b strings.Builder
	date := res.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	token := ResultToken(res.Winner)

	b.WriteString("[Event \"Chess Room\"]\n")
	b.WriteString(fmt.Sprintf("[Site \"%s\"]\n", sanitizePGN(res.RoomID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString(fmt.Sprintf("[White \"%s\"]\n", orUnknown(sanitizePGN(res.WhiteName))))
	b.WriteString(fmt.Sprintf("[Black \"%s\"]\n", orUnknown(sanitizePGN(res.BlackName))))
	if r := strings.TrimSpace(res.Reason); r != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(r))))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", token))

	for i := 0; i < len(res.MovesSAN); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, strings.TrimSpace(res.MovesSAN[i])))
		if i+1 < len(res.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(res.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(token)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
