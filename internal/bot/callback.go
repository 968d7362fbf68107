package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/GTDGit/dealfinder/internal/utils"
)

const navPrefix = "nav"

// Nav is the payload of a "more results" button.
type Nav struct {
	Page      int
	OwnerID   int64
	SessionID string
}

// Encode renders nav as nav:<page>:<owner>:<session>.
func (n Nav) Encode() string {
	return fmt.Sprintf("%s:%d:%d:%s", navPrefix, n.Page, n.OwnerID, n.SessionID)
}

// ParseNav decodes callback data produced by Nav.Encode.
func ParseNav(data string) (Nav, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 4 || parts[0] != navPrefix || parts[3] == "" {
		return Nav{}, utils.ErrInvalidRequest
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil || page < 0 {
		return Nav{}, utils.ErrInvalidPage
	}
	owner, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Nav{}, utils.ErrInvalidRequest
	}
	return Nav{Page: page, OwnerID: owner, SessionID: parts[3]}, nil
}

// ParseActivation strips the first matching activation phrase from text.
// ok is false when no phrase prefixes the text.
func ParseActivation(text string, phrases []string) (query string, ok bool) {
	text = strings.TrimSpace(text)
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(text, p) {
			return strings.TrimSpace(text[len(p):]), true
		}
	}
	return "", false
}
