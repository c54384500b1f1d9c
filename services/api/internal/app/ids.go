package app

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	teamTicketPrefix    = "PAN"
	concertTicketPrefix = "CON"
	inviteCodePrefix    = "INV"
)

const (
	codeLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeDigits  = "0123456789"
)

// newTicketCode returns a pass code like PAN-AAA111: three letters then three
// digits, easy to read out at a gate.
func newTicketCode(prefix string) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteByte('-')
	for i := 0; i < 3; i++ {
		b.WriteByte(pick(codeLetters))
	}
	for i := 0; i < 3; i++ {
		b.WriteByte(pick(codeDigits))
	}
	return b.String()
}

func newInviteCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return inviteCodePrefix + "-" + strings.ToUpper(id[:10])
}

func pick(alphabet string) byte {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return alphabet[0]
	}
	return alphabet[n.Int64()]
}
