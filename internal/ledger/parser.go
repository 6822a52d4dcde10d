package ledger

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kwitt-bot/kwitt/internal/domain"
)

var (
	ErrBadSyntax   = errors.New("expected: <amount> @<username> [description]")
	ErrBadUsername = errors.New("target must be given as @username")
)

// TransferArgs is the parsed argument text of /send and /request.
type TransferArgs struct {
	Amount         decimal.Decimal
	TargetUsername string
	Description    string
}

// ParseTransferArgs parses "<amount> @<username> [description]". The
// description is everything after the username, whitespace-trimmed.
func ParseTransferArgs(text string) (TransferArgs, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return TransferArgs{}, ErrBadSyntax
	}

	amount, err := domain.ParseAmount(fields[0])
	if err != nil {
		return TransferArgs{}, err
	}

	target := fields[1]
	if !strings.HasPrefix(target, "@") || len(target) < 2 {
		return TransferArgs{}, ErrBadUsername
	}

	return TransferArgs{
		Amount:         amount,
		TargetUsername: target[1:],
		Description:    strings.Join(fields[2:], " "),
	}, nil
}
