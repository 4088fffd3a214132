/*
Package token encodes and decodes identity tokens for QR-based login.

PURPOSE:
  A token is the payload printed inside a student or stall entry pass:
  a JSON object with exactly two fields, id and role. Scanning a pass
  and presenting the payload is the whole authentication story.

TRUST MODEL:
  There is no signature, checksum, or expiry. The token is a bare
  identity claim trusted by physical possession of the printed pass.
  This is an accepted weakness of the product, kept deliberately -
  adding cryptographic signing would change the system's contract.

ADMIN:
  Admin tokens are never produced and never accepted. The admin logs
  in by credential only.

SEE ALSO:
  - pass.go: QR PNG rendering for printable passes
  - ledger/service.go: Consumes Codec via the TokenDecoder interface
*/
package token

import (
	"encoding/json"
	"fmt"

	"github.com/festpay/wallet-engine/ledger"
)

// Claim is the wire shape of an identity token.
type Claim struct {
	ID   string      `json:"id"`
	Role ledger.Role `json:"role"`
}

// Codec implements ledger.TokenDecoder.
type Codec struct{}

// Encode produces the token payload for a student or stall. Admin
// claims are refused.
func (Codec) Encode(id string, role ledger.Role) (string, error) {
	if role != ledger.RoleStudent && role != ledger.RoleStall {
		return "", fmt.Errorf("%w: role %q cannot be tokenized", ledger.ErrMalformedToken, role)
	}
	raw, err := json.Marshal(Claim{ID: id, Role: role})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Decode parses a scanned payload. Returns ErrMalformedToken if the
// payload is not a JSON object with both fields, or if the role is
// anything other than student or stall.
func (Codec) Decode(payload string) (string, ledger.Role, error) {
	var claim Claim
	if err := json.Unmarshal([]byte(payload), &claim); err != nil {
		return "", "", fmt.Errorf("%w: %v", ledger.ErrMalformedToken, err)
	}
	if claim.ID == "" || claim.Role == "" {
		return "", "", fmt.Errorf("%w: missing id or role", ledger.ErrMalformedToken)
	}
	if claim.Role != ledger.RoleStudent && claim.Role != ledger.RoleStall {
		return "", "", fmt.Errorf("%w: role %q not accepted", ledger.ErrMalformedToken, claim.Role)
	}
	return claim.ID, claim.Role, nil
}
