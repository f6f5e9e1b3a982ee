package pwd

// DefaultScheme is the scheme id used for newly hashed passwords.
const DefaultScheme = "01"

// Scheme hashes a password into a scheme-specific payload and validates a
// password against such a payload. Implementations must stay stable
// forever: adding a scheme means adding a new id, never changing an
// existing one.
type Scheme interface {
	Hash(pwd, salt string) (string, error)
	Validate(payload, pwd, salt string) (bool, error)
}

// GetScheme resolves a scheme id to its handler.
func GetScheme(id string) (Scheme, error) {
	switch id {
	case "01":
		return scheme01{}, nil
	default:
		return nil, &UnknownSchemeError{Scheme: id}
	}
}
