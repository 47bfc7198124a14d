package sdk

import "github.com/planpilot/planpilot-go/credstore"

// User is the identity snapshot cached alongside the tokens.
type User = credstore.User
