package comply

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a lookup matches nothing, e.g. an
// organization with zero profiles.
var ErrNotFound = errors.New("not found")

// ErrMalformedPayload is returned when a mutation payload does not carry
// the expected edge/node wrapper.
var ErrMalformedPayload = errors.New("malformed mutation payload")

// GraphQLError carries the error list from a GraphQL response envelope.
// Transport succeeded; the backend rejected the operation.
type GraphQLError struct {
	Operation string
	Messages  []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("graphql %s failed: %s", e.Operation, strings.Join(e.Messages, "; "))
}
