package journey

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/journeys/internal/model"
	"google.golang.org/grpc/codes"
)

// ErrNotFound is returned when a journey, step or progression record does
// not exist or is not visible to the caller.
var ErrNotFound = errors.New("not found")

// notFound translates a store miss into ErrNotFound, keeping what was looked up.
func notFound(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("getting %s: %w", what, err)
}

// GRPCCode classifies err for an API layer: NotFound for missing records,
// InvalidArgument for validation failures, Internal for everything else.
func GRPCCode(err error) codes.Code {
	var ve *model.ValidationError
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.As(err, &ve):
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}
