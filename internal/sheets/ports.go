package sheets

import (
	"context"

	"finplan/internal/storage"
)

// Ports for outbound adapters.
type (
	// RecordAppender writes one journal entry as a spreadsheet row and
	// returns the range it landed in.
	RecordAppender interface {
		Append(ctx context.Context, e storage.Entry) (rowRef string, err error)
	}
)
