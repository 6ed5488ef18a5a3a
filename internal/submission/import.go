package submission

import (
	"context"
	"time"

	"github.com/dukerupert/submitlink/internal/model"
	"github.com/dukerupert/submitlink/internal/store"
)

// ProfileImporter writes accepted items into the person_* profile tables.
type ProfileImporter struct{}

func (ProfileImporter) Import(ctx context.Context, tx store.DBTX, personID, itemID int64, payload model.ItemPayload, now time.Time) (int64, error) {
	return store.NewProfileStore(tx).Import(ctx, personID, itemID, payload, now)
}
