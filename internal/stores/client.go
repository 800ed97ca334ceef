package stores

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
	"github.com/alexjbarnes/idsrv-docstore/internal/indexes"
	"github.com/alexjbarnes/idsrv-docstore/internal/mappers"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// ClientStore looks clients up by client id.
type ClientStore struct {
	holder *holder.Configuration
	logger *slog.Logger
}

var _ models.ClientStore = (*ClientStore)(nil)

// NewClientStore returns a client store reading through h.
func NewClientStore(h *holder.Configuration) *ClientStore {
	return &ClientStore{holder: h, logger: h.Logger().With(slog.String("store", storeClient))}
}

// FindClientByID returns the client, or nil when none has clientID.
func (s *ClientStore) FindClientByID(ctx context.Context, clientID string) (_ *models.Client, err error) {
	defer observe(s.holder.Metrics(), storeClient, "find_client_by_id", &err)()

	sess := s.holder.OpenSession()
	defer sess.Close()

	e, err := indexQuery[entities.Client](sess, indexes.ClientIndexName, s.holder.NonStaleQueryTimeout()).
		WhereEquals(indexes.FieldClientID, clientID).
		FirstOrDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding client %s: %w", clientID, err)
	}

	model := mappers.ClientToModel(e)

	s.logger.Debug("client lookup",
		slog.String("client_id", clientID),
		slog.Bool("found", model != nil),
	)

	return model, nil
}
