package stores

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
	"github.com/alexjbarnes/idsrv-docstore/internal/holder"
	"github.com/alexjbarnes/idsrv-docstore/internal/indexes"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// CorsPolicyService allows an origin when any client lists it. The
// comparison ignores case.
type CorsPolicyService struct {
	holder *holder.Configuration
	logger *slog.Logger
}

var _ models.CorsPolicyService = (*CorsPolicyService)(nil)

// NewCorsPolicyService returns a CORS policy service reading through h.
func NewCorsPolicyService(h *holder.Configuration) *CorsPolicyService {
	return &CorsPolicyService{holder: h, logger: h.Logger().With(slog.String("store", storeCors))}
}

func (s *CorsPolicyService) IsOriginAllowed(ctx context.Context, origin string) (_ bool, err error) {
	defer observe(s.holder.Metrics(), storeCors, "is_origin_allowed", &err)()

	sess := s.holder.OpenSession()
	defer sess.Close()

	allowed, err := indexQuery[entities.Client](sess, indexes.ClientIndexName, s.holder.NonStaleQueryTimeout()).
		ContainsAny(indexes.FieldAllowedCorsOrigins, []string{origin}).
		Any(ctx)
	if err != nil {
		return false, fmt.Errorf("checking origin %s: %w", origin, err)
	}

	s.logger.Debug("origin checked",
		slog.String("origin", origin),
		slog.Bool("allowed", allowed),
	)

	return allowed, nil
}
