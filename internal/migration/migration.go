// Package migration imports a configuration snapshot into the
// configuration store.
package migration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexjbarnes/idsrv-docstore/internal/docdb"
	"github.com/alexjbarnes/idsrv-docstore/internal/logging"
	"github.com/alexjbarnes/idsrv-docstore/internal/mappers"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// ConfigurationData is a set of configuration to import.
type ConfigurationData struct {
	APIResources      []*models.APIResource      `yaml:"apiResources"`
	APIScopes         []*models.APIScope         `yaml:"apiScopes"`
	Clients           []*models.Client           `yaml:"clients"`
	IdentityResources []*models.IdentityResource `yaml:"identityResources"`
}

// IsEmpty reports whether there is nothing to import.
func (d *ConfigurationData) IsEmpty() bool {
	return d == nil ||
		len(d.APIResources) == 0 &&
			len(d.APIScopes) == 0 &&
			len(d.Clients) == 0 &&
			len(d.IdentityResources) == 0
}

// Validate rejects values the configuration store cannot hold as given.
func (d *ConfigurationData) Validate() error {
	for _, c := range d.Clients {
		if c == nil {
			continue
		}

		if err := mappers.ValidateSigningAlgorithms(c.AllowedIdentityTokenSigningAlgorithms); err != nil {
			return fmt.Errorf("client %s: %w", c.ClientID, err)
		}
	}

	for _, r := range d.APIResources {
		if r == nil {
			continue
		}

		if err := mappers.ValidateSigningAlgorithms(r.AllowedAccessTokenSigningAlgorithms); err != nil {
			return fmt.Errorf("api resource %s: %w", r.Name, err)
		}
	}

	return nil
}

type snapshot struct {
	APIResources      []yaml.Node `yaml:"apiResources"`
	APIScopes         []yaml.Node `yaml:"apiScopes"`
	Clients           []yaml.Node `yaml:"clients"`
	IdentityResources []yaml.Node `yaml:"identityResources"`
}

// decodeEach decodes every node over a fresh default value, so fields the
// snapshot leaves out keep their defaults.
func decodeEach[T any](section string, nodes []yaml.Node, newT func() *T) ([]*T, error) {
	out := make([]*T, 0, len(nodes))

	for i := range nodes {
		v := newT()
		if err := nodes[i].Decode(v); err != nil {
			return nil, fmt.Errorf("decoding %s[%d] (line %d): %w", section, i, nodes[i].Line, err)
		}

		out = append(out, v)
	}

	return out, nil
}

// LoadSnapshot reads configuration data from a YAML file.
func LoadSnapshot(path string) (*ConfigurationData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap snapshot
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}

	data := &ConfigurationData{}

	if data.APIResources, err = decodeEach("apiResources", snap.APIResources, func() *models.APIResource {
		return models.NewAPIResource("")
	}); err != nil {
		return nil, err
	}

	if data.APIScopes, err = decodeEach("apiScopes", snap.APIScopes, func() *models.APIScope {
		return models.NewAPIScope("")
	}); err != nil {
		return nil, err
	}

	if data.Clients, err = decodeEach("clients", snap.Clients, models.NewClient); err != nil {
		return nil, err
	}

	if data.IdentityResources, err = decodeEach("identityResources", snap.IdentityResources, func() *models.IdentityResource {
		return models.NewIdentityResource("")
	}); err != nil {
		return nil, err
	}

	return data, nil
}

// Run stores every item of data in one session and one commit. It does
// nothing when store is nil or data is empty.
func Run(ctx context.Context, logger *slog.Logger, data *ConfigurationData, store *docdb.DocumentStore) error {
	logger = logging.Discard(logger)

	if store == nil {
		logger.Info("no document store provided, nothing to migrate")
		return nil
	}

	if data.IsEmpty() {
		logger.Info("found no data to migrate")
		return nil
	}

	if err := data.Validate(); err != nil {
		return err
	}

	start := time.Now()

	sess := store.OpenSession()
	defer sess.Close()

	logger.Info("starting data migration", slog.String("database", store.Database()))

	if err := migrate(ctx, logger, sess, "api resources", data.APIResources, func(m *models.APIResource) docdb.Document {
		return mappers.APIResourceToEntity(m)
	}); err != nil {
		return err
	}

	if err := migrate(ctx, logger, sess, "api scopes", data.APIScopes, func(m *models.APIScope) docdb.Document {
		return mappers.APIScopeToEntity(m)
	}); err != nil {
		return err
	}

	if err := migrate(ctx, logger, sess, "clients", data.Clients, func(m *models.Client) docdb.Document {
		return mappers.ClientToEntity(m)
	}); err != nil {
		return err
	}

	if err := migrate(ctx, logger, sess, "identity resources", data.IdentityResources, func(m *models.IdentityResource) docdb.Document {
		return mappers.IdentityResourceToEntity(m)
	}); err != nil {
		return err
	}

	if err := sess.SaveChanges(ctx); err != nil {
		return fmt.Errorf("saving migrated data: %w", err)
	}

	logger.Info("migration completed", slog.Duration("elapsed", time.Since(start)))

	return nil
}

func migrate[M any](ctx context.Context, logger *slog.Logger, sess *docdb.Session, section string, items []*M, toEntity func(*M) docdb.Document) error {
	if len(items) == 0 {
		return nil
	}

	logger.Info("migrating", slog.String("section", section), slog.Int("count", len(items)))

	for _, m := range items {
		if m == nil {
			continue
		}

		if err := sess.Store(ctx, toEntity(m)); err != nil {
			return fmt.Errorf("storing %s: %w", section, err)
		}
	}

	return nil
}
