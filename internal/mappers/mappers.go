// Package mappers converts between host models and stored entities. Every
// function is pure apart from the grant key hash, and nil maps to nil.
package mappers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexjbarnes/idsrv-docstore/internal/entities"
	errs "github.com/alexjbarnes/idsrv-docstore/internal/errors"
	"github.com/alexjbarnes/idsrv-docstore/internal/models"
)

// HashGrantKey returns the lowercase hex SHA-256 of key.
func HashGrantKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}

// splitList splits a comma joined list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}

// joinList is the inverse of splitList for lists ValidateSigningAlgorithms
// accepts. Other values are trimmed and blanks dropped.
func joinList(items []string) string {
	var kept []string
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}

	return strings.Join(kept, ",")
}

// ValidateSigningAlgorithms reports the first algorithm that would not
// survive being stored as a comma joined list.
func ValidateSigningAlgorithms(algs []string) error {
	for _, alg := range algs {
		if alg == "" || alg != strings.TrimSpace(alg) || strings.Contains(alg, ",") {
			return fmt.Errorf("%w: %q", errs.ErrInvalidSigningAlgorithm, alg)
		}
	}

	return nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}

	return append([]string(nil), in...)
}

// propertiesToMap converts stored properties. Later keys win.
func propertiesToMap(props []entities.Property) map[string]string {
	out := make(map[string]string, len(props))
	for _, p := range props {
		out[p.Key] = p.Value
	}

	return out
}

// propertiesFromMap returns the properties sorted by key so that repeated
// saves of an unchanged model produce identical documents.
func propertiesFromMap(m map[string]string) []entities.Property {
	if len(m) == 0 {
		return nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make([]entities.Property, len(keys))
	for i, k := range keys {
		out[i] = entities.Property{Key: k, Value: m[k]}
	}

	return out
}

func secretsToModel(secrets []entities.Secret) []models.Secret {
	if secrets == nil {
		return nil
	}

	out := make([]models.Secret, len(secrets))
	for i, s := range secrets {
		m := models.NewSecret(s.Value)
		m.Description = s.Description
		m.Expiration = s.Expiration

		if s.Type != "" {
			m.Type = s.Type
		}

		out[i] = m
	}

	return out
}

func secretsToEntity(secrets []models.Secret) []entities.Secret {
	if secrets == nil {
		return nil
	}

	out := make([]entities.Secret, len(secrets))
	for i, s := range secrets {
		e := entities.NewSecret(s.Value)
		e.Description = s.Description
		e.Expiration = s.Expiration

		if s.Type != "" {
			e.Type = s.Type
		}

		out[i] = e
	}

	return out
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
