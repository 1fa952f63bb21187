package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/textindex/internal/api/middleware"
	"github.com/kiranshivaraju/textindex/internal/store"
	"github.com/kiranshivaraju/textindex/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const bootstrapKeyName = "bootstrap-admin"

// ensureBootstrapKey seeds rawKey as an admin key of the default tenant. It
// does nothing when the key is already stored, so it is safe on every start.
func ensureBootstrapKey(ctx context.Context, s store.Store, rawKey string) error {
	tenant, err := s.GetDefaultTenant(ctx)
	if err != nil {
		return fmt.Errorf("get default tenant: %w", err)
	}

	prefix := rawKey[:mw.KeyPrefixLen]
	existing, err := s.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("look up bootstrap key: %w", err)
	}
	for _, k := range existing {
		if k.TenantID == tenant.ID && bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(rawKey)) == nil {
			slog.Info("bootstrap admin key present", "key_prefix", prefix)
			return nil
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash bootstrap key: %w", err)
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:        uuid.New(),
		TenantID:  tenant.ID,
		Name:      bootstrapKeyName,
		KeyHash:   string(hash),
		KeyPrefix: prefix,
		Scopes:    []string{mw.ScopeAdmin},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// A different key already holds the name. Revoke it to rotate.
			slog.Warn("bootstrap admin key not seeded, name already in use", "name", bootstrapKeyName)
			return nil
		}
		return fmt.Errorf("create bootstrap key: %w", err)
	}

	slog.Info("bootstrap admin key created", "key_id", key.ID, "key_prefix", prefix, "tenant_id", tenant.ID)
	return nil
}
