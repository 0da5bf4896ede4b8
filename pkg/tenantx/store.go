package tenantx

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/klubhub/klubhub/pkg/fsx"
	"github.com/klubhub/klubhub/pkg/logx"
)

// Store persists tenant configuration documents in the object store, one
// JSON file per tenant named <subdomain>.json.
type Store struct {
	fs  fsx.FileSystem
	dir string
}

// NewStore creates a tenant store rooted at dir.
func NewStore(fs fsx.FileSystem, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

func (s *Store) path(subdomain string) string {
	return s.fs.Join(s.dir, subdomain+".json")
}

// Get loads a tenant config by subdomain.
func (s *Store) Get(ctx context.Context, subdomain string) (*Config, error) {
	ok, err := s.fs.Exists(ctx, s.path(subdomain))
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeStoreFailure, err)
	}
	if !ok {
		return nil, ErrTenantNotFound()
	}

	data, err := s.fs.ReadFile(ctx, s.path(subdomain))
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeStoreFailure, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, ErrRegistry.NewWithCause(CodeStoreFailure, err).
			WithDetail("subdomain", subdomain)
	}
	return &cfg, nil
}

// Put writes a tenant config. The file name follows cfg.Subdomain.
func (s *Store) Put(ctx context.Context, cfg Config) error {
	if cfg.Subdomain == "" {
		return ErrInvalidSubdomain("subdomain is required")
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return ErrRegistry.NewWithCause(CodeStoreFailure, err)
	}
	if err := s.fs.WriteFile(ctx, s.path(cfg.Subdomain), data); err != nil {
		return ErrRegistry.NewWithCause(CodeStoreFailure, err)
	}
	return nil
}

// Delete removes a tenant config. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, subdomain string) error {
	if err := s.fs.DeleteFile(ctx, s.path(subdomain)); err != nil {
		return ErrRegistry.NewWithCause(CodeStoreFailure, err)
	}
	return nil
}

// List loads every tenant config in the store. Files that fail to parse are
// logged and skipped rather than failing the whole listing.
func (s *Store) List(ctx context.Context) ([]Config, error) {
	infos, err := s.fs.List(ctx, s.dir)
	if err != nil {
		return nil, ErrRegistry.NewWithCause(CodeStoreFailure, err)
	}

	configs := make([]Config, 0, len(infos))
	for _, info := range infos {
		if info.IsDir || !strings.HasSuffix(info.Name, ".json") {
			continue
		}
		subdomain := strings.TrimSuffix(info.Name, ".json")
		cfg, err := s.Get(ctx, subdomain)
		if err != nil {
			logx.WithError(err).Warnf("tenantx: skipping unreadable config %q", info.Name)
			continue
		}
		configs = append(configs, *cfg)
	}
	return configs, nil
}

// Available reports whether a subdomain can still be claimed. It checks both
// the file names and the subdomain field inside each config, since a config
// may declare a subdomain that differs from its file name.
func (s *Store) Available(ctx context.Context, subdomain string) (bool, error) {
	ok, err := s.fs.Exists(ctx, s.path(subdomain))
	if err != nil {
		return false, ErrRegistry.NewWithCause(CodeStoreFailure, err)
	}
	if ok {
		return false, nil
	}

	configs, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	for _, cfg := range configs {
		if cfg.Subdomain == subdomain {
			return false, nil
		}
	}
	return true, nil
}
