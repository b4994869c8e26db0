package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/tenantgate/pkg/observability"
)

// Directory resolves organization and profile display names for grant views.
// Names are cached for a short TTL. The cache is never consulted for
// authorization decisions.
type Directory struct {
	db      *sql.DB
	cache   *lru.LRU[string, string]
	metrics *observability.Metrics
}

// DirectoryConfig sizes the name cache
type DirectoryConfig struct {
	Size int
	TTL  time.Duration
}

// DefaultDirectoryConfig returns a small cache with a one minute TTL
func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{Size: 1024, TTL: time.Minute}
}

// NewDirectory creates a Directory reading names from db
func NewDirectory(db *sql.DB, cfg DirectoryConfig, metrics *observability.Metrics) *Directory {
	if cfg.Size <= 0 {
		cfg.Size = DefaultDirectoryConfig().Size
	}
	return &Directory{
		db:      db,
		cache:   lru.NewLRU[string, string](cfg.Size, nil, cfg.TTL),
		metrics: metrics,
	}
}

// OrganizationName returns the name of an organization, or "" if it does not exist
func (d *Directory) OrganizationName(ctx context.Context, id int64) (string, error) {
	return d.lookup(ctx, "organization", `SELECT name FROM organizations WHERE id = $1`, id)
}

// ProfileName returns the name of a profile, or "" if it does not exist
func (d *Directory) ProfileName(ctx context.Context, id int64) (string, error) {
	return d.lookup(ctx, "profile", `SELECT name FROM profiles WHERE id = $1`, id)
}

// Forget drops cached names, for example after a rename
func (d *Directory) Forget() {
	d.cache.Purge()
}

func (d *Directory) lookup(ctx context.Context, kind, query string, id int64) (string, error) {
	key := fmt.Sprintf("%s:%d", kind, id)
	if name, ok := d.cache.Get(key); ok {
		d.metrics.ObserveDirectoryLookup(true)
		return name, nil
	}
	d.metrics.ObserveDirectoryLookup(false)

	var name string
	err := d.db.QueryRowContext(ctx, query, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up %s name: %w", kind, err)
	}
	d.cache.Add(key, name)
	return name, nil
}

// view enriches a grant with display names
func (d *Directory) view(ctx context.Context, g *Grant) (*GrantView, error) {
	orgName, err := d.OrganizationName(ctx, g.OrganizationID)
	if err != nil {
		return nil, err
	}
	profileName, err := d.ProfileName(ctx, g.ProfileID)
	if err != nil {
		return nil, err
	}
	grantorName, err := d.ProfileName(ctx, g.GrantedByProfileID)
	if err != nil {
		return nil, err
	}
	return &GrantView{
		Grant:        *g,
		Organization: NamedRef{ID: g.OrganizationID, Name: orgName},
		Profile:      NamedRef{ID: g.ProfileID, Name: profileName},
		GrantedBy:    NamedRef{ID: g.GrantedByProfileID, Name: grantorName},
	}, nil
}

func (d *Directory) views(ctx context.Context, grants []*Grant) ([]*GrantView, error) {
	out := make([]*GrantView, 0, len(grants))
	for _, g := range grants {
		v, err := d.view(ctx, g)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
