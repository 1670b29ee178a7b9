// Package config loads the two user-facing configuration surfaces: the ini
// profile registry of record-source connections and the engine settings
// file.
package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/accountex-org/ash-reports-sub007/pkg/models/domain"
	"github.com/accountex-org/ash-reports-sub007/pkg/models/store"
	"github.com/accountex-org/ash-reports-sub007/pkg/store/records"
	sqlsource "github.com/accountex-org/ash-reports-sub007/pkg/store/sql"
	"gopkg.in/ini.v1"

	// Registered so "sqlite" profiles work out of the box; other drivers
	// are the caller's to register.
	_ "modernc.org/sqlite"
)

// Registry resolves named source profiles from the user's profile file
// (default ~/.ashreportscfg). Each section carries a driver and a DSN:
//
//	[sales]
//	driver = sqlite
//	dsn    = /var/lib/ash/sales.db
type Registry interface {
	GetProfiles(ctx context.Context) ([]domain.SourceProfile, error)
	// OpenSource opens the profile's database and streams the query rows
	// as records. The caller owns the query's sort order.
	OpenSource(ctx context.Context, profile string, query string, args ...any) (records.Source, error)
}

type cfgRegistry struct {
	cfg *ini.File
}

func NewRegistry(path string) (Registry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return &cfgRegistry{cfg: cfg}, nil
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]domain.SourceProfile, error) {
	var profiles []domain.SourceProfile
	for _, section := range cr.cfg.Sections() {
		if len(section.Keys()) == 0 {
			continue
		}
		profiles = append(profiles, domain.SourceProfile{
			Name:   section.Name(),
			Driver: section.Key("driver").String(),
		})
	}
	return profiles, nil
}

func (cr *cfgRegistry) OpenSource(ctx context.Context, profile string, query string, args ...any) (records.Source, error) {
	settings, err := cr.settings(profile)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(settings.Driver, settings.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile %q: %w", profile, err)
	}
	src, err := sqlsource.NewSource(ctx, db, query, args...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &dbSource{Source: src, db: db}, nil
}

func (cr *cfgRegistry) settings(profile string) (store.SourceSettings, error) {
	if !cr.cfg.HasSection(profile) {
		return store.SourceSettings{}, fmt.Errorf("profile %s not found", profile)
	}
	section := cr.cfg.Section(profile)
	settings := store.SourceSettings{
		Driver: section.Key("driver").String(),
		DSN:    section.Key("dsn").String(),
	}
	if settings.Driver == "" || settings.DSN == "" {
		return store.SourceSettings{}, fmt.Errorf("profile %s needs both driver and dsn", profile)
	}
	return settings, nil
}

// dbSource closes the owned database handle together with the rows.
type dbSource struct {
	*sqlsource.Source
	db *sql.DB
}

func (s *dbSource) Close() error {
	err := s.Source.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}
