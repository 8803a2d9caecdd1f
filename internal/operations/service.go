// Package operations hosts the CRUD orchestrators: access checks, payload
// preparation, validation, hook pipelines, versioned persistence and child-row
// reconciliation, in that order. It is the only package that calls the store,
// the transformer and the reconciler together.
package operations

import (
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	"rizom/internal/reconcile"
	"rizom/internal/rizom"
	"rizom/internal/schema"
	"rizom/internal/transform"
)

// Service binds a compiled configuration to its storage and exposes the
// per-type operation surfaces. It is the rizom.API handed to hooks.
type Service struct {
	cfg       *rizom.CompiledConfig
	schema    *schema.Schema
	store     rizom.Store
	trans     *transform.Transformer
	saver     *reconcile.Saver
	logger    rizom.Logger
	clock     rizom.Clock
	idgen     rizom.IDGenerator
	sanitizer *bluemonday.Policy
}

// New builds the operations service. logger, clock and idgen may be nil, in
// which case no-op logging, the real clock and UUID generation apply.
func New(cfg *rizom.CompiledConfig, store rizom.Store, logger rizom.Logger, clock rizom.Clock, idgen rizom.IDGenerator) (*Service, error) {
	if logger == nil {
		logger = rizom.NopLogger{}
	}
	if clock == nil {
		clock = rizom.RealClock{}
	}
	if idgen == nil {
		idgen = rizom.UUIDGenerator{}
	}
	s, err := schema.Build(cfg)
	if err != nil {
		return nil, fmt.Errorf("building schema: %w", err)
	}
	return &Service{
		cfg:       cfg,
		schema:    s,
		store:     store,
		trans:     transform.New(cfg, s, logger),
		saver:     reconcile.NewSaver(store, logger),
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		sanitizer: bluemonday.UGCPolicy(),
	}, nil
}

// Collection returns the operation surface of a collection type. Operations
// on an unknown or non-collection slug fail with ErrOperation.
func (s *Service) Collection(slug string) rizom.CollectionAPI {
	ct := s.cfg.Get(slug)
	if ct != nil && ct.Prototype != rizom.PrototypeCollection {
		ct = nil
	}
	return &collectionOps{svc: s, slug: slug, ct: ct}
}

// Area returns the operation surface of an area type.
func (s *Service) Area(slug string) rizom.AreaAPI {
	ct := s.cfg.Get(slug)
	if ct != nil && ct.Prototype != rizom.PrototypeArea {
		ct = nil
	}
	return &areaOps{svc: s, slug: slug, ct: ct}
}

// Config exposes the compiled configuration for callers wiring tooling.
func (s *Service) Config() *rizom.CompiledConfig { return s.cfg }

// Schema exposes the derived relational schema for migration tooling.
func (s *Service) Schema() *schema.Schema { return s.schema }

func (s *Service) defaultLocale(locale string) string {
	if locale == "" {
		return s.cfg.DefaultLocale
	}
	return locale
}

func unknownType(slug string) error {
	return fmt.Errorf("%w: unknown document type %q", rizom.ErrOperation, slug)
}

var _ rizom.API = (*Service)(nil)
