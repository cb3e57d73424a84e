package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Skufu/symptomchecker/internal/catalog"
	"github.com/Skufu/symptomchecker/internal/checker"
	"github.com/Skufu/symptomchecker/internal/config"
	"github.com/Skufu/symptomchecker/internal/history"
	"github.com/Skufu/symptomchecker/internal/labels"
	"github.com/Skufu/symptomchecker/internal/oracle"
	"github.com/Skufu/symptomchecker/internal/schema"
)

// app is the process-wide state built once at startup.
type app struct {
	checker *checker.Checker
	oracle  oracle.Oracle
	store   history.Store
}

func openApp(ctx context.Context, cfg *config.Config, log *zap.Logger, withHistory bool) (*app, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, err
	}

	o, err := oracle.Open(cfg.OracleOptions())
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.ModelPath, err)
	}
	a := &app{oracle: o}

	s, source, err := schema.Resolve(o.Features(), cat.Features, schema.ResolveOptions{
		Strict: cfg.StrictSchema,
		Logger: log,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("resolve feature schema: %w", err)
	}

	deps := checker.Deps{
		Schema:       s,
		SchemaSource: source,
		Labels:       labels.New(cat.Labels),
		Oracle:       o,
		Logger:       log,
	}
	if withHistory && cfg.EnableDB {
		a.store, err = history.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		deps.Recorder = a.store
	}

	a.checker, err = checker.New(deps)
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Info("model loaded",
		zap.String("path", cfg.ModelPath),
		zap.Int("features", s.Len()),
		zap.String("schema_source", string(source)),
		zap.Bool("history", a.store != nil))
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.oracle != nil {
		errs = append(errs, a.oracle.Close())
	}
	return errors.Join(errs...)
}
