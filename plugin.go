package moodlog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rbaliyan/moodlog/store"
)

// Plugin defines the interface for journal extensions.
// For observing mutations without influencing them, subscribe to
// Service.Events() instead.
type Plugin interface {
	// Name returns the plugin identifier.
	Name() string
	// Init is called when the service connects.
	Init(ctx context.Context) error
	// Close is called when the service closes.
	Close(ctx context.Context) error
}

// RecordHook runs around record mutations, under the user's write lock.
type RecordHook interface {
	Plugin
	// BeforeAdd is called after validation and before the record is stored.
	// Return an error to reject the record.
	BeforeAdd(ctx context.Context, userID string, data store.RecordData) error
	// AfterAdd is called once the record and its bucket are stored.
	// An error is reported to the caller but the record stays.
	AfterAdd(ctx context.Context, userID string, rec store.Record) error
	// AfterDelete is called once the record is gone and its bucket decremented.
	AfterDelete(ctx context.Context, userID string, rec store.Record) error
}

type pluginRegistry struct {
	all    []Plugin
	record []RecordHook
	logger *slog.Logger
}

func newPluginRegistry(logger *slog.Logger) *pluginRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &pluginRegistry{logger: logger}
}

func (r *pluginRegistry) register(p Plugin) {
	r.all = append(r.all, p)
	if h, ok := p.(RecordHook); ok {
		r.record = append(r.record, h)
	}
}

// initAll initializes plugins in order, closing the already initialized
// ones in reverse if any fails.
func (r *pluginRegistry) initAll(ctx context.Context) error {
	for i, p := range r.all {
		if err := p.Init(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				if closeErr := r.all[j].Close(ctx); closeErr != nil {
					r.logger.Error("failed to close plugin during init rollback",
						"plugin", r.all[j].Name(), "error", closeErr)
				}
			}
			return &PluginError{Plugin: p.Name(), Op: "init", Err: err}
		}
	}
	return nil
}

// closeAll closes plugins in reverse order.
func (r *pluginRegistry) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(r.all) - 1; i >= 0; i-- {
		if err := r.all[i].Close(ctx); err != nil {
			errs = append(errs, &PluginError{Plugin: r.all[i].Name(), Op: "close", Err: err})
		}
	}
	return errors.Join(errs...)
}

// PluginError wraps an error returned by a plugin.
type PluginError struct {
	Plugin string
	Op     string
	Err    error
}

func (e *PluginError) Error() string {
	return "plugin " + e.Plugin + " " + e.Op + ": " + e.Err.Error()
}

func (e *PluginError) Unwrap() error {
	return e.Err
}

func (r *pluginRegistry) beforeAdd(ctx context.Context, userID string, data store.RecordData) error {
	for _, h := range r.record {
		if err := h.BeforeAdd(ctx, userID, data); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "BeforeAdd", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterAdd(ctx context.Context, userID string, rec store.Record) error {
	for _, h := range r.record {
		if err := h.AfterAdd(ctx, userID, rec); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "AfterAdd", Err: err}
		}
	}
	return nil
}

func (r *pluginRegistry) afterDelete(ctx context.Context, userID string, rec store.Record) error {
	for _, h := range r.record {
		if err := h.AfterDelete(ctx, userID, rec); err != nil {
			return &PluginError{Plugin: h.Name(), Op: "AfterDelete", Err: err}
		}
	}
	return nil
}
