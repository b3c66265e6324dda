package botguard

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// CriteriaProvider guards the active detection criteria and optionally
// reloads them when the backing file changes. A failed reload keeps the last
// good criteria.
type CriteriaProvider struct {
	mu        sync.RWMutex
	criteria  DetectionCriteria
	path      string
	validator CriteriaValidator
	logger    *logrus.Logger
}

func NewCriteriaProvider(criteria DetectionCriteria, logger *logrus.Logger) *CriteriaProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &CriteriaProvider{
		criteria:  criteria,
		validator: NewDefaultCriteriaValidator(),
		logger:    logger,
	}
}

// NewCriteriaProviderFromFile loads criteria from path and remembers it for
// later reloads.
func NewCriteriaProviderFromFile(path string, logger *logrus.Logger) (*CriteriaProvider, error) {
	validator := NewDefaultCriteriaValidator()
	criteria, err := LoadCriteria(path, validator)
	if err != nil {
		return nil, err
	}
	provider := NewCriteriaProvider(*criteria, logger)
	provider.path = path
	provider.validator = validator
	return provider, nil
}

func (p *CriteriaProvider) Current() DetectionCriteria {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.criteria
}

func (p *CriteriaProvider) Set(criteria DetectionCriteria) {
	p.mu.Lock()
	p.criteria = criteria
	p.mu.Unlock()
}

// Reload re-reads the backing file. No-op when the provider was built from
// an in-memory criteria set.
func (p *CriteriaProvider) Reload() error {
	if p.path == "" {
		return nil
	}
	criteria, err := LoadCriteria(p.path, p.validator)
	if err != nil {
		return err
	}
	p.Set(*criteria)
	return nil
}

// Watch reloads the criteria whenever the backing file is rewritten, until
// the context is cancelled.
func (p *CriteriaProvider) Watch(ctx context.Context) error {
	if p.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors replace files instead of writing in place.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(p.path)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := p.Reload(); err != nil {
					p.logger.WithError(err).WithField("path", p.path).
						Warn("criteria reload failed, keeping previous configuration")
					continue
				}
				p.logger.WithField("path", p.path).Info("criteria reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.WithError(err).Warn("criteria watcher error")
			}
		}
	}()
	return nil
}
