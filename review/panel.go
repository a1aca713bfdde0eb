package review

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Kind describes how one record kind is reviewed: which actions its rows
// offer, how a successful update touches the displayed list, and how its
// notifications read.
type Kind struct {
	// Name is the stable identifier used in URLs and logs, e.g. "transactions".
	Name string
	// Label prefixes success notifications, e.g. "Transaction Approved".
	Label string
	// FailurePrefix prefixes transport failure notifications.
	FailurePrefix string
	Columns       []Column
	Annotator     Annotator
	Strategy      Strategy
}

func (k Kind) validate() error {
	if k.Name == "" {
		return fmt.Errorf("review: kind name required")
	}
	if k.Annotator == nil {
		return fmt.Errorf("review: kind %s has no annotator", k.Name)
	}
	switch k.Strategy {
	case OptimisticRemoveOnSuccess, RefreshOnlyOnSuccess:
	default:
		return fmt.Errorf("review: kind %s has invalid strategy %s", k.Name, k.Strategy)
	}
	return nil
}

// View is what the rendering layer shows for a panel: either rows or an
// error in place of the table.
type View struct {
	Kind    string
	Columns []Column
	Rows    []Row
	Err     error
	Version uint64
	Loaded  bool
}

// Panel binds one record kind to its gateway: a Binding holding the
// snapshot and a Dispatcher handling row actions.
type Panel struct {
	kind       Kind
	binding    *Binding
	dispatcher *Dispatcher
}

// NewPanel assembles a panel for kind.
func NewPanel(kind Kind, gateway Gateway, notifier Notifier, logger *slog.Logger) (*Panel, error) {
	if err := kind.validate(); err != nil {
		return nil, err
	}
	if gateway == nil {
		return nil, fmt.Errorf("review: kind %s has no gateway", kind.Name)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("kind", kind.Name)
	binding := NewBinding(gateway).WithLogger(logger)
	return &Panel{
		kind:       kind,
		binding:    binding,
		dispatcher: NewDispatcher(kind, gateway, binding, notifier).WithLogger(logger),
	}, nil
}

func (p *Panel) Kind() Kind              { return p.kind }
func (p *Panel) Binding() *Binding       { return p.binding }
func (p *Panel) Dispatcher() *Dispatcher { return p.dispatcher }

// Start performs the initial subscription. onSnapshot may be nil.
func (p *Panel) Start(ctx context.Context, onSnapshot func(Snapshot)) (stop func()) {
	return p.binding.Subscribe(ctx, onSnapshot)
}

// View renders the current displayed list.
func (p *Panel) View() View {
	snap := p.binding.Snapshot()
	v := View{
		Kind:    p.kind.Name,
		Columns: p.kind.Columns,
		Err:     snap.Err,
		Version: snap.Version,
		Loaded:  snap.Loaded(),
	}
	if snap.Err == nil {
		v.Rows = p.binding.Rows(p.kind.Annotator)
	}
	return v
}

// Refresh forces resynchronization with the gateway.
func (p *Panel) Refresh(ctx context.Context) View {
	p.binding.Invalidate(ctx)
	return p.View()
}

// Act dispatches a row action.
func (p *Panel) Act(ctx context.Context, rowID string, action ActionName) (Outcome, error) {
	return p.dispatcher.Handle(ctx, rowID, action)
}

// Registry holds the panels served by the application, keyed by kind name.
type Registry struct {
	mu     sync.RWMutex
	panels map[string]*Panel
}

func NewRegistry() *Registry {
	return &Registry{panels: make(map[string]*Panel)}
}

// Register adds p, replacing any panel of the same kind.
func (r *Registry) Register(p *Panel) {
	r.mu.Lock()
	r.panels[p.kind.Name] = p
	r.mu.Unlock()
}

// Get returns the panel for kind or ErrUnknownKind.
func (r *Registry) Get(kind string) (*Panel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.panels[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return p, nil
}

// Panels returns all registered panels ordered by kind name.
func (r *Registry) Panels() []*Panel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Panel, 0, len(r.panels))
	for _, p := range r.panels {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].kind.Name < out[j].kind.Name })
	return out
}
