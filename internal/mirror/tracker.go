package mirror

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// PropertySuffix is the naming convention of property accessors.
const PropertySuffix = "Property"

// Accessor returns one observable of a target.
type Accessor func(target any) (Observable, error)

var table = struct {
	mu        sync.RWMutex
	accessors map[reflect.Type]map[string]Accessor
}{accessors: make(map[reflect.Type]map[string]Accessor)}

// Register adds a named accessor for targets of type T. Names follow
// the "<name>Property" convention; a Tracker ignores any other name.
// Registering the same name again replaces the accessor.
func Register[T any](name string, get func(T) (Observable, error)) {
	t := reflect.TypeFor[T]()

	table.mu.Lock()
	defer table.mu.Unlock()

	if table.accessors[t] == nil {
		table.accessors[t] = make(map[string]Accessor)
	}
	table.accessors[t][name] = func(target any) (Observable, error) {
		typed, ok := target.(T)
		if !ok {
			return nil, fmt.Errorf("accessor %s: target is %T", name, target)
		}
		return get(typed)
	}
}

// Accessors returns the accessor names registered for the dynamic type
// of target, sorted.
func Accessors(target any) []string {
	table.mu.RLock()
	defer table.mu.RUnlock()

	names := make([]string, 0)
	for name := range table.accessors[reflect.TypeOf(target)] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func accessorsFor(target any) map[string]Accessor {
	table.mu.RLock()
	defer table.mu.RUnlock()

	registered := table.accessors[reflect.TypeOf(target)]
	copied := make(map[string]Accessor, len(registered))
	for name, accessor := range registered {
		copied[name] = accessor
	}
	return copied
}

// Updater receives property invalidations by name.
type Updater interface {
	UpdateDetail(name string, property Observable)
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(name string, property Observable)

func (f UpdaterFunc) UpdateDetail(name string, property Observable) {
	f(name, property)
}

// Tracker mirrors the properties of one target at a time.
type Tracker struct {
	mu            sync.Mutex
	properties    map[Observable]string
	subscriptions []Subscription
	updater       Updater
	log           *zerolog.Logger
}

// NewTracker creates a tracker forwarding changes to updater.
func NewTracker(updater Updater, log *zerolog.Logger) *Tracker {
	return &Tracker{
		properties: make(map[Observable]string),
		updater:    updater,
		log:        log,
	}
}

// Attach clears prior tracking and subscribes to every registered
// property of target. A failing accessor is logged and skipped.
func (t *Tracker) Attach(target any) {
	t.Clear()

	discovered := make(map[Observable]string)
	for accessorName, accessor := range accessorsFor(target) {
		if !strings.HasSuffix(accessorName, PropertySuffix) {
			continue
		}
		name := strings.TrimSuffix(accessorName, PropertySuffix)

		property, err := invoke(accessor, target)
		if err != nil {
			t.log.Warn().Err(err).Str("accessor", accessorName).Msg("Failed to get property")
			continue
		}
		if property == nil {
			continue
		}
		discovered[property] = name
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for property, name := range discovered {
		t.properties[property] = name
		t.subscriptions = append(t.subscriptions, property.AddListener(t.invalidated))
	}
}

func invoke(accessor Accessor, target any) (property Observable, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("accessor panicked: %v", r)
		}
	}()
	return accessor(target)
}

func (t *Tracker) invalidated(property Observable) {
	t.mu.Lock()
	name, ok := t.properties[property]
	t.mu.Unlock()

	if !ok {
		return
	}
	t.updater.UpdateDetail(name, property)
}

// Clear removes every listener the tracker added. It is safe to call
// repeatedly and with nothing attached.
func (t *Tracker) Clear() {
	t.mu.Lock()
	subscriptions := t.subscriptions
	t.subscriptions = nil
	t.properties = make(map[Observable]string)
	t.mu.Unlock()

	for _, s := range subscriptions {
		s.Cancel()
	}
}

// Detach is an alias for Clear.
func (t *Tracker) Detach() {
	t.Clear()
}

// Properties returns a copy of the tracked name of each observable.
func (t *Tracker) Properties() map[Observable]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	copied := make(map[Observable]string, len(t.properties))
	for property, name := range t.properties {
		copied[property] = name
	}
	return copied
}

// Names returns the tracked property names, sorted.
func (t *Tracker) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.properties))
	for _, name := range t.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
