package observable

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Rule declares that Property must be re-announced whenever Path changes.
type Rule struct {
	Property string
	// Path is a dotted member path rooted at the owner.
	Path string
	// Collection also follows collection changes of the value at Path.
	Collection bool
	// Expression, when set, replaces Path with every member path the
	// expr-lang expression reads.
	Expression string
}

// DependsOn declares that property derives from the member path joined from
// parts, e.g. DependsOn("Total", "Order", "Subtotal").
func DependsOn(property string, parts ...string) Rule {
	return Rule{Property: property, Path: strings.Join(parts, ".")}
}

// DependsOnCollection is DependsOn that also reacts to collection changes.
func DependsOnCollection(property string, parts ...string) Rule {
	return Rule{Property: property, Path: strings.Join(parts, "."), Collection: true}
}

// DependsOnExpression declares that property derives from every member path
// read by expression.
func DependsOnExpression(property, expression string) Rule {
	return Rule{Property: property, Expression: expression}
}

// DependencyDeclarer is implemented by owners that list their own rules.
type DependencyDeclarer interface {
	Dependencies() []Rule
}

var dependencyTable = struct {
	mu    sync.RWMutex
	rules map[reflect.Type][]Rule
}{rules: map[reflect.Type][]Rule{}}

// RegisterDependencies appends rules for owners of type T (or *T).
func RegisterDependencies[T any](rules ...Rule) {
	key := ownerKey(reflect.TypeFor[T]())
	dependencyTable.mu.Lock()
	defer dependencyTable.mu.Unlock()
	dependencyTable.rules[key] = append(dependencyTable.rules[key], rules...)
}

// RulesFor returns the registered and self-declared rules of owner, in
// declaration order.
func RulesFor(owner any) []Rule {
	raw := unwrapProxy(owner)
	if raw == nil {
		return nil
	}
	dependencyTable.mu.RLock()
	rules := append([]Rule(nil), dependencyTable.rules[ownerKey(reflect.TypeOf(raw))]...)
	dependencyTable.mu.RUnlock()
	if declarer, ok := raw.(DependencyDeclarer); ok {
		rules = append(rules, declarer.Dependencies()...)
	}
	return rules
}

func ownerKey(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

// Install validates the rules of owner and starts one PathObserver per rule,
// each re-announcing its property on owner. Nothing is installed when any rule
// is invalid.
func Install(owner PropertyNotifier, opts ...Option) ([]*PathObserver, error) {
	if owner == nil {
		return nil, &NullTargetError{Op: "install"}
	}
	return install(owner, applyOptions(opts))
}

func install(owner PropertyNotifier, cfg *config) ([]*PathObserver, error) {
	start := time.Now()
	ownerType := reflect.TypeOf(unwrapProxy(owner))
	rules, err := expandRules(ownerType, RulesFor(owner))
	if err == nil {
		err = validateRules(owner, ownerType, rules)
	}
	if err == nil {
		err = detectCycle(ownerType, rules)
	}
	if err != nil {
		cfg.logger.LogEvent(LogEvent{Op: "install", Owner: typeLabel(ownerType), Duration: time.Since(start), Err: err})
		return nil, err
	}

	observers := make([]*PathObserver, 0, len(rules))
	for _, rule := range rules {
		property := rule.Property
		o := newPathObserver(rule.Path, rule.Collection, func() {
			owner.NotifyPropertyChanged(property)
		}, cfg)
		o.attach(0, owner)
		observers = append(observers, o)
	}
	cfg.logger.LogEvent(LogEvent{Op: "install", Owner: typeLabel(ownerType), Duration: time.Since(start)})
	return observers, nil
}

func expandRules(ownerType reflect.Type, rules []Rule) ([]Rule, error) {
	expanded := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if strings.TrimSpace(rule.Property) == "" {
			return nil, &DependencyConfigurationError{
				Owner: ownerType,
				Path:  rule.Path,
				Err:   fmt.Errorf("dependent property must not be empty"),
			}
		}
		if rule.Expression == "" {
			expanded = append(expanded, rule)
			continue
		}
		paths, err := ExpressionPaths(rule.Expression)
		if err == nil && len(paths) == 0 {
			err = fmt.Errorf("expression %q reads no members", rule.Expression)
		}
		if err != nil {
			return nil, &DependencyConfigurationError{
				Owner:    ownerType,
				Property: rule.Property,
				Path:     rule.Expression,
				Err:      err,
			}
		}
		for _, path := range paths {
			expanded = append(expanded, Rule{Property: rule.Property, Path: path, Collection: rule.Collection})
		}
	}
	return expanded, nil
}

func validateRules(owner PropertyNotifier, ownerType reflect.Type, rules []Rule) error {
	for _, rule := range rules {
		trace, err := ResolvePath(owner, rule.Path)
		if err != nil {
			return &DependencyConfigurationError{
				Owner:    ownerType,
				Property: rule.Property,
				Path:     rule.Path,
				Trace:    trace,
				Err:      err,
			}
		}
	}
	return nil
}

// detectCycle looks for a loop among dependent properties. A rule adds an
// edge from its property to the first segment of its path when that segment
// is itself a dependent property.
func detectCycle(ownerType reflect.Type, rules []Rule) error {
	var order []string
	edges := map[string][]string{}
	for _, rule := range rules {
		if _, seen := edges[rule.Property]; !seen {
			order = append(order, rule.Property)
			edges[rule.Property] = nil
		}
	}
	for _, rule := range rules {
		head := splitPath(rule.Path)[0]
		if _, dependent := edges[head]; dependent {
			edges[rule.Property] = append(edges[rule.Property], head)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := map[string]int{}
	var stack []string
	var cycle []string
	var visit func(string) bool
	visit = func(property string) bool {
		state[property] = visiting
		stack = append(stack, property)
		for _, next := range edges[property] {
			switch state[next] {
			case visiting:
				for i, p := range stack {
					if p == next {
						cycle = append(append([]string{}, stack[i:]...), next)
						break
					}
				}
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[property] = done
		return false
	}
	for _, property := range order {
		if state[property] == unvisited && visit(property) {
			return &DependencyConfigurationError{
				Owner:    ownerType,
				Property: cycle[0],
				Cycle:    cycle,
				Err:      fmt.Errorf("cyclic dependency"),
			}
		}
	}
	return nil
}
