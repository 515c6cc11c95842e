package fluxdbc

import (
	"fmt"
	"sort"
	"strings"
)

// redacted replaces sensitive values in diagnostic output.
const redacted = "REDACTED"

// sensitiveNames are well-known option names that must stay sensitive even
// when bound from a raw string, where no Option declaration is available.
var sensitiveNames = map[string]bool{
	Password.Name(): true,
}

// Options is an immutable bag of bound options. Build one with a Builder or
// ParseURL and hand it to discovery; drivers read the options they understand
// and ignore the rest.
type Options struct {
	values map[optionKey]any
}

// Value looks up an option by its typed declaration. It returns false when
// the option is absent or when the stored value does not have type T, which
// happens for values bound from raw strings.
func Value[T any](o *Options, opt Option[T]) (T, bool) {
	var zero T
	if o == nil {
		return zero, false
	}
	raw, ok := o.values[opt.key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// Raw looks up an option by name alone, ignoring type and sensitivity. It
// supports configuration code that works from connection strings, where no
// typed declaration is in scope.
func (o *Options) Raw(name string) (any, bool) {
	if o == nil {
		return nil, false
	}
	if v, ok := o.values[optionKey{name: name}]; ok {
		return v, true
	}
	if v, ok := o.values[optionKey{name: name, sensitive: true}]; ok {
		return v, true
	}
	return nil, false
}

// Has reports whether an option with the given name is bound.
func (o *Options) Has(name string) bool {
	_, ok := o.Raw(name)
	return ok
}

// Names returns the bound option names in sorted order.
func (o *Options) Names() []string {
	if o == nil {
		return nil
	}
	names := make([]string, 0, len(o.values))
	for k := range o.values {
		names = append(names, k.name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bound options.
func (o *Options) Len() int {
	if o == nil {
		return 0
	}
	return len(o.values)
}

// String renders the bag for diagnostics. Sensitive values are redacted.
func (o *Options) String() string {
	if o == nil || len(o.values) == 0 {
		return "{}"
	}
	keys := make([]optionKey, 0, len(o.values))
	for k := range o.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].name < keys[j].name })

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k.name)
		b.WriteByte('=')
		if k.sensitive {
			b.WriteString(redacted)
		} else {
			fmt.Fprintf(&b, "%v", o.values[k])
		}
	}
	b.WriteByte('}')
	return b.String()
}

// Builder collects option values into an Options bag. The zero value is not
// usable; create builders with NewBuilder. Later bindings for the same option
// overwrite earlier ones.
type Builder struct {
	values map[optionKey]any
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{values: make(map[optionKey]any)}
}

// With binds typed option values.
func (b *Builder) With(vals ...OptionValue) *Builder {
	for _, v := range vals {
		b.values[v.key] = v.value
	}
	return b
}

// Set binds a raw string value by option name. Well-known sensitive names
// keep their sensitivity; everything else is stored non-sensitive. The value
// stays a string, so typed lookup of names bound this way only succeeds for
// string options.
func (b *Builder) Set(name, value string) *Builder {
	if name == "" {
		panic("fluxdbc: option name must not be empty")
	}
	b.values[optionKey{name: name, sensitive: sensitiveNames[name]}] = value
	return b
}

// From copies every binding out of an existing bag. Combined with With it
// lets wrapping layers inject options without mutating the original.
func (b *Builder) From(o *Options) *Builder {
	if o == nil {
		return b
	}
	for k, v := range o.values {
		b.values[k] = v
	}
	return b
}

// Build snapshots the current bindings into an immutable Options bag. The
// builder remains usable; later mutations do not affect earlier snapshots.
func (b *Builder) Build() *Options {
	values := make(map[optionKey]any, len(b.values))
	for k, v := range b.values {
		values[k] = v
	}
	return &Options{values: values}
}
