package simplevfs

import (
	"fmt"
)

// ObjectKind is the domain type for addressable object kinds.
type ObjectKind string

// Object kind constants (typed).
const (
	// KindClient represents one monitored endpoint host.
	KindClient ObjectKind = "client"
	// KindFile represents a file mirrored from an endpoint.
	KindFile ObjectKind = "file"
)

// AttributeType is the semantic type of an attribute value.
type AttributeType string

// Attribute type constants (typed).
const (
	TypeString     AttributeType = "string"
	TypeInt64      AttributeType = "int64"
	TypeTime       AttributeType = "time"
	TypeStringList AttributeType = "string_list"
	TypeJSON       AttributeType = "json"
)

// Well-known attribute names. Shared attributes use the same name across
// kinds so projections stay uniform.
const (
	AttrType = "aff4:type"

	// Client attributes
	AttrHostname      = "aff4:hostname"
	AttrSystem        = "aff4:system"
	AttrOSRelease     = "aff4:os_release"
	AttrKernel        = "aff4:kernel"
	AttrArch          = "aff4:arch"
	AttrFQDN          = "aff4:fqdn"
	AttrInstallDate   = "aff4:install_date"
	AttrUsernames     = "aff4:users"
	AttrInterfaces    = "aff4:interfaces"
	AttrClientInfo    = "aff4:client_info"
	AttrKnowledgeBase = "aff4:knowledge_base"

	// File attributes
	AttrStat        = "aff4:stat"
	AttrPathspec    = "aff4:pathspec"
	AttrSize        = "aff4:size"
	AttrChunkSize   = "aff4:chunk_size"
	AttrContentHash = "aff4:content_hash"
	AttrContentLast = "aff4:content_last"
	AttrContentLock = "aff4:content_lock"
)

// AttributeDef declares one typed, named attribute slot on an object kind.
//
// Multi-valued attributes are declared as list or JSON types: one versioned
// record holds the full ordered sequence, never N separate records.
//
// Tracks names another attribute of the same kind. An attribute that tracks
// is a derived marker: it is stamped with the flush time only when the
// tracked attribute's newly staged value differs from its last persisted
// value within the transaction. A flush alone never advances it.
type AttributeDef struct {
	Name    string
	Type    AttributeType
	Default interface{}
	Tracks  string
}

// Schema is a registry mapping (object kind, attribute name) to a typed
// descriptor. It is constructed once and passed to the factory explicitly;
// lookups are validated ahead of use.
type Schema struct {
	kinds map[ObjectKind]map[string]AttributeDef
}

// NewSchema creates an empty schema registry.
func NewSchema() *Schema {
	return &Schema{kinds: make(map[ObjectKind]map[string]AttributeDef)}
}

// Register declares the attributes of one object kind. Duplicate attribute
// names and dangling Tracks references are rejected at registration time.
func (s *Schema) Register(kind ObjectKind, defs ...AttributeDef) error {
	attrs, ok := s.kinds[kind]
	if !ok {
		attrs = make(map[string]AttributeDef)
		s.kinds[kind] = attrs
	}
	for _, def := range defs {
		if def.Name == "" {
			return fmt.Errorf("schema: empty attribute name on kind %s", kind)
		}
		if _, exists := attrs[def.Name]; exists {
			return fmt.Errorf("schema: duplicate attribute %q on kind %s", def.Name, kind)
		}
		attrs[def.Name] = def
	}
	// Validate Tracks references once the batch is in place.
	for _, def := range defs {
		if def.Tracks == "" {
			continue
		}
		if _, exists := attrs[def.Tracks]; !exists {
			return fmt.Errorf("schema: attribute %q on kind %s tracks undeclared %q",
				def.Name, kind, def.Tracks)
		}
	}
	return nil
}

// HasKind reports whether the kind was registered.
func (s *Schema) HasKind(kind ObjectKind) bool {
	_, ok := s.kinds[kind]
	return ok
}

// Lookup resolves an attribute descriptor, failing on unknown kinds or names.
func (s *Schema) Lookup(kind ObjectKind, name string) (AttributeDef, error) {
	attrs, ok := s.kinds[kind]
	if !ok {
		return AttributeDef{}, &SchemaError{Kind: kind, Attribute: name, Err: ErrUnknownKind}
	}
	def, ok := attrs[name]
	if !ok {
		return AttributeDef{}, &SchemaError{Kind: kind, Attribute: name, Err: ErrUnknownAttribute}
	}
	return def, nil
}

// markers returns the derived-marker attributes declared on the kind.
func (s *Schema) markers(kind ObjectKind) []AttributeDef {
	var out []AttributeDef
	for _, def := range s.kinds[kind] {
		if def.Tracks != "" {
			out = append(out, def)
		}
	}
	return out
}

// DefaultSchema returns the built-in schema covering client and file objects.
func DefaultSchema() *Schema {
	s := NewSchema()

	// Registration of the built-in kinds cannot fail.
	_ = s.Register(KindClient,
		AttributeDef{Name: AttrType, Type: TypeString},
		AttributeDef{Name: AttrHostname, Type: TypeString},
		AttributeDef{Name: AttrSystem, Type: TypeString},
		AttributeDef{Name: AttrOSRelease, Type: TypeString},
		AttributeDef{Name: AttrKernel, Type: TypeString},
		AttributeDef{Name: AttrArch, Type: TypeString},
		AttributeDef{Name: AttrFQDN, Type: TypeString},
		AttributeDef{Name: AttrInstallDate, Type: TypeTime},
		AttributeDef{Name: AttrUsernames, Type: TypeStringList},
		AttributeDef{Name: AttrInterfaces, Type: TypeJSON},
		AttributeDef{Name: AttrClientInfo, Type: TypeJSON},
		AttributeDef{Name: AttrKnowledgeBase, Type: TypeJSON},
	)

	_ = s.Register(KindFile,
		AttributeDef{Name: AttrType, Type: TypeString},
		AttributeDef{Name: AttrStat, Type: TypeJSON},
		AttributeDef{Name: AttrPathspec, Type: TypeJSON},
		AttributeDef{Name: AttrSize, Type: TypeInt64, Default: int64(0)},
		AttributeDef{Name: AttrChunkSize, Type: TypeInt64, Default: int64(DefaultChunkSize)},
		AttributeDef{Name: AttrContentHash, Type: TypeString},
		AttributeDef{Name: AttrContentLast, Type: TypeTime, Tracks: AttrSize},
		AttributeDef{Name: AttrContentLock, Type: TypeString},
	)

	return s
}
