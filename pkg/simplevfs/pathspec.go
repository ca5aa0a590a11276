package simplevfs

import (
	"fmt"
	"strings"
)

// PathType tags how a path segment should be interpreted on the endpoint.
type PathType string

// Path interpretation constants (typed).
const (
	// PathTypeOS is a raw operating-system path (including device paths).
	PathTypeOS PathType = "os"
	// PathTypeTSK is a path resolved inside a parsed filesystem image.
	PathTypeTSK PathType = "tsk"
	// PathTypeRegistry is a Windows registry path.
	PathTypeRegistry PathType = "registry"
	// PathTypeTemp is a temporary file staged by the endpoint agent.
	PathTypeTemp PathType = "temp"
)

// pathSpaces maps a path interpretation tag to its URN path-space prefix.
var pathSpaces = map[PathType]string{
	PathTypeOS:       "os",
	PathTypeTSK:      "tsk",
	PathTypeRegistry: "registry",
	PathTypeTemp:     "temp",
}

// PathSpec describes one segment of a nested path specification as collected
// from an endpoint. Segments nest when a path must be resolved through
// multiple layers, e.g. a raw device opened by the OS and then parsed as a
// filesystem image.
type PathSpec struct {
	Path       string    `json:"path"`
	PathType   PathType  `json:"pathtype"`
	MountPoint string    `json:"mount_point,omitempty"`
	StreamName string    `json:"stream_name,omitempty"`
	Nested     *PathSpec `json:"nested_path,omitempty"`
}

// Append attaches next at the deepest nesting level and returns the receiver
// for chaining.
func (p *PathSpec) Append(next *PathSpec) *PathSpec {
	last := p
	for last.Nested != nil {
		last = last.Nested
	}
	last.Nested = next
	return p
}

// segments flattens the nesting chain in order.
func (p *PathSpec) segments() []*PathSpec {
	var segs []*PathSpec
	for s := p; s != nil; s = s.Nested {
		segs = append(segs, s)
	}
	return segs
}

// ToURN maps the pathspec chain onto the canonical VFS URN for the given
// client. The mapping is deterministic: identical chains always produce
// byte-identical URNs.
//
// A raw OS device segment nested under a parsed filesystem (TSK) segment is
// a mount point resolution and maps into the tsk path space. For example:
//
//	path: \\.\Volume{1234}\  pathtype: os  mount_point: /c:/
//	nested: path: /windows  pathtype: tsk
//
// maps to aff4:/<client>/fs/tsk/\\.\Volume{1234}\//windows.
//
// Each segment contributes its raw path with the declared mount point
// stripped when it prefixes the path; slashes of either style, drive tokens
// and alternate-data-stream suffixes are carried over verbatim, and repeated
// separators originating from path content are not collapsed.
func (p *PathSpec) ToURN(clientID string) (URN, error) {
	client, err := ClientURN(clientID)
	if err != nil {
		return "", err
	}
	segs := p.segments()

	spaceType := segs[0].PathType
	if len(segs) > 1 && segs[0].PathType == PathTypeOS && segs[1].PathType == PathTypeTSK {
		spaceType = PathTypeTSK
	}
	space, ok := pathSpaces[spaceType]
	if !ok {
		return "", fmt.Errorf("%w: unmapped path type %q", ErrInvalidURN, spaceType)
	}

	components := make([]string, 0, len(segs))
	for _, seg := range segs {
		effective := seg.Path
		if seg.MountPoint != "" && strings.HasPrefix(effective, seg.MountPoint) {
			effective = effective[len(seg.MountPoint):]
		}
		if seg.StreamName != "" {
			effective += ":" + seg.StreamName
		}
		components = append(components, effective)
	}

	return client.Add("fs").Add(space).Add(strings.Join(components, "/")), nil
}
