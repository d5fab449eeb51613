package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// PathError reports a dot-path navigation failure, naming the segment
// that could not be resolved.
type PathError struct {
	Path    string
	Segment string
	Reason  string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("field path %q: segment %q %s", e.Path, e.Segment, e.Reason)
}

// Resolve walks a dot-separated path through maps and lists. Numeric
// segments index lists. An unresolvable segment is an explicit error,
// never a silent zero value.
func (v Value) Resolve(path string) (Value, error) {
	if path == "" {
		return v, nil
	}
	current := v
	for _, segment := range strings.Split(path, ".") {
		next, err := current.child(path, segment)
		if err != nil {
			return Value{}, err
		}
		current = next
	}
	return current, nil
}

// SetPath replaces the value at a dot-separated path in place.
// Every intermediate segment must already exist.
func (v *Value) SetPath(path string, newValue Value) error {
	if path == "" {
		*v = newValue
		return nil
	}
	return v.setSegments(path, strings.Split(path, "."), newValue)
}

func (v *Value) setSegments(fullPath string, segments []string, newValue Value) error {
	if len(segments) == 0 {
		*v = newValue
		return nil
	}
	segment := segments[0]
	switch v.Kind {
	case KindMap:
		child, ok := v.Map[segment]
		if !ok {
			return &PathError{Path: fullPath, Segment: segment, Reason: "not found in map"}
		}
		if err := child.setSegments(fullPath, segments[1:], newValue); err != nil {
			return err
		}
		v.Map[segment] = child
		return nil
	case KindList:
		index, err := strconv.Atoi(segment)
		if err != nil {
			return &PathError{Path: fullPath, Segment: segment, Reason: "is not a list index"}
		}
		if index < 0 || index >= len(v.List) {
			return &PathError{Path: fullPath, Segment: segment, Reason: "is out of range"}
		}
		return v.List[index].setSegments(fullPath, segments[1:], newValue)
	default:
		return &PathError{Path: fullPath, Segment: segment, Reason: fmt.Sprintf("cannot descend into %s", v.Kind)}
	}
}

func (v Value) child(fullPath, segment string) (Value, error) {
	switch v.Kind {
	case KindMap:
		child, ok := v.Map[segment]
		if !ok {
			return Value{}, &PathError{Path: fullPath, Segment: segment, Reason: "not found in map"}
		}
		return child, nil
	case KindList:
		index, err := strconv.Atoi(segment)
		if err != nil {
			return Value{}, &PathError{Path: fullPath, Segment: segment, Reason: "is not a list index"}
		}
		if index < 0 || index >= len(v.List) {
			return Value{}, &PathError{Path: fullPath, Segment: segment, Reason: "is out of range"}
		}
		return v.List[index], nil
	default:
		return Value{}, &PathError{Path: fullPath, Segment: segment, Reason: fmt.Sprintf("cannot descend into %s", v.Kind)}
	}
}
