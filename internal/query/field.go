package query

import (
	"fmt"
	"strings"
)

// Field is a searchable record attribute.
type Field int

const (
	FullName Field = iota
	Author
	Name
	Description
	Tags
	Homepage
)

// Fields lists every searchable field in declaration order.
var Fields = []Field{FullName, Author, Name, Description, Tags, Homepage}

func (f Field) String() string {
	switch f {
	case FullName:
		return "full_name"
	case Author:
		return "author"
	case Name:
		return "name"
	case Description:
		return "description"
	case Tags:
		return "tags"
	case Homepage:
		return "homepage"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// ParseField returns the field named s, case-insensitively.
func ParseField(s string) (Field, bool) {
	for _, f := range Fields {
		if strings.EqualFold(f.String(), s) {
			return f, true
		}
	}
	return 0, false
}

func fieldNames() string {
	names := make([]string, len(Fields))
	for i, f := range Fields {
		names[i] = f.String()
	}
	return strings.Join(names, ", ")
}
