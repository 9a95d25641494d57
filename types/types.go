package types

import (
	"fmt"
	"strings"
)

// MinorType is the physical value type of a column or an expression.
type MinorType int

const (
	Late MinorType = iota // not resolved yet
	BigInt
	Int
	Float4
	Float8
	Bit
	VarChar
)

// DataMode tells whether a value may be null.
type DataMode int

const (
	Required DataMode = iota
	Optional
)

type MajorType struct {
	Minor MinorType
	Mode  DataMode
}

func RequiredOf(m MinorType) MajorType { return MajorType{Minor: m, Mode: Required} }
func OptionalOf(m MinorType) MajorType { return MajorType{Minor: m, Mode: Optional} }

func (self MajorType) IsNullable() bool { return self.Mode == Optional }

func (self MajorType) AsOptional() MajorType {
	return MajorType{Minor: self.Minor, Mode: Optional}
}

func (self MajorType) AsRequired() MajorType {
	return MajorType{Minor: self.Minor, Mode: Required}
}

func (self MajorType) String() string {
	if self.Mode == Optional {
		return fmt.Sprintf("nullable %s", self.Minor)
	}
	return self.Minor.String()
}

func (self MinorType) String() string {
	switch self {
	case BigInt:
		return "bigint"
	case Int:
		return "int"
	case Float4:
		return "float4"
	case Float8:
		return "float8"
	case Bit:
		return "bit"
	case VarChar:
		return "varchar"
	default:
		return "late"
	}
}

// IsNumeric returns true for every integer and floating point type.
func (self MinorType) IsNumeric() bool {
	switch self {
	case BigInt, Int, Float4, Float8:
		return true
	default:
		return false
	}
}

// ParseMinorType accepts the type names used by schema strings, ie
// "bigint", "int", "float4", "float8", "bit" and "varchar". A few common
// aliases are accepted as well.
func ParseMinorType(n string) (MinorType, error) {
	switch strings.ToLower(strings.TrimSpace(n)) {
	case "bigint", "int64", "long":
		return BigInt, nil
	case "int", "int32", "integer":
		return Int, nil
	case "float4", "float", "real":
		return Float4, nil
	case "float8", "double":
		return Float8, nil
	case "bit", "bool", "boolean":
		return Bit, nil
	case "varchar", "string", "text":
		return VarChar, nil
	default:
		return Late, fmt.Errorf("unknown type %q", n)
	}
}

// Widen returns the type both numeric operands are promoted to before a
// comparison or arithmetic function is looked up. Non numeric types are
// only compatible with themselves.
func Widen(a, b MinorType) (MinorType, bool) {
	if a == b {
		return a, true
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return Late, false
	}
	if a == Float8 || b == Float8 {
		return Float8, true
	}
	if a == Float4 || b == Float4 {
		// float4 combined with a 64 bits integer would lose precision
		if a == BigInt || b == BigInt {
			return Float8, true
		}
		return Float4, true
	}
	return BigInt, true
}
