package plan

// The plan package turns a parsed expression into the typed tree the code
// generator translates.
//
// Binding happens in one post order walk:
//
// 1) Column references are resolved against the schema, the field index
//    and the column type (nullable or not) are recorded.
//
// 2) Operators are rewritten into catalog functions, ie
//
//      a == b     equal(a, b)
//      a + b      add(a, b), concat(a, b) for varchar
//      -a         negative(a)
//      !a         not(a)
//      a is null  isnull(a)
//
//    and/or become one boolean node holding every operand of a chain of the
//    same operator, c ? x : y becomes an if node.
//
// 3) Operands of a binary operator are unified. A null literal takes the
//    type of the other side, a numeric literal is converted in place when
//    no precision is lost, anything else is widened with a cast function:
//
//      int_col == 1     equal(int_col, int32(1))
//      int_col > 1.5    greater_than(cast_float8(int_col), 1.5)
//
// 4) Calls are looked up on the exact argument types first. When that
//    fails the first overload every argument widens to is taken and the
//    casts are inserted.
//
// A node is nullable when the function propagates nulls and one of its
// arguments is nullable. Functions handling nulls themselves, isnull and
// isnotnull, never are.
