package vm

import "fmt"

// nativeListLen, nativeHasField and nativeListRest back the compiler's
// OpNativeCall instructions emitted for match/let pattern lowering
// (compiler/patterns.go); they are VM internals rather than stdlib
// globals since user code never calls them by name.

func nativeListLen(args []any) (any, error) {
	lst, ok := args[0].(*List)
	if !ok {
		return nil, fmt.Errorf("list_len: expected a List, got %s", TypeName(args[0]))
	}
	return float64(len(lst.Elements)), nil
}

func nativeHasField(args []any) (any, error) {
	tbl, ok := args[0].(*Table)
	if !ok {
		return false, nil
	}
	name, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("has_field: expected a String key, got %s", TypeName(args[1]))
	}
	_, present := tbl.Fields[name]
	return present, nil
}

func nativeListRest(args []any) (any, error) {
	lst, ok := args[0].(*List)
	if !ok {
		return nil, fmt.Errorf("list_rest: expected a List, got %s", TypeName(args[0]))
	}
	start, ok := args[1].(float64)
	if !ok {
		return nil, fmt.Errorf("list_rest: expected a Number start index, got %s", TypeName(args[1]))
	}
	i := int(start)
	if i < 0 || i > len(lst.Elements) {
		return &List{Elements: nil}, nil
	}
	rest := append([]any{}, lst.Elements[i:]...)
	return &List{Elements: rest}, nil
}
