package ast

import (
	"encoding/json"
	"fmt"

	"github.com/xlab/treeprint"
)

// jsonPrinter implements both visitor interfaces, building a JSON-friendly
// representation of the AST out of maps and slices, covering statements,
// patterns and type annotations alongside expressions.
type jsonPrinter struct{}

func (p jsonPrinter) VisitLiteral(e *Literal) any { return e.Value }

func (p jsonPrinter) VisitIdentifier(e *Identifier) any {
	return map[string]any{"type": "Identifier", "name": e.Name}
}

func (p jsonPrinter) VisitBinary(e *Binary) any {
	return map[string]any{
		"type": "Binary", "operator": e.Operator.Lexeme,
		"left": e.Left.Accept(p), "right": e.Right.Accept(p),
	}
}

func (p jsonPrinter) VisitUnary(e *Unary) any {
	return map[string]any{
		"type": "Unary", "operator": e.Operator.Lexeme,
		"operand": e.Operand.Accept(p),
	}
}

func (p jsonPrinter) VisitCall(e *Call) any {
	args := make([]any, 0, len(e.Arguments))
	for _, a := range e.Arguments {
		args = append(args, a.Accept(p))
	}
	return map[string]any{"type": "Call", "callee": e.Callee.Accept(p), "arguments": args}
}

func (p jsonPrinter) VisitIndex(e *Index) any {
	return map[string]any{"type": "Index", "receiver": e.Receiver.Accept(p), "key": e.Key.Accept(p)}
}

func (p jsonPrinter) VisitField(e *Field) any {
	return map[string]any{"type": "Field", "receiver": e.Receiver.Accept(p), "name": e.Name}
}

func (p jsonPrinter) VisitListLiteral(e *ListLiteral) any {
	elems := make([]any, 0, len(e.Elements))
	for _, el := range e.Elements {
		elems = append(elems, el.Accept(p))
	}
	return map[string]any{"type": "ListLiteral", "elements": elems}
}

func (p jsonPrinter) VisitTableLiteral(e *TableLiteral) any {
	fields := make([]any, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, map[string]any{"name": f.Name, "value": f.Value.Accept(p)})
	}
	return map[string]any{"type": "TableLiteral", "fields": fields}
}

func (p jsonPrinter) VisitFunctionLiteral(e *FunctionLiteral) any {
	params := make([]any, 0, len(e.Params))
	for _, prm := range e.Params {
		entry := map[string]any{"name": prm.Name}
		if prm.Type != nil {
			entry["type"] = printType(prm.Type)
		}
		if prm.Default != nil {
			entry["default"] = prm.Default.Accept(p)
		}
		params = append(params, entry)
	}
	result := map[string]any{"type": "FunctionLiteral", "params": params, "body": e.Body.Accept(p)}
	if e.ReturnType != nil {
		result["returnType"] = printType(e.ReturnType)
	}
	return result
}

func (p jsonPrinter) VisitIf(e *If) any {
	elifs := make([]any, 0, len(e.Elifs))
	for _, el := range e.Elifs {
		elifs = append(elifs, map[string]any{"condition": el.Condition.Accept(p), "body": el.Body.Accept(p)})
	}
	result := map[string]any{
		"type": "If", "condition": e.Condition.Accept(p), "then": e.Then.Accept(p), "elifs": elifs,
	}
	if e.Else != nil {
		result["else"] = e.Else.Accept(p)
	}
	return result
}

func (p jsonPrinter) VisitBlock(e *Block) any {
	stmts := make([]any, 0, len(e.Statements))
	for _, s := range e.Statements {
		stmts = append(stmts, s.Accept(p))
	}
	result := map[string]any{"type": "Block", "statements": stmts}
	if e.Tail != nil {
		result["tail"] = e.Tail.Accept(p)
	}
	return result
}

func (p jsonPrinter) VisitMatch(e *Match) any {
	arms := make([]any, 0, len(e.Arms))
	for _, arm := range e.Arms {
		entry := map[string]any{"pattern": printPattern(arm.Pattern), "body": arm.Body.Accept(p)}
		if arm.Guard != nil {
			entry["guard"] = arm.Guard.Accept(p)
		}
		arms = append(arms, entry)
	}
	return map[string]any{"type": "Match", "subject": e.Subject.Accept(p), "arms": arms}
}

func (p jsonPrinter) VisitAssign(e *Assign) any {
	return map[string]any{"type": "Assign", "target": e.Target.Accept(p), "value": e.Value.Accept(p)}
}

func (p jsonPrinter) VisitLetStatement(s *LetStatement) any {
	result := map[string]any{"type": "LetStatement", "target": printPattern(s.Target), "value": s.Value.Accept(p)}
	if s.Type != nil {
		result["declaredType"] = printType(s.Type)
	}
	return result
}

func (p jsonPrinter) VisitVarStatement(s *VarStatement) any {
	result := map[string]any{"type": "VarStatement", "name": s.Name, "value": s.Value.Accept(p)}
	if s.Type != nil {
		result["declaredType"] = printType(s.Type)
	}
	return result
}

func (p jsonPrinter) VisitExpressionStatement(s *ExpressionStatement) any {
	return map[string]any{"type": "ExpressionStatement", "expression": s.Expression.Accept(p)}
}

func (p jsonPrinter) VisitWhileStatement(s *WhileStatement) any {
	return map[string]any{"type": "WhileStatement", "condition": s.Condition.Accept(p), "body": s.Body.Accept(p)}
}

func (p jsonPrinter) VisitForInStatement(s *ForInStatement) any {
	return map[string]any{
		"type": "ForInStatement", "name": s.Name, "iterable": s.Iterable.Accept(p), "body": s.Body.Accept(p),
	}
}

func (p jsonPrinter) VisitBreakStatement(s *BreakStatement) any {
	return map[string]any{"type": "BreakStatement"}
}

func (p jsonPrinter) VisitContinueStatement(s *ContinueStatement) any {
	return map[string]any{"type": "ContinueStatement"}
}

func (p jsonPrinter) VisitReturnStatement(s *ReturnStatement) any {
	result := map[string]any{"type": "ReturnStatement"}
	if s.Value != nil {
		result["value"] = s.Value.Accept(p)
	}
	return result
}

func (p jsonPrinter) VisitTypeDeclStatement(s *TypeDeclStatement) any {
	result := map[string]any{"type": "TypeDeclStatement", "name": s.Name}
	if s.Alias != nil {
		result["alias"] = printType(s.Alias)
	}
	if s.Fields != nil {
		fields := make([]any, 0, len(s.Fields))
		for _, f := range s.Fields {
			fields = append(fields, map[string]any{"name": f.Name, "type": printType(f.Type)})
		}
		result["fields"] = fields
	}
	return result
}

// printPattern renders a Pattern with a type switch, since Pattern has no
// visitor interface of its own (see ast.go's doc comment on Pattern).
func printPattern(pat Pattern) any {
	switch p := pat.(type) {
	case *IdentifierPattern:
		return map[string]any{"type": "IdentifierPattern", "name": p.Name}
	case *WildcardPattern:
		return map[string]any{"type": "WildcardPattern"}
	case *LiteralPattern:
		return map[string]any{"type": "LiteralPattern", "value": p.Value}
	case *ListPattern:
		elems := make([]any, 0, len(p.Elements))
		for _, e := range p.Elements {
			elems = append(elems, printPattern(e))
		}
		result := map[string]any{"type": "ListPattern", "elements": elems}
		if p.Rest != "" {
			result["rest"] = p.Rest
		}
		return result
	case *TablePattern:
		fields := make([]any, 0, len(p.Fields))
		for _, f := range p.Fields {
			entry := map[string]any{"name": f.Name}
			if f.Binding != nil {
				entry["binding"] = printPattern(f.Binding)
			}
			fields = append(fields, entry)
		}
		return map[string]any{"type": "TablePattern", "fields": fields}
	default:
		return fmt.Sprintf("<unknown pattern %T>", pat)
	}
}

// printType renders a TypeAnnotation with a type switch, for the same
// reason printPattern does.
func printType(t TypeAnnotation) any {
	switch ty := t.(type) {
	case *NamedType:
		return map[string]any{"type": "NamedType", "name": ty.Name}
	case *GenericType:
		args := make([]any, 0, len(ty.Arguments))
		for _, a := range ty.Arguments {
			args = append(args, printType(a))
		}
		return map[string]any{"type": "GenericType", "name": ty.Name, "arguments": args}
	case *FunctionType:
		params := make([]any, 0, len(ty.Params))
		for _, p := range ty.Params {
			params = append(params, printType(p))
		}
		return map[string]any{"type": "FunctionType", "params": params, "return": printType(ty.Return)}
	case *AnyType:
		return map[string]any{"type": "AnyType"}
	default:
		return fmt.Sprintf("<unknown type %T>", t)
	}
}

// ToJSON renders a Program as indented JSON.
func ToJSON(program *Program) (string, error) {
	printer := jsonPrinter{}
	stmts := make([]any, 0, len(program.Statements))
	for _, s := range program.Statements {
		stmts = append(stmts, s.Accept(printer))
	}
	bytes, err := json.MarshalIndent(stmts, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// ToTree renders a Program as an indented text tree, built by walking the
// same JSON-shaped representation jsonPrinter produces.
func ToTree(program *Program) string {
	root := treeprint.New()
	root.SetValue("Program")
	printer := jsonPrinter{}
	for _, s := range program.Statements {
		addTreeNode(root, "", s.Accept(printer))
	}
	return root.String()
}

func addTreeNode(parent treeprint.Tree, label string, value any) {
	switch v := value.(type) {
	case map[string]any:
		nodeLabel := label
		if kind, ok := v["type"].(string); ok {
			if nodeLabel != "" {
				nodeLabel = fmt.Sprintf("%s: %s", nodeLabel, kind)
			} else {
				nodeLabel = kind
			}
		} else if nodeLabel == "" {
			nodeLabel = "node"
		}
		branch := parent.AddBranch(nodeLabel)
		for key, child := range v {
			if key == "type" {
				continue
			}
			addTreeNode(branch, key, child)
		}
	case []any:
		nodeLabel := label
		if nodeLabel == "" {
			nodeLabel = "list"
		}
		branch := parent.AddBranch(nodeLabel)
		for i, child := range v {
			addTreeNode(branch, fmt.Sprintf("[%d]", i), child)
		}
	default:
		if label != "" {
			parent.AddNode(fmt.Sprintf("%s: %v", label, v))
		} else {
			parent.AddNode(fmt.Sprintf("%v", v))
		}
	}
}
