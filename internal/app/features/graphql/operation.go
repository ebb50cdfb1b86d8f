package graphql

// operation is a top-level definition in a GraphQL document.
type operation struct {
	kind string // query, mutation, subscription or fragment
	name string
}

// selectedKind returns the kind of the operation that operationName selects
// in doc, following the executor's rules: a named operation when
// operationName is set, otherwise the only operation in the document. It
// returns "" when no single operation is selected, in which case execution
// fails on its own.
func selectedKind(doc, operationName string) string {
	var found []operation
	for _, op := range topLevelOperations(doc) {
		if op.kind == "fragment" {
			continue
		}
		if operationName == "" || op.name == operationName {
			found = append(found, op)
		}
	}
	if len(found) != 1 {
		return ""
	}
	return found[0].kind
}

// topLevelOperations lists the definitions of doc in order. It tokenizes
// just enough of the GraphQL grammar to tell definitions apart: names,
// brackets, strings and comments. A selection set with no keyword is an
// anonymous query.
func topLevelOperations(doc string) []operation {
	var (
		ops      []operation
		cur      *operation
		depth    int
		wantName bool
	)
	i, n := 0, len(doc)
	for i < n {
		c := doc[i]
		switch {
		case c == '#':
			for i < n && doc[i] != '\n' && doc[i] != '\r' {
				i++
			}
			continue
		case c == '"':
			i = skipString(doc, i)
			continue
		case c == '{' || c == '(' || c == '[':
			if depth == 0 && c == '{' && cur == nil {
				cur = &operation{kind: "query"}
			}
			wantName = false
			depth++
		case c == '}' || c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
			if depth == 0 && c == '}' && cur != nil {
				ops = append(ops, *cur)
				cur = nil
			}
		case isNameStart(c):
			start := i
			for i < n && isNameContinue(doc[i]) {
				i++
			}
			word := doc[start:i]
			if depth == 0 {
				switch {
				case cur == nil:
					cur = &operation{kind: word}
					wantName = true
				case wantName:
					cur.name = word
					wantName = false
				}
			}
			continue
		case c >= '0' && c <= '9' || c == '-':
			for i < n && (isNameContinue(doc[i]) || doc[i] == '.' || doc[i] == '+' || doc[i] == '-') {
				i++
			}
			continue
		default:
			// Punctuation other than brackets ends the name position, so
			// "query($x: Int)" and "query @dir" stay anonymous.
			if c != ' ' && c != '\t' && c != '\n' && c != '\r' && c != ',' {
				wantName = false
			}
		}
		i++
	}
	return ops
}

// skipString returns the index just past the string starting at doc[i].
func skipString(doc string, i int) int {
	n := len(doc)
	if i+2 < n && doc[i+1] == '"' && doc[i+2] == '"' {
		i += 3
		for i < n {
			if doc[i] == '\\' && i+3 < n && doc[i+1:i+4] == `"""` {
				i += 4
				continue
			}
			if i+2 < n && doc[i:i+3] == `"""` {
				return i + 3
			}
			i++
		}
		return n
	}
	i++
	for i < n {
		switch doc[i] {
		case '\\':
			i += 2
			continue
		case '"':
			return i + 1
		}
		i++
	}
	return n
}

func isNameStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isNameContinue(c byte) bool {
	return isNameStart(c) || c >= '0' && c <= '9'
}
