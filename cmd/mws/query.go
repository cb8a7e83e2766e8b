package main

import (
	"encoding/json"
	"fmt"

	"github.com/dominhhai/mws-sdk/domain/reply"
	"github.com/jmespath/go-jmespath"
)

// applyQuery selects part of a decoded reply with a JMESPath expression.
// An empty expression returns the tree as is.
func applyQuery(tree reply.Tree, expression string) (any, error) {
	if expression == "" {
		return tree, nil
	}
	jp, err := jmespath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", expression, err)
	}

	// The searcher only walks plain maps and slices.
	raw, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}

	result, err := jp.Search(data)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", expression, err)
	}
	return result, nil
}
